package model

import (
	"fmt"

	"xdao.co/didauth/autherr"
)

type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrRejected       ErrorCode = "REJECTED"
	ErrInternal       ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode    `json:"code"`
	Kind    autherr.Kind `json:"kind,omitempty"`
	Rule    string       `json:"rule,omitempty"`
	Message string       `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// FromError projects err onto the boundary error shape. Structured
// rejections keep their kind, rule and message; anything else becomes a
// fixed internal error so that no detail leaks to clients.
func FromError(err error) *CodedError {
	if err == nil {
		return nil
	}
	kind := autherr.KindOf(err)
	switch kind {
	case "":
		return NewError(ErrInternal, "internal error")
	case autherr.KindInternal:
		return &CodedError{Code: ErrInternal, Kind: kind, Rule: autherr.RuleID(err), Message: "internal error"}
	case autherr.KindInvalidArgument:
		return &CodedError{Code: ErrInvalidRequest, Kind: kind, Rule: autherr.RuleID(err), Message: err.Error()}
	default:
		return &CodedError{Code: ErrRejected, Kind: kind, Rule: autherr.RuleID(err), Message: err.Error()}
	}
}
