// Package autherr defines the structured rejection taxonomy shared by the
// didauth core packages.
//
// Every rejection produced by key decoding, signing, verification or the
// register/login flows is an *Error carrying a stable Kind and RuleID.
// Callers branch on Kind (or RuleID) with errors.As; Message is human readable,
// safe to return to clients, and may evolve.
package autherr

import "errors"

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindInvalidArgument       Kind = "InvalidArgument"
	KindMalformedIdentifier   Kind = "MalformedIdentifier"
	KindInvalidSignatureToken Kind = "InvalidSignatureToken"
	KindKeyMismatch           Kind = "KeyMismatch"
	KindVerificationFailed    Kind = "VerificationFailed"
	KindInvalidCredential     Kind = "InvalidCredential"
	KindDuplicateDID          Kind = "DuplicateDID"
	KindAlreadyRegistered     Kind = "AlreadyRegistered"
	KindNotRegistered         Kind = "NotRegistered"
	KindKeyFileCorrupt        Kind = "KeyFileCorrupt"
	KindInternal              Kind = "Internal"
)

// Error is the library's structured error type.
//
// RuleID is a stable identifier (e.g. DIDAUTH-KEY-101, DIDAUTH-VERIFY-301)
// naming the check that rejected the input.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a structured error without a cause.
func New(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// Wrap returns a structured error that wraps cause. A nil cause is the same as New.
func Wrap(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return New(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
