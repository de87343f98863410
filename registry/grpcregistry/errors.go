package grpcregistry

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/didauth/registry"
)

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.AlreadyExists:
		// Server uses AlreadyExists for both uniqueness violations; the message
		// names which one.
		if st.Message() == registry.ErrDuplicateName.Error() {
			return registry.ErrDuplicateName
		}
		return registry.ErrDuplicateDID
	case codes.NotFound:
		return registry.ErrNotFound
	case codes.InvalidArgument:
		return registry.ErrInvalidUser
	case codes.DataLoss:
		return registry.ErrCorrupt
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return err
	}
}
