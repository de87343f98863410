package grpcregistry

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/didauth/registry"
)

// Server exposes a registry.Registry over the Registry gRPC service.
type Server struct {
	UnimplementedRegistryServer
	Registry registry.Registry
}

func (s *Server) Exists(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Registry == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing registry")
	}
	ok, err := s.Registry.Exists(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) Insert(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if s == nil || s.Registry == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing registry")
	}
	u, err := userFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.Registry.Insert(ctx, u.DID, u.Name); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) FindByDID(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s == nil || s.Registry == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing registry")
	}
	u, ok, err := s.Registry.FindByDID(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	if !ok {
		return nil, status.Error(codes.NotFound, registry.ErrNotFound.Error())
	}
	return userToStruct(u), nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, registry.ErrDuplicateDID):
		return status.Error(codes.AlreadyExists, registry.ErrDuplicateDID.Error())
	case errors.Is(err, registry.ErrDuplicateName):
		return status.Error(codes.AlreadyExists, registry.ErrDuplicateName.Error())
	case errors.Is(err, registry.ErrInvalidUser):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, registry.ErrCorrupt):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func userToStruct(u registry.User) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"did":  structpb.NewStringValue(u.DID),
		"name": structpb.NewStringValue(u.Name),
	}}
}

func userFromStruct(s *structpb.Struct) (registry.User, error) {
	fields := s.GetFields()
	var u registry.User
	for key, dst := range map[string]*string{"did": &u.DID, "name": &u.Name} {
		v, ok := fields[key]
		if !ok {
			return registry.User{}, errors.New("missing field " + key)
		}
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return registry.User{}, errors.New("field " + key + " must be a string")
		}
		*dst = sv.StringValue
	}
	return u, nil
}
