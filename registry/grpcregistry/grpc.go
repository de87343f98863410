package grpcregistry

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Registry service messages use protobuf well-known types so this package
// does not require a protoc/codegen toolchain:
//
//	service Registry {
//	  rpc Exists(google.protobuf.StringValue) returns (google.protobuf.BoolValue);
//	  rpc Insert(google.protobuf.Struct) returns (google.protobuf.Empty);       // {"did","name"}
//	  rpc FindByDID(google.protobuf.StringValue) returns (google.protobuf.Struct);
//	}
const serviceName = "xdao.didauth.registry.v1.Registry"

// RegistryServer is the server API for the Registry gRPC service.
type RegistryServer interface {
	Exists(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Insert(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	FindByDID(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// UnimplementedRegistryServer can be embedded to have forward compatible implementations.
type UnimplementedRegistryServer struct{}

func (UnimplementedRegistryServer) Exists(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Exists not implemented")
}
func (UnimplementedRegistryServer) Insert(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Insert not implemented")
}
func (UnimplementedRegistryServer) FindByDID(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method FindByDID not implemented")
}

// RegisterRegistryServer registers the Registry service on a gRPC server.
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&Registry_ServiceDesc, srv)
}

// RegistryClient is the client API for the Registry gRPC service.
type RegistryClient interface {
	Exists(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	FindByDID(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type registryClient struct{ cc grpc.ClientConnInterface }

func NewRegistryClient(cc grpc.ClientConnInterface) RegistryClient { return &registryClient{cc: cc} }

func (c *registryClient) Exists(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/Exists", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *registryClient) Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/Insert", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *registryClient) FindByDID(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/FindByDID", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Registry_Exists_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).Exists(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Exists"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegistryServer).Exists(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Registry_Insert_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).Insert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Insert"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegistryServer).Insert(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Registry_FindByDID_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).FindByDID(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/FindByDID"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegistryServer).FindByDID(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Registry_ServiceDesc is the grpc.ServiceDesc for the Registry service.
var Registry_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Exists", Handler: _Registry_Exists_Handler},
		{MethodName: "Insert", Handler: _Registry_Insert_Handler},
		{MethodName: "FindByDID", Handler: _Registry_FindByDID_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "registry.proto",
}
