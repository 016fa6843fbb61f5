// Package grpc serves the query console over gRPC.
//
// The service is described by hand with protobuf well-known types so no
// generated code is needed:
//
//	service QueryService {
//	  rpc Run(google.protobuf.StringValue) returns (google.protobuf.Struct);
//	  rpc ListTables(google.protobuf.Empty) returns (google.protobuf.Struct);
//	}
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sqlobserver.v1.QueryService"

const (
	runMethod        = "/" + ServiceName + "/Run"
	listTablesMethod = "/" + ServiceName + "/ListTables"
)

// QueryServiceServer is the server API for QueryService.
type QueryServiceServer interface {
	Run(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListTables(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// QueryServiceDesc is the grpc.ServiceDesc for QueryService.
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "ListTables", Handler: listTablesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sqlobserver/v1/query.proto",
}

// RegisterQueryServiceServer registers srv on s.
func RegisterQueryServiceServer(s grpc.ServiceRegistrar, srv QueryServiceServer) {
	s.RegisterService(&QueryServiceDesc, srv)
}

func runHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: runMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServiceServer).Run(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listTablesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServiceServer).ListTables(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listTablesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServiceServer).ListTables(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// QueryServiceClient is the client API for QueryService.
type QueryServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewQueryServiceClient creates a client on cc.
func NewQueryServiceClient(cc grpc.ClientConnInterface) *QueryServiceClient {
	return &QueryServiceClient{cc: cc}
}

// Run executes a query.
func (c *QueryServiceClient) Run(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, runMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTables lists the queryable tables.
func (c *QueryServiceClient) ListTables(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listTablesMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
