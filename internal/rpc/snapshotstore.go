// Package rpc declares the SnapshotStore gRPC service shared by the client
// transport and the server. Messages are protobuf well-known types, so the
// service needs no generated code: snapshots travel as JSON inside a
// BytesValue.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "teadiary.remote.SnapshotStore"

const (
	MethodAuthenticate = "/" + ServiceName + "/Authenticate"
	MethodPing         = "/" + ServiceName + "/Ping"
	MethodDownload     = "/" + ServiceName + "/Download"
	MethodUpload       = "/" + ServiceName + "/Upload"
)

// PingOK is the status Ping reports for a healthy server.
const PingOK = "OK"

// SnapshotStoreServer is implemented by the server.
//
// Download and Upload act on the partition named by the "partition" request
// metadata. Download returns codes.NotFound when the partition holds nothing
// yet.
type SnapshotStoreServer interface {
	// Authenticate exchanges the shared master key for an access token.
	Authenticate(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Download(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	Upload(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
}

type SnapshotStoreClient interface {
	Authenticate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Download(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Upload(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type snapshotStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewSnapshotStoreClient(cc grpc.ClientConnInterface) SnapshotStoreClient {
	return &snapshotStoreClient{cc: cc}
}

func (c *snapshotStoreClient) Authenticate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodAuthenticate, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *snapshotStoreClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodPing, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *snapshotStoreClient) Download(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, MethodDownload, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *snapshotStoreClient) Upload(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, MethodUpload, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterSnapshotStoreServer(s grpc.ServiceRegistrar, srv SnapshotStoreServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Authenticate", Handler: authenticateHandler},
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "Download", Handler: downloadHandler},
		{MethodName: "Upload", Handler: uploadHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "teadiary/remote/snapshot_store",
}

func authenticateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotStoreServer).Authenticate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodAuthenticate}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotStoreServer).Authenticate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotStoreServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPing}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotStoreServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func downloadHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotStoreServer).Download(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodDownload}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotStoreServer).Download(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func uploadHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotStoreServer).Upload(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodUpload}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotStoreServer).Upload(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}
