package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/teadiary/internal/common"
	"github.com/dmitrijs2005/teadiary/internal/models"
	"github.com/dmitrijs2005/teadiary/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GRPCTransport reaches the SnapshotStore service. The master key is
// exchanged for a short-lived access token on first use and again whenever
// the server reports the token expired.
type GRPCTransport struct {
	endpointURL string
	masterKey   string
	conn        *grpc.ClientConn
	client      rpc.SnapshotStoreClient

	mu          sync.Mutex
	accessToken string
}

func NewGRPCTransport(endpointURL, masterKey string) (*GRPCTransport, error) {
	c := &GRPCTransport{endpointURL: endpointURL, masterKey: masterKey}
	if err := c.initGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCTransport) initGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewSnapshotStoreClient(conn)
	return nil
}

func withMetadata(ctx context.Context, key, value string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(key)
	md.Set(key, value)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCTransport) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

func (s *GRPCTransport) authenticate(ctx context.Context) (string, error) {
	resp, err := s.client.Authenticate(ctx, wrapperspb.String(s.masterKey))
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.accessToken = resp.GetValue()
	s.mu.Unlock()
	return resp.GetValue(), nil
}

func (s *GRPCTransport) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method == rpc.MethodAuthenticate || method == rpc.MethodPing {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	token := s.token()
	if token == "" {
		var err error
		if token, err = s.authenticate(ctx); err != nil {
			return err
		}
	}

	err := invoker(withMetadata(ctx, common.AccessTokenHeaderName, token), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() != codes.Unauthenticated {
		return err
	}
	if st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	token, err = s.authenticate(ctx)
	if err != nil {
		return err
	}
	return invoker(withMetadata(ctx, common.AccessTokenHeaderName, token), method, req, reply, cc, opts...)
}

func (s *GRPCTransport) Upload(ctx context.Context, email string, snap models.Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	ctx = withMetadata(ctx, common.PartitionHeaderName, PartitionKeyFor(email))

	if _, err := s.client.Upload(ctx, wrapperspb.Bytes(data)); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCTransport) Download(ctx context.Context, email string) (models.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	ctx = withMetadata(ctx, common.PartitionHeaderName, PartitionKeyFor(email))

	resp, err := s.client.Download(ctx, &emptypb.Empty{})
	if err != nil {
		return models.Snapshot{}, s.mapError(err)
	}
	return models.ParseSnapshot(resp.GetValue())
}

func (s *GRPCTransport) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := s.client.Ping(ctx, &emptypb.Empty{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetValue() != rpc.PingOK {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCTransport) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCTransport) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.NotFound:
		return ErrAbsent
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", models.ErrMalformedSnapshot, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
