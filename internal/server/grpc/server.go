// Package grpc serves the SnapshotStore service: clients exchange the master
// key for an access token and then upload or download the snapshot of one
// partition per call.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/rpc"
	"github.com/dmitrijs2005/teadiary/internal/server/models"
)

// SnapshotService is the part of services.BinService the gRPC front end
// uses.
type SnapshotService interface {
	Authenticate(ctx context.Context, masterKey string) (string, error)
	CheckToken(token string) (string, error)
	Download(ctx context.Context, partitionKey string) (*models.Bin, error)
	Upload(ctx context.Context, partitionKey string, content []byte) (*models.Bin, error)
}

type GRPCServer struct {
	address string
	bins    SnapshotService
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, bins SnapshotService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		bins:    bins,
	}
}

// newServer builds the grpc.Server with interceptors and the service
// registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	rpc.RegisterSnapshotStoreServer(srv, s)
	return srv
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}
