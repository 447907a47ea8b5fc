package transport

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/teadiary/internal/client/kv"
	"github.com/dmitrijs2005/teadiary/internal/logging"
)

const (
	KindLocal = "local"
	KindHTTP  = "http"
	KindGRPC  = "grpc"
	KindS3    = "s3"
)

// Settings selects and configures a transport.
type Settings struct {
	Kind      string
	RemoteURL string
	MasterKey string
	GRPCAddr  string
	S3        S3Config
}

// Local is the surface New needs from the local store: raw keys for the
// local transport and the partition cache for the HTTP one.
type Local interface {
	BinCache
	KV() kv.Store
}

// New builds the transport named by s.Kind. An empty kind means local.
func New(ctx context.Context, s Settings, local Local, log logging.Logger) (Transport, error) {
	switch s.Kind {
	case "", KindLocal:
		return NewLocalTransport(local.KV()), nil
	case KindHTTP:
		if s.RemoteURL == "" {
			return nil, fmt.Errorf("transport %q requires remote_url", s.Kind)
		}
		return NewHTTPTransport(s.RemoteURL, s.MasterKey, local, WithHTTPLogger(log.With("transport", KindHTTP))), nil
	case KindGRPC:
		if s.GRPCAddr == "" {
			return nil, fmt.Errorf("transport %q requires grpc_addr", s.Kind)
		}
		return NewGRPCTransport(s.GRPCAddr, s.MasterKey)
	case KindS3:
		if s.S3.Bucket == "" {
			return nil, fmt.Errorf("transport %q requires s3_bucket", s.Kind)
		}
		return NewS3Transport(ctx, s.S3)
	default:
		return nil, fmt.Errorf("unknown transport %q", s.Kind)
	}
}
