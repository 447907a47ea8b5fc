// Package httpapi is the REST front end of the document store. Clients
// create a bin per partition, overwrite it with PUT and read it back with
// GET; /api/notify relays change notifications between connected peers.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/server/models"
)

const (
	maxBodySize     = 32 << 20
	shutdownTimeout = 5 * time.Second
	poweredBy       = "TeaDiary"
)

// BinStore is the part of services.BinService the HTTP front end uses.
type BinStore interface {
	CheckMasterKey(key string) bool
	CheckToken(token string) (string, error)
	Create(ctx context.Context, name string, content []byte) (*models.Bin, error)
	Get(ctx context.Context, id string) (*models.Bin, error)
	GetByName(ctx context.Context, name string) (*models.Bin, error)
	Put(ctx context.Context, id string, content []byte) (*models.Bin, error)
	Count(ctx context.Context) (int, error)
}

type Options struct {
	Version string
	// Storage names the backing store in health reports.
	Storage string
}

type Server struct {
	address string
	bins    BinStore
	hub     *Hub
	logger  logging.Logger
	opts    Options
	now     func() time.Time
	visits  atomic.Int64
}

func NewServer(address string, l logging.Logger, bins BinStore, opts Options) *Server {
	l = l.With("module", "http_server")
	return &Server{
		address: address,
		bins:    bins,
		hub:     NewHub(l),
		logger:  l,
		opts:    opts,
		now:     time.Now,
	}
}

// Handler returns the complete route table wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /api/stats", s.requireAuth(http.HandlerFunc(s.handleStats)))
	mux.Handle("GET /api/notify", s.requireAuth(http.HandlerFunc(s.handleNotify)))

	mux.Handle("POST /b", s.requireAuth(http.HandlerFunc(s.handleCreate)))
	mux.Handle("GET /b", s.requireAuth(http.HandlerFunc(s.handleLookup)))
	mux.Handle("GET /b/{id}", s.requireAuth(http.HandlerFunc(s.handleGet)))
	mux.Handle("PUT /b/{id}", s.requireAuth(http.HandlerFunc(s.handlePut)))

	return s.recoverer(s.logRequests(s.commonHeaders(mux)))
}

// Serve handles requests on lis until ctx is cancelled, then shuts down
// gracefully and disconnects notification peers.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}
