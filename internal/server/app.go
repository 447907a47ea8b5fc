// Package server initializes and runs the document store: it picks the
// storage backend, builds the bin service and serves it over HTTP and gRPC
// until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/teadiary/internal/dbx"
	"github.com/dmitrijs2005/teadiary/internal/logging"
	"github.com/dmitrijs2005/teadiary/internal/server/config"
	"github.com/dmitrijs2005/teadiary/internal/server/httpapi"
	"github.com/dmitrijs2005/teadiary/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/teadiary/internal/server/services"

	gs "github.com/dmitrijs2005/teadiary/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	binService *services.BinService
	storage    string
}

// NewApp connects to PostgreSQL when a DSN is configured and falls back to
// an in-memory store otherwise.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app := &App{config: c, logger: logger}

	var (
		m    repomanager.RepositoryManager
		conn dbx.DBTX
	)
	if c.DatabaseDSN != "" {
		m = repomanager.NewPostgresRepositoryManager()
		db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN, m)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.db = db
		app.storage = "postgres"
		conn = db
	} else {
		m = repomanager.NewInMemoryRepositoryManager()
		app.storage = "memory"
		logger.Warn(ctx, "No database configured, bins are kept in memory")
	}

	app.binService = services.NewBinService(conn, m, c)
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.binService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.binService, httpapi.Options{
		Version: app.config.APIVersion,
		Storage: app.storage,
	})
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until both servers stop. A failure in either stops the other.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.storage)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err)
		}
	}
	app.logger.Info(context.Background(), "App stopped")
}
