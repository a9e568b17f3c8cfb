// Package app provides the top-level application lifecycle management for the
// trading simulation backend. It wires together all dependencies (stores,
// caches, the broker gateway, the realtime relay, and the HTTP server) and
// runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alphadeck/papertrade/internal/config"
)

// shutdownTimeout bounds how long in-flight HTTP requests get to finish.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the relay,
// the websocket hub, the HTTP server, and the optional archive loop, and
// blocks until the context is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Relay.Run(gctx)
	})
	g.Go(func() error {
		return deps.Hub.Run(gctx)
	})
	if deps.Archive != nil {
		g.Go(func() error {
			return deps.Archive.Run(gctx)
		})
	}
	g.Go(func() error {
		return deps.Server.Start()
	})
	g.Go(func() error {
		// Shut down the HTTP server when anything else stops, so Start
		// unblocks and the group can drain.
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return deps.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
