package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"StockTracker/pkg/config"
	xhttp "StockTracker/pkg/http"
	applogger "StockTracker/pkg/logger"
)

// App encapsulates the application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server) *App {
	return &App{cfg: cfg, l: l, httpServer: httpServer}
}

// Run starts the HTTP server and blocks until ctx is cancelled, an interrupt
// arrives, or the listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.l.Info("starting stocktracker",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.Backend.Type),
	)

	errs := a.httpServer.Start()

	select {
	case err, ok := <-errs:
		if ok && err != nil {
			a.l.Error("http server start error", applogger.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	}

	return a.shutdown()
}

// shutdown gracefully stops the HTTP server. Infrastructure clients are closed
// by the cleanup returned from the injector.
func (a *App) shutdown() error {
	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}
	a.l.Info("shutdown complete")
	return nil
}
