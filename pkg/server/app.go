package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	drepo "StockForecaster/internal/domain/repository"
	icache "StockForecaster/internal/service/cache"
	"StockForecaster/pkg/config"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/logger"
)

// App owns the HTTP server and the resources that must be closed after it stops.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *xhttp.Server
	cache      *icache.Store
	publisher  drepo.EventPublisher
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	httpServer *xhttp.Server,
	cache *icache.Store,
	publisher drepo.EventPublisher,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		cache:      cache,
		publisher:  publisher,
	}
}

// Run starts serving and blocks until SIGINT/SIGTERM, ctx cancellation or a
// listener failure, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.httpServer.Start()
	a.log.Info("service started",
		logger.String("service", a.cfg.ProjectName),
		logger.String("version", a.cfg.Version),
		logger.String("environment", a.cfg.Environment),
		logger.Int("port", a.cfg.Server.Port),
		logger.String("cache_backend", a.cache.Backend()),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
		a.log.Error("http server exited", logger.Error(runErr))
	}
	return errors.Join(runErr, a.shutdown())
}

// shutdown stops the server first so no request observes closed resources.
func (a *App) shutdown() error {
	a.log.Info("shutting down")

	var errs []error
	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
		errs = append(errs, err)
	}
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("event publisher close error", logger.Error(err))
		errs = append(errs, err)
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("cache close error", logger.Error(err))
		errs = append(errs, err)
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
