// Command careconnect serves the CareConnect reporting dashboard.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/okian/careconnect/internal/adapters/http/api"
	"github.com/okian/careconnect/internal/adapters/http/site"
	"github.com/okian/careconnect/internal/adapters/http/swagger"
	app "github.com/okian/careconnect/internal/app"
	"github.com/okian/careconnect/internal/config"
	"github.com/okian/careconnect/pkg/logger"
	"github.com/okian/careconnect/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 40 * time.Second // covers /api/dashboard?wait=30s
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load config")
	}

	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return goerr.Wrap(err, "invalid log format", goerr.V("log_format", cfg.LogFormat))
	}
	if err := logger.Init(logger.WithFormat(format)); err != nil {
		return goerr.Wrap(err, "failed to initialize logging")
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Init(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithCustomLabels(cfg.MetricsLabels),
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
	)

	svc := app.New(
		app.WithLogger(log),
		app.WithBaseURL(cfg.APIBaseURL),
		app.WithRequestTimeout(cfg.RequestTimeout()),
		app.WithMaxResponseBytes(cfg.MaxResponseBytes),
		app.WithQueueSize(cfg.DeliveryQueueSize),
		app.WithSections(cfg.Sections()),
		app.WithTitle(cfg.DashboardTitle),
	)
	if err := svc.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start service")
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
		return goerr.Wrap(err, "HTTP server failed", goerr.V("addr", cfg.Addr))
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newMux registers every route: docs, dashboard API and the landing site.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater periodically records process metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
