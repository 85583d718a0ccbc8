// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/outline/internal/api"
	"github.com/starford/outline/internal/confwatch"
	"github.com/starford/outline/internal/fanout"
	"github.com/starford/outline/internal/logging"
	"github.com/starford/outline/internal/mcpserver"
	"github.com/starford/outline/internal/memstore"
	"github.com/starford/outline/internal/metrics"
	"github.com/starford/outline/internal/seed"
	"github.com/starford/outline/internal/sse"
	"github.com/starford/outline/internal/store"
	"github.com/starford/outline/internal/tree"
	pkgconfig "github.com/starford/outline/pkg/config"
)

// backend is a tree store that can also be seeded.
type backend interface {
	tree.Store
	seed.Inserter
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// openStore opens the configured backend and imports the seed file if any.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (backend, func() error, error) {
	var (
		b       backend
		closeFn = func() error { return nil }
	)
	switch cfg.Storage.Driver {
	case DriverMemory:
		b = memstore.New()
	default:
		db, err := store.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init store: %w", err)
		}
		b, closeFn = db, db.Close
	}

	if cfg.Seed.Path != "" {
		if _, err := seed.Import(ctx, b, cfg.Seed.Path, logger); err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("import seed: %w", err)
		}
	}
	return b, closeFn, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logs := logging.New(os.Stdout, cfg.App.LogFormat, cfg.App.LogLevel)
	logger := logs.Logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()
	if cfg.Metrics.Enabled {
		if err := metrics.RegisterSSEClients(broker.ClientCount); err != nil {
			logger.Warn("SSE client gauge not registered", slog.String("error", err.Error()))
		}
	}

	engineOpts := []tree.Option{
		tree.WithLogger(logger),
		tree.WithPublisher(broker),
	}
	if cfg.Redis.Enabled() {
		fan, err := fanout.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Channel, cfg.App.Instance, logger)
		if err != nil {
			return err
		}
		defer fan.Close()
		engineOpts = append(engineOpts, tree.WithPublisher(fan))
		logger.Info("Redis fan-out enabled", slog.String("channel", cfg.Redis.Channel))
	}
	engine := tree.New(st, engineOpts...)

	apiRouter := api.NewRouter(engine, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := st.CountEdges(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Live log level reload.
	if app.configPath != "" {
		g.Go(func() error {
			err := confwatch.Watch(gCtx, app.configPath, logger, func() {
				reloadLogLevel(app.configPath, logs, logger)
			})
			if err != nil {
				logger.Warn("config watch disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so background watchers stop with the server.
var errShutdown = errors.New("shutdown")

func reloadLogLevel(path string, logs *logging.Logging, logger *slog.Logger) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		logger.Warn("config reload failed", slog.String("error", err.Error()))
		return
	}
	if cfg.App.LogLevel == logs.Level() {
		return
	}
	logs.SetLevel(cfg.App.LogLevel)
	logger.Info("Log level changed", slog.String("log_level", cfg.App.LogLevel.String()))
}

// RunMCP serves the tree tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := logging.New(os.Stderr, cfg.App.LogFormat, cfg.App.LogLevel).Logger
	slog.SetDefault(logger)

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := tree.New(st, tree.WithLogger(logger))
	logger.Info("MCP server starting on stdio")
	return serveMCP(mcpserver.New(engine), logger)
}

func serveMCP(srv *mcpserver.Server, logger *slog.Logger) error {
	if err := srv.ServeStdio(); err != nil && !errors.Is(err, io.EOF) {
		logger.Error("MCP server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
