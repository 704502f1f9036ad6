// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/solace/internal/api"
	"github.com/starford/solace/internal/auth"
	"github.com/starford/solace/internal/enrichment"
	"github.com/starford/solace/internal/generation"
	"github.com/starford/solace/internal/journal"
	"github.com/starford/solace/internal/mcpserver"
	"github.com/starford/solace/internal/metrics"
	"github.com/starford/solace/internal/patterns"
	"github.com/starford/solace/internal/sanitize"
	"github.com/starford/solace/internal/sse"
	"github.com/starford/solace/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// core holds the components shared by the HTTP and MCP modes.
type core struct {
	db       *storage.DB
	sessions *journal.Sessions
	patterns *patterns.Registry
}

func (a *application) buildCore(logger *slog.Logger, rec metrics.Recorder, events journal.Publisher) (*core, error) {
	cfg := a.config

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	client := enrichment.NewClient(cfg.Enrichment.ClientConfig(cfg.App.HTTP.Port), nil, logger, rec)

	sessions := journal.NewSessions(journal.Deps{
		Identity:          auth.ContextSource{},
		Repo:              db,
		Enricher:          client,
		Events:            events,
		Sanitizer:         sanitize.New(),
		Metrics:           rec,
		Logger:            logger,
		Location:          loc,
		BackgroundTimeout: cfg.Enrichment.BackgroundTimeout,
	})

	reg := patterns.NewRegistry()
	if cfg.Patterns.File != "" {
		if _, err := reg.LoadFile(cfg.Patterns.File); err != nil {
			logger.Warn("initial pattern load failed",
				slog.String("file", cfg.Patterns.File),
				slog.String("error", err.Error()))
		}
	}

	return &core{db: db, sessions: sessions, patterns: reg}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("timezone", cfg.App.Timezone),
		slog.String("patterns_file", cfg.Patterns.File),
		slog.String("log_level", cfg.App.LogLevel.String()))

	verifier, err := cfg.Auth.Verifier()
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(promReg)

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.buildCore(logger, rec, broker)
	if err != nil {
		return err
	}
	defer c.db.Close()

	var gen enrichment.Generator
	if cfg.Generation.APIKey != "" {
		provider, err := generation.NewAnthropic(generation.Config{
			APIKey:  cfg.Generation.APIKey,
			BaseURL: cfg.Generation.BaseURL,
			Model:   cfg.Generation.Model,
			Timeout: cfg.Generation.Timeout,
		})
		if err != nil {
			return fmt.Errorf("init generation: %w", err)
		}
		gen = provider
	} else {
		logger.Warn("generation api key not set, /enrichment will fail")
	}

	limiter := api.NewRateLimiter(api.RateLimiterConfig{
		PerMinute: cfg.RateLimit.PerMinute,
		Burst:     cfg.RateLimit.Burst,
	})
	defer limiter.Stop()

	apiRouter := api.NewRouter(api.RouterConfig{
		Sessions: c.sessions,
		Patterns: c.patterns,
		Verifier: verifier,
		Limiter:  limiter,
		Events:   broker,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler(promReg))

	// Enrichment endpoint answers non-POST methods itself.
	r.Handle("/enrichment", enrichment.NewHandler(verifier, gen, logger, rec))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload patterns when the detector rewrites its file.
	if cfg.Patterns.File != "" {
		g.Go(func() error {
			err := patterns.Watch(gCtx, c.patterns, cfg.Patterns.File, logger, func() {
				logger.Info("patterns reloaded", slog.Int("count", c.patterns.Len()))
			})
			if err != nil {
				logger.Warn("pattern watcher stopped", slog.String("error", err.Error()))
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

	err = g.Wait()

	// Let background enrichment settle before the database closes.
	c.sessions.Close()

	if err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been asked to stop so
// the pattern watcher exits too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the journal over MCP on stdio, acting as the identity the
// configured MCP token resolves to.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	id, err := cfg.MCPIdentity()
	if err != nil {
		return fmt.Errorf("mcp identity: %w", err)
	}

	c, err := app.buildCore(logger, metrics.Nop{}, nil)
	if err != nil {
		return err
	}
	defer c.db.Close()
	defer c.sessions.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Patterns.File != "" {
		go func() {
			if err := patterns.Watch(watchCtx, c.patterns, cfg.Patterns.File, logger, nil); err != nil {
				logger.Warn("pattern watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("MCP server starting on stdio", slog.String("user_id", id.UserID))
	return mcpserver.New(c.sessions, c.patterns, id).ServeStdio()
}

// Migrate applies pending schema migrations and exits.
func Migrate(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()
	if err := storage.Migrate(app.config.SQLite.Path); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied", slog.String("sqlite_path", app.config.SQLite.Path))
	return nil
}
