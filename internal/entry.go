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
	"golang.org/x/sync/errgroup"

	"github.com/starford/marginalia/internal/api"
	"github.com/starford/marginalia/internal/concepts"
	"github.com/starford/marginalia/internal/inbox"
	"github.com/starford/marginalia/internal/linking"
	"github.com/starford/marginalia/internal/mcpserver"
	"github.com/starford/marginalia/internal/metrics"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/openai"
	"github.com/starford/marginalia/internal/sse"
	"github.com/starford/marginalia/internal/store"
)

// components are the services shared by the HTTP and MCP entry points.
type components struct {
	logger *slog.Logger
	db     *store.DB
	svc    *notes.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build opens the database and wires the note service. events may be nil.
func (app *application) build(events notes.Publisher) (*components, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("embedding_model", cfg.OpenAI.EmbeddingModel),
		slog.String("chat_model", cfg.OpenAI.ChatModel),
		slog.String("inbox_path", cfg.Inbox.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path, store.WithCollectionFilter(cfg.Search.CollectionFilter))
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	client, err := openai.New(cfg.OpenAI.Client())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init openai client: %w", err)
	}

	linker := linking.NewService(linking.Deps{
		Embedder: client,
		Searcher: db,
		Edges:    db,
		Notes:    db,
		Concepts: concepts.NewCache(cfg.Linking.ConceptCacheSize),
		Logger:   logger,
	}, cfg.Linking.Linker())

	svc := notes.NewService(notes.Deps{
		Store:    db,
		Embedder: client,
		Chat:     client,
		Linker:   linker,
		Events:   events,
		Logger:   logger,
	})

	return &components{logger: logger, db: db, svc: svc}, nil
}

// Run starts the HTTP server, and the inbox watcher when configured.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.build(broker)
	if err != nil {
		return err
	}
	defer c.db.Close()
	logger := c.logger

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		pingCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := c.db.Ping(pingCtx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", metrics.Enable())
	}

	// Mount API routes under /api; the SSE stream shares the auth middleware.
	r.Mount("/api", api.NewRouter(c.svc, cfg.Auth.API(), broker.Handler(api.UserFromRequest)))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Inbox.Enabled() {
		box := inbox.New(cfg.Inbox.Path, cfg.ownerOf(cfg.Inbox.UserID), cfg.Inbox.BookTitle, c.svc, logger)
		g.Go(func() error {
			if err := box.Watch(gCtx); err != nil {
				return fmt.Errorf("inbox: %w", err)
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout for the default user. Logs go
// to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	c, err := app.build(nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	userID := app.config.ownerOf("")
	if userID == "" {
		return errors.New("mcp: auth.default_user is required")
	}

	c.logger.Info("MCP server starting", slog.String("user_id", userID))
	return mcpserver.New(c.svc, userID, app.version).Listen(ctx, os.Stdin, os.Stdout)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}
