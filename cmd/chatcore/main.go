// DreamPath chat core - session and agent task orchestration gateway
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/dreampath/chatcore/internal/agenttask"
	"github.com/dreampath/chatcore/internal/api"
	"github.com/dreampath/chatcore/internal/backend"
	"github.com/dreampath/chatcore/internal/chat"
	"github.com/dreampath/chatcore/internal/config"
	"github.com/dreampath/chatcore/internal/identity"
	"github.com/dreampath/chatcore/internal/middleware"
	"github.com/dreampath/chatcore/internal/research"
	"github.com/dreampath/chatcore/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting chat core", "port", cfg.Port, "backend", cfg.BackendURL, "dev", cfg.IsDevelopment())

	// Initialize stores.
	durable, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize durable store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := durable.Close(); closeErr != nil {
			slog.Error("Failed to close durable store", "error", closeErr)
		}
	}()

	if err := durable.Ping(context.Background()); err != nil {
		slog.Error("Durable store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Durable store connected", "path", cfg.DBPath)

	volatile := store.NewMemory()

	// Backend client and orchestration services.
	client := backend.NewClient(backend.Config{
		BaseURL:         cfg.BackendURL,
		AgentServiceURL: cfg.AgentServiceURL,
		RequestTimeout:  cfg.RequestTimeout,
	}, logger)

	tracker := identity.NewTracker(durable, client, logger)
	aggregator := research.NewAggregator(client, logger)
	poller := agenttask.NewWithPacing(client, aggregator, cfg.Poll.Interval, cfg.Poll.MaxAttempts, logger)
	transcript := chat.NewTranscript(volatile, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := chat.NewManager(ctx, client, durable, tracker, poller, transcript, logger)

	// Initialize handlers.
	chatHandler := api.NewChatHandler(manager, tracker, durable, aggregator)
	researchHandler := api.NewResearchHandler(aggregator, client)
	healthHandler := api.NewHealthHandler(durable)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{"*"}))

	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)
	researchHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Gateway listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	poller.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
