// deskagent - natural-language desktop automation server
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

	"github.com/ashureev/deskagent/internal/agent"
	"github.com/ashureev/deskagent/internal/api"
	"github.com/ashureev/deskagent/internal/config"
	"github.com/ashureev/deskagent/internal/executor"
	"github.com/ashureev/deskagent/internal/middleware"
	"github.com/ashureev/deskagent/internal/planner"
	"github.com/ashureev/deskagent/internal/store"
	"github.com/ashureev/deskagent/internal/ws"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Execution boundary: HTTP proxy to the VNC executor service, or a
	// direct docker exec into the VNC container.
	var exec executor.Executor
	switch cfg.Executor.Mode {
	case "docker":
		dockerExec, err := executor.NewDockerExecutor(cfg.Executor.ContainerName, cfg.VNC.Display, logger)
		if err != nil {
			slog.Error("Failed to initialize docker executor", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := dockerExec.Close(); closeErr != nil {
				slog.Error("Failed to close docker executor", "error", closeErr)
			}
		}()
		exec = dockerExec
		slog.Info("Docker executor initialized", "container", cfg.Executor.ContainerName)
	default:
		exec = executor.NewHTTPExecutor(cfg.Executor.URL, cfg.Executor.CommandTimeout, logger)
		slog.Info("HTTP executor initialized", "url", cfg.Executor.URL)
	}

	dispatcher := executor.NewDispatcher(exec, cfg.Executor.CommandTimeout, logger)

	// Planner: generative backend with deterministic fallback. Without an
	// API key every turn goes straight to the fallback.
	fallback := planner.NewFallback()
	var primary planner.Planner
	if cfg.LLM.Enabled() {
		primary = planner.NewGenerative(cfg.LLM, logger)
		slog.Info("Generative planner enabled", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	} else {
		slog.Info("Generative planner disabled (COMET_API_KEY not set), using fallback planner")
	}
	pl := planner.NewWithFallback(primary, fallback, logger)

	// Initialize services.
	svc := agent.NewService(pl, dispatcher, repo, logger)

	// Initialize handlers.
	sessionHandler := api.NewSessionHandler(repo, cfg, svc)
	messageHandler := api.NewMessageHandler(repo)
	executorHandler := api.NewExecutorHandler(exec)
	healthHandler := api.NewHealthHandler(repo)
	agentHandler := agent.NewHandler(svc, repo, cfg)
	wsHandler := ws.NewHandler(svc, repo, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	// Routes.
	healthHandler.RegisterHealth(r)
	sessionHandler.RegisterRoutes(r)
	messageHandler.RegisterRoutes(r)
	executorHandler.RegisterRoutes(r)
	agentHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	// Create server.
	// Note: WebSocket connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start idle-session reaper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.StartReaper(ctx, cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
