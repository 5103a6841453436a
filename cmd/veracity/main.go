// Veracity analysis server: provides the HTTP API, manages pipeline
// workers, and runs submitted videos through the inspection pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veracity-labs/veracity/pkg/api"
	"github.com/veracity-labs/veracity/pkg/config"
	"github.com/veracity-labs/veracity/pkg/events"
	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/inspect/builtin"
	"github.com/veracity-labs/veracity/pkg/jobs"
	"github.com/veracity-labs/veracity/pkg/media"
	"github.com/veracity-labs/veracity/pkg/metrics"
	"github.com/veracity-labs/veracity/pkg/pipeline"
	"github.com/veracity-labs/veracity/pkg/queue"
	"github.com/veracity-labs/veracity/pkg/version"
	"github.com/veracity-labs/veracity/pkg/workspace"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config",
		getEnv("VERACITY_CONFIG", ""),
		"Path to the YAML configuration file (built-in defaults when empty)")
	flag.Parse()

	// Load .env when present; explicit environment always wins.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	slog.Info("Starting veracity",
		"version", version.Full(),
		"config", *configPath)

	ctx := context.Background()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Register metrics collectors
	metrics.Register(prometheus.DefaultRegisterer)

	// 3. Job store and workspace manager
	store := jobs.NewStore()
	workspaces, err := workspace.NewManager(cfg.Workspace.BasePath)
	if err != nil {
		slog.Error("Failed to prepare workspace base", "error", err)
		os.Exit(1)
	}
	sweeper := workspace.NewSweeper(workspaces,
		cfg.Workspace.SweepMaxAge(), cfg.Workspace.SweepInterval())
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 4. Inspector registry with the frozen weight table
	registry := inspect.NewRegistry()
	if err := builtin.RegisterAll(registry); err != nil {
		slog.Error("Failed to register built-in inspectors", "error", err)
		os.Exit(1)
	}
	if err := registry.ApplyOverrides(cfg.Inspectors); err != nil {
		slog.Error("Invalid inspector overrides", "error", err)
		os.Exit(1)
	}
	weights, err := inspect.WeightsFor(cfg.Pipeline.Version)
	if err != nil {
		slog.Error("Unknown pipeline version",
			"version", cfg.Pipeline.Version, "error", err)
		os.Exit(1)
	}

	// 5. Streaming infrastructure
	connManager := events.NewConnectionManager(10 * time.Second)
	publisher := events.NewPublisher(connManager)
	slog.Info("Streaming infrastructure initialized")

	// 6. Pipeline orchestrator and worker pool (before HTTP server)
	sampler := media.NewSampler(cfg.Sampler)
	dispatcher := inspect.NewDispatcher(registry, cfg.Pipeline.MaxConcurrentInspectorsPerJob)
	orchestrator := pipeline.NewOrchestrator(
		store, workspaces, sampler, dispatcher, weights, cfg, publisher)

	admission := queue.NewQueue(cfg.Pipeline.AdmissionQueueCapacity)
	workerPool := queue.NewWorkerPool(admission, orchestrator, cfg.Pipeline.MaxConcurrentJobs)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	service := pipeline.NewService(store, admission, workerPool,
		cfg.Server.MaxUploadBytes, cfg.Pipeline.Version, publisher)

	// 7. Create HTTP server
	gin.SetMode(gin.ReleaseMode)
	httpServer := api.NewServer(cfg, service, connManager)

	// 8. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Veracity started successfully",
		"workers", cfg.Pipeline.MaxConcurrentJobs,
		"queue_capacity", cfg.Pipeline.AdmissionQueueCapacity,
		"pipeline_version", cfg.Pipeline.Version)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown. The pool goes first: in-flight jobs get
	// cancelled and write their terminal state while subscribers are still
	// connected to see it.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout())
	defer cancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Worker pool shutdown timeout exceeded")
	}

	connManager.Shutdown()

	// Stop HTTP server with its own timeout budget
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
