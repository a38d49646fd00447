package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/isekai-engine/internal/config"
	"github.com/jwebster45206/isekai-engine/internal/content"
	"github.com/jwebster45206/isekai-engine/internal/logger"
	"github.com/jwebster45206/isekai-engine/internal/pipeline"
	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/internal/services/queue"
	"github.com/jwebster45206/isekai-engine/internal/storage/sqlite"
	"github.com/jwebster45206/isekai-engine/internal/telemetry"
	"github.com/jwebster45206/isekai-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Isekai Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"llm_provider", cfg.LLMProvider)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "isekai-worker", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("Error flushing traces", "error", err)
		}
	}()

	// Initialize queue service
	queueClient, err := queue.NewClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	log.Info("Queue service initialized successfully")

	// Initialize storage service
	store, err := sqlite.Open(ctx, cfg.SQLitePath, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err, "path", cfg.SQLitePath)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()
	log.Info("Storage service initialized successfully")

	library, err := content.Load(ctx, cfg.ContentDir, log)
	if err != nil {
		log.Error("Failed to load world content", "error", err, "dir", cfg.ContentDir)
		os.Exit(1)
	}

	llmService, err := services.NewLLMService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize LLM service", "error", err)
		os.Exit(1)
	}
	log.Info("LLM service initialized successfully", "provider", cfg.LLMProvider)

	orch := pipeline.New(llmService, cfg, library, log, pipeline.WithTracer(telemetry.Tracer()))
	processor := worker.NewProcessor(store, orch, cfg.Engine.MaxTurnsPerDay, log)

	w := worker.New(queueClient, processor, log, cfg.WorkerID)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
		}
	}()

	log.Info("Worker started, waiting for requests...", "worker_id", w.ID())

	<-quit
	log.Info("Worker shutdown signal received")
	w.Stop()

	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		log.Warn("Worker did not stop in time")
	}
	log.Info("Worker exited")
}
