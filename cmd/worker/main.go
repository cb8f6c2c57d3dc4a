// Package main is the entrypoint for the supportcrew pipeline worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexvand/supportcrew/internal/agent"
	"github.com/alexvand/supportcrew/internal/config"
	"github.com/alexvand/supportcrew/internal/fetch"
	"github.com/alexvand/supportcrew/internal/pipeline"
	"github.com/alexvand/supportcrew/internal/store"
	"github.com/alexvand/supportcrew/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "job_timeout", cfg.Worker.JobTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobStore, err := store.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis store: %w", err)
	}
	defer jobStore.Close()

	if err := jobStore.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	provider, err := agent.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", provider.Name())

	crawler := fetch.NewCrawler(provider)

	engine, err := pipeline.New(provider, crawler)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	w := worker.New(jobStore, engine, cfg.Worker.JobTimeout)

	slog.Info("worker started")
	w.Start(ctx)
	slog.Info("worker stopped gracefully")
	return nil
}
