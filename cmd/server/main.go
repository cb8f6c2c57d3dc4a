// Package main is the entrypoint for the supportcrew API server.
package main

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

	"github.com/alexvand/supportcrew/internal/api"
	"github.com/alexvand/supportcrew/internal/api/handler"
	mw "github.com/alexvand/supportcrew/internal/api/middleware"
	"github.com/alexvand/supportcrew/internal/api/response"
	"github.com/alexvand/supportcrew/internal/catalog"
	"github.com/alexvand/supportcrew/internal/config"
	"github.com/alexvand/supportcrew/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to the Redis job store
	jobStore, err := store.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis store: %w", err)
	}
	defer jobStore.Close()

	if err := jobStore.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 3. Load the link catalogs once; every enqueued job snapshots them
	links, err := catalog.Load(cfg.Catalog.LinksFile)
	if err != nil {
		return fmt.Errorf("load links catalog: %w", err)
	}
	docsLinks, err := catalog.Load(cfg.Catalog.DocsLinksFile)
	if err != nil {
		return fmt.Errorf("load docs links catalog: %w", err)
	}
	slog.Info("catalogs loaded", "links", len(links), "docs_links", len(docsLinks))

	catalogs := handler.Catalogs{Links: links, DocsLinks: docsLinks}

	// 4. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(jobStore, cfg.RateLimit.RequestsPerMinute),

		HealthHandler:  healthHandler(jobStore, cfg),
		SupportHandler: handler.NewSupportHandler(jobStore, catalogs),
		StatusHandler:  handler.NewStatusHandler(jobStore),
		WebhookHandler: handler.NewWebhookHandler(jobStore, catalogs, cfg.Webhook.Secret),
	}

	router := api.NewRouter(deps)

	// 5. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks job-store connectivity and that required secrets are
// configured. It reports presence only, never values.
func healthHandler(s store.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"job_store":      "ok",
			"webhook_secret": "configured",
			"ai_credentials": "configured",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["job_store"] = "degraded"
		}
		if cfg.Webhook.Secret == "" {
			checks["webhook_secret"] = "missing"
		}
		if cfg.AI.Provider == "openai" && cfg.AI.OpenAI.APIKey == "" {
			checks["ai_credentials"] = "missing"
		}

		degraded := false
		for _, v := range checks {
			if v != "ok" && v != "configured" {
				degraded = true
			}
		}
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
