// Harrier - Candidate matching for commercial real-estate leasing.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openlease/harrier/internal/api"
	"github.com/openlease/harrier/internal/bus"
	"github.com/openlease/harrier/internal/cache"
	"github.com/openlease/harrier/internal/compliance"
	"github.com/openlease/harrier/internal/domain"
	"github.com/openlease/harrier/internal/embedding"
	"github.com/openlease/harrier/internal/matcher"
	"github.com/openlease/harrier/internal/repository"
	"github.com/openlease/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// Scoring regime override
	if mode := os.Getenv("HARRIER_MODE"); mode != "" {
		cfg.MatchingMode = domain.MatchingMode(mode)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"mode", cfg.MatchingMode,
		"catalog", cfg.Catalog.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Catalog store
	catalog, err := repository.New(cfg.Catalog)
	if err != nil {
		slog.Error("failed to initialize catalog", "error", err)
		os.Exit(1)
	}
	defer catalog.Close()
	slog.Info("catalog initialized", "driver", cfg.Catalog.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Compliance Evaluator
	evaluator, err := compliance.NewEvaluator()
	if err != nil {
		slog.Error("failed to initialize compliance evaluator", "error", err)
		os.Exit(1)
	}
	slog.Info("compliance evaluator initialized", "builtin_rules", len(evaluator.Rules()))

	// Initialize Embedding Engine
	var reranker matcher.Reranker
	if cfg.Embedding.Enabled {
		engine := embedding.NewEngine(cfg.Embedding, cacheImpl,
			embedding.WithLogger(logger),
			embedding.WithStore(catalog),
		)
		reranker = engine
		slog.Info("embedding engine initialized",
			"dim", cfg.Embedding.Dim,
			"cache_ttl", cfg.Embedding.CacheTTL,
		)
	} else {
		slog.Info("embedding re-ranking disabled")
	}

	// Initialize Matcher
	opts := []matcher.Option{
		matcher.WithBus(busImpl),
		matcher.WithLogger(logger),
		matcher.WithMode(cfg.MatchingMode),
	}
	if reranker != nil {
		opts = append(opts, matcher.WithReranker(reranker))
	}
	m := matcher.New(evaluator, opts...)
	slog.Info("matcher initialized", "mode", cfg.MatchingMode)

	// Initialize async Worker
	asyncWorker := worker.NewWorker(busImpl, catalog, m)
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start async worker", "error", err)
	} else {
		slog.Info("async worker started")
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, catalog, cacheImpl, busImpl, evaluator, m, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                  HARRIER")
	fmt.Println("      Commercial Lease Matching Engine")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Mode:     %s\n", cfg.MatchingMode)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /match             - Run a matching search")
	fmt.Println("    POST /match/async       - Queue a matching search")
	fmt.Println("    GET  /outcomes/{id}     - Get a recorded run by ID")
	fmt.Println("    POST /properties        - Create or update a listing")
	fmt.Println("    GET  /properties/{id}   - Get a listing by ID")
	fmt.Println("    DELETE /properties/{id} - Delete a listing")
	fmt.Println("    GET  /rules             - List compliance rules")
	fmt.Println("    POST /rules             - Load a custom CEL rule")
	fmt.Println("    POST /rules/reload      - Replace the custom rule set")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println()
}
