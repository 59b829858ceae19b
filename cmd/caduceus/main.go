// Caduceus - Medical expense credit decisions in milliseconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/caduceus/internal/api"
	"github.com/opensource-finance/caduceus/internal/bus"
	"github.com/opensource-finance/caduceus/internal/cache"
	"github.com/opensource-finance/caduceus/internal/domain"
	"github.com/opensource-finance/caduceus/internal/repository"
	"github.com/opensource-finance/caduceus/internal/screening"
	"github.com/opensource-finance/caduceus/internal/worker"
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
	if os.Getenv("CADUCEUS_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting caduceus",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("CADUCEUS_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// Scorer mode selection
	if mode := domain.ScorerMode(os.Getenv("CADUCEUS_SCORER")); mode != "" {
		if !mode.Valid() {
			slog.Error("unknown scorer mode", "mode", mode)
			os.Exit(1)
		}
		cfg.ScorerMode = mode
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"scorer_mode", cfg.ScorerMode,
		"repository", cfg.Repository.Driver,
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

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

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

	// Initialize Screening Engine
	screener, err := screening.NewEngine()
	if err != nil {
		slog.Error("failed to initialize screening engine", "error", err)
		os.Exit(1)
	}

	// Load screening rules from database (no hardcoded defaults - configure via API)
	if err := loadScreeningRules(ctx, repo, screener); err != nil {
		slog.Error("failed to load screening rules", "error", err)
		os.Exit(1)
	}
	slog.Info("screening engine initialized", "rules_count", screener.RulesCount())

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("CADUCEUS_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, screener, cfg.ScorerMode)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("CADUCEUS_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, screener, cfg.ScorerMode, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("caduceus is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("caduceus shutdown complete")
}

// loadScreeningRules loads screening rules from the database into the engine.
// All rules must be configured via POST /screening - no hardcoded defaults.
func loadScreeningRules(ctx context.Context, repo domain.Repository, screener *screening.Engine) error {
	rules, err := repo.ListScreeningRules(ctx, api.GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list screening rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(rules) > 0 {
		slog.Info("loading screening rules from database", "count", len(rules))
		return screener.LoadRules(rules)
	}

	slog.Info("no screening rules in database - configure via POST /screening")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               ⚕ CADUCEUS                  ║")
	fmt.Println("  ║     Medical Credit Evaluation Engine      ║")
	fmt.Println("  ║     Care first, paperwork second.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Scorer:   %s\n", cfg.ScorerMode)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /evaluate          - Evaluate a credit application")
	fmt.Println("    POST /applications      - Queue an application (async)")
	fmt.Println("    GET  /profile           - Get effective scoring profile")
	fmt.Println("    PUT  /profile           - Update scoring profile")
	fmt.Println("    DELETE /profile         - Reset scoring profile to defaults")
	fmt.Println("    GET  /screening         - List screening rules")
	fmt.Println("    POST /screening         - Create a screening rule")
	fmt.Println("    DELETE /screening/{id}  - Delete a screening rule")
	fmt.Println("    POST /screening/reload  - Hot-reload screening rules")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println("    GET  /ready             - Readiness check")
	fmt.Println()
}
