// Command conductord runs the conversational orchestration daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/cache"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/knowledge"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/orchestrator"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/policy"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider/factory"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/server"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/telemetry"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/tenant"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/tokens"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init("conductord", logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	primary, err := buildStore(cfg.Cache.Primary, logger)
	if err != nil {
		return fmt.Errorf("build primary cache: %w", err)
	}
	var fallback cache.Store
	if cfg.Cache.Fallback.Backend != "" {
		fallback, err = buildStore(cfg.Cache.Fallback, logger)
		if err != nil {
			return fmt.Errorf("build fallback cache: %w", err)
		}
	}
	coordinator := cache.NewCoordinator(primary, fallback, logger)
	defer coordinator.Close()

	registry, err := factory.BuildRegistry(cfg.Providers, logger)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}
	if len(registry.Names()) == 0 {
		return errors.New("no providers configured")
	}
	registry.StartProbing(ctx, cfg.Orchestrator.ProbeInterval)

	selector := policy.NewSelector(registry, cfg.Selection.QualityOrder, logger)
	defaultPolicy, err := policy.ParsePolicy(cfg.Selection.Policy)
	if err != nil {
		return err
	}

	var retriever *knowledge.Retriever
	if cfg.Knowledge.Host != "" {
		searcher, err := knowledge.NewWeaviateSearcher(cfg.Knowledge)
		if err != nil {
			return fmt.Errorf("build knowledge searcher: %w", err)
		}
		retriever = knowledge.NewRetriever(searcher, coordinator, knowledge.Options{
			TopK:      cfg.Knowledge.TopK,
			Locale:    cfg.Knowledge.Locale,
			ResultTTL: cfg.Knowledge.ResultTTL,
		}, logger)
	} else {
		logger.Warn("no knowledge backend configured, running without retrieval")
	}

	tenants := tenant.NewRegistry(cfg.Tenants)

	orch := orchestrator.New(orchestrator.Deps{
		Registry:  registry,
		Selector:  selector,
		Retriever: retriever,
		Cache:     coordinator,
		Tenants:   tenants,
		History:   orchestrator.NewHistory(cfg.Orchestrator.HistoryTurns),
		Tokens:    tokens.NewEstimator(),
		Logger:    logger,
	}, orchestrator.Config{
		MaxConcurrent:     cfg.Orchestrator.MaxConcurrent,
		AnalysisTimeout:   cfg.Orchestrator.AnalysisTimeout,
		GenerationTimeout: cfg.Orchestrator.GenerationTimeout,
		ResponseTTL:       cfg.Orchestrator.ResponseTTL,
		DefaultPolicy:     defaultPolicy,
	})

	srv := server.New(orch, registry, coordinator, cfg.Server.RequestTimeout, logger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Tenant settings hot-reload; everything else requires a restart.
	go func() {
		err := config.Watch(ctx, *configPath, logger, func(newCfg *config.Config) {
			tenants.Reload(newCfg.Tenants)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("config watch stopped", slog.String("error", err.Error()))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.Int("port", cfg.Server.Port),
			slog.Int("providers", len(registry.Names())),
			slog.Int("tenants", len(cfg.Tenants)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func buildStore(tier config.TierConfig, logger *slog.Logger) (cache.Store, error) {
	switch tier.Backend {
	case "memory", "":
		return cache.NewMemoryStore(tier.Capacity, tier.DefaultTTL,
			cache.WithSweepInterval(tier.SweepInterval),
			cache.WithMemoryLogger(logger)), nil
	case "redis":
		return cache.NewRedisStore(cache.RedisConfig{
			Address:    tier.Address,
			Password:   tier.Password,
			Database:   tier.Database,
			KeyPrefix:  tier.KeyPrefix,
			DefaultTTL: tier.DefaultTTL,
		}, logger), nil
	case "sqlite":
		return cache.NewSQLiteStore(tier.Path, tier.Capacity)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", tier.Backend)
	}
}
