package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carlookout/server/internal/breaker"
	"github.com/carlookout/server/internal/config"
	"github.com/carlookout/server/internal/dispatch"
	"github.com/carlookout/server/internal/domain/listings"
	"github.com/carlookout/server/internal/rescache"
	"github.com/carlookout/server/internal/sources"
	"github.com/carlookout/server/internal/storage/postgres"
)

// app holds the assembled aggregation pipeline shared by the serve, search,
// and sources commands.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	registry *sources.Registry
	breaker  *breaker.Breaker
	cache    *rescache.Cache
	pool     *pgxpool.Pool
	service  *listings.Service
}

// buildApp loads configuration, registers an adapter per source config, and
// wires the dispatch pipeline. The database pool is only opened when
// DATABASE_URL is set; without it, seen-listing tracking is disabled.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := config.NewLogger(cfg.Logging)

	configs, err := sources.LoadSourceConfigs(cfg.Sources.Dir)
	if err != nil {
		return nil, fmt.Errorf("load source configs: %w", err)
	}

	registry := sources.NewRegistry()
	for _, sc := range configs {
		var adapter sources.SourceAdapter
		switch sc.Kind {
		case "html":
			adapter = sources.NewCollyAdapter(sc, logger)
		default:
			adapter = sources.NewJSONAdapter(sc, logger)
		}
		registry.Register(sc, adapter)
	}
	logger.Info().Int("sources", len(configs)).Str("dir", cfg.Sources.Dir).Msg("source adapters registered")

	brk := breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
	}, logger)

	cache := rescache.New(cfg.Cache.TTL)

	var pool *pgxpool.Pool
	var seen dispatch.SeenRecorder
	if cfg.Database.URL != "" {
		poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err = pgxpool.New(poolCtx, cfg.Database.URL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		store, err := postgres.NewSeenStore(pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("seen store: %w", err)
		}
		seen = store
		logger.Info().Msg("seen-listing store enabled")
	}

	dispatcher := dispatch.New(registry, brk, cache, seen, dispatch.Options{
		MaxConcurrent:  cfg.Dispatch.MaxConcurrent,
		TotalTimeout:   cfg.Dispatch.TotalTimeout,
		PerSourceLimit: cfg.Dispatch.PerSourceLimit,
	}, logger)

	service := listings.NewService(dispatcher, listings.DefaultMergeConfig(), logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		breaker:  brk,
		cache:    cache,
		pool:     pool,
		service:  service,
	}, nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	// Override logging from flags if provided
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}
