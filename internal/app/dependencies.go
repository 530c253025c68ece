package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/shop"
	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

// runtimeDependencies — хранилище и сервисы, собранные по Config.
type runtimeDependencies struct {
	store    storage.Store
	services *shop.Services
	probes   *healthcheck.Handler
	closeFn  func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	shopMetrics := metrics.NewShopMetrics()

	store, err := openStore(ctx, cfg, shopMetrics, logger)
	if err != nil {
		return nil, err
	}

	retry := shop.DefaultRetryConfig()
	if cfg.RetryMaxAttempts > 0 {
		retry.MaxAttempts = cfg.RetryMaxAttempts
	}
	services := shop.New(store,
		shop.WithLogger(logger.WithField("layer", "service")),
		shop.WithMetrics(shopMetrics),
		shop.WithRetryConfig(retry),
		shop.WithBatchSize(cfg.FetchBatchSize),
	)

	deps := &runtimeDependencies{
		store:    store,
		services: services,
		probes: healthcheck.NewHandler(store, store.Outbox(), healthcheck.Options{
			Version:    version.GetVersion(),
			MaxPending: cfg.OutboxMaxPending,
			Timeout:    2 * time.Second,
		}),
		closeFn: store.Close,
	}

	if cfg.SeedDemoData {
		result, err := services.Seed(ctx)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		logger.WithField("orders", len(result.OrderIDs)).Info("demo data seeded")
	}

	return deps, nil
}

func openStore(ctx context.Context, cfg Config, shopMetrics *metrics.ShopMetrics, logger *log.Entry) (storage.Store, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Info("using in-memory storage")
		return memory.NewStore(memory.Options{BatchSize: cfg.FetchBatchSize, Recorder: shopMetrics}), nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.Options{
			BatchSize: cfg.FetchBatchSize,
			Recorder:  shopMetrics,
			Logger:    logger.WithField("component", "postgres-store"),
		})
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres schema: %w", err)
			}
		}
		logger.Info("using postgres storage")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// Runtime — хранилище и сервисы без сетевых серверов (для утилит командной строки).
type Runtime struct {
	Store    storage.Store
	Services *shop.Services
}

// OpenRuntime открывает хранилище по cfg и собирает сервисы.
func OpenRuntime(ctx context.Context, cfg Config, logger *log.Entry) (*Runtime, error) {
	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{Store: deps.store, Services: deps.services}, nil
}

// Close закрывает хранилище.
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}
