package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	envPrefix = "shop"
)

// Config описывает настройки запуска приложения.
// Переменные окружения с префиксом SHOP_ переопределяют значения по умолчанию.
type Config struct {
	GRPCAddr    string `envconfig:"GRPC_ADDR"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	StorageDriver       string `envconfig:"STORAGE_DRIVER"`
	PostgresDSN         string `envconfig:"POSTGRES_DSN"`
	PostgresAutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE"`

	// FetchBatchSize — ширина IN-пакета для batched-загрузки и проекций.
	FetchBatchSize   int  `envconfig:"FETCH_BATCH_SIZE"`
	RetryMaxAttempts int  `envconfig:"RETRY_MAX_ATTEMPTS"`
	SeedDemoData     bool `envconfig:"SEED_DEMO_DATA"`

	// KafkaBrokers — список через запятую; пусто — события остаются в логах.
	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS"`
	OutboxRetryDelay   time.Duration `envconfig:"OUTBOX_RETRY_DELAY"`
	OutboxMaxPending   int           `envconfig:"OUTBOX_MAX_PENDING"`
}

// DefaultConfig возвращает базовые настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		FetchBatchSize:      100,
		RetryMaxAttempts:    3,
		KafkaTopic:          "shop.order.events",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    200 * time.Millisecond,
		OutboxMaxPending:    1000,
	}
}

// LoadConfig читает переменные окружения поверх DefaultConfig.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres storage requires SHOP_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.FetchBatchSize < 0 {
		return fmt.Errorf("fetch batch size must be non-negative, got %d", c.FetchBatchSize)
	}
	if _, err := log.ParseLevel(c.LogLevel); c.LogLevel != "" && err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// Level возвращает уровень логирования; пустой или неизвестный — info.
func (c Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
