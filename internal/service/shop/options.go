// Package shop содержит прикладные сервисы магазина. Каждая операция
// выполняется внутри одной единицы работы storage.UnitOfWork.
package shop

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// Options задаёт зависимости сервисов.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.ShopMetrics
	Retry   RetryConfig
	// BatchSize — ширина пакета для ModeBatched в проекциях.
	BatchSize int
}

// Option настраивает сервисы.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики. По умолчанию используются метрики из DefaultRegisterer.
func WithMetrics(m *metrics.ShopMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithRetryConfig задаёт повтор при конфликте версий заказа.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(opts *Options) {
		opts.Retry = cfg
	}
}

// WithBatchSize задаёт ширину пакета для проекций.
func WithBatchSize(size int) Option {
	return func(opts *Options) {
		opts.BatchSize = size
	}
}

func buildOptions(component string, options []Option) Options {
	opts := Options{Retry: DefaultRetryConfig()}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", component)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewShopMetrics()
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	return opts
}

// observe учитывает длительность операции; вызывается как defer observe(...)().
func observe(m *metrics.ShopMetrics, operation string) func() {
	start := time.Now()
	m.RecordOperationStarted()
	return func() {
		m.RecordOperationFinished(operation, time.Since(start))
	}
}
