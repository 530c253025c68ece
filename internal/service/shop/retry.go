package shop

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// RetryConfig конфигурация повторов при конфликте версий заказа.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// retrier повторяет единицу работы, пока она завершается ErrOrderVersionConflict.
// Остальные ошибки возвращаются сразу.
type retrier struct {
	config  RetryConfig
	logger  *log.Entry
	metrics *metrics.ShopMetrics
}

func (r retrier) do(ctx context.Context, operation string, orderID int64, fn func() error) error {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.WithFields(log.Fields{
					"operation": operation,
					"order_id":  orderID,
					"attempt":   attempt,
				}).Info("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !r.shouldRetry(err) {
			return err
		}
		r.metrics.RecordVersionConflict()

		if attempt < r.config.MaxAttempts {
			r.logger.WithFields(log.Fields{
				"operation": operation,
				"order_id":  orderID,
				"attempt":   attempt,
				"delay":     delay,
			}).Warn("order version conflict, retrying")

			if delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			// Экспоненциальная задержка с ограничением
			delay = time.Duration(float64(delay) * r.config.BackoffFactor)
			if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
				delay = r.config.MaxDelay
			}
		}
	}

	r.logger.WithFields(log.Fields{
		"operation":    operation,
		"order_id":     orderID,
		"max_attempts": r.config.MaxAttempts,
	}).WithError(lastErr).Error("operation failed after all retry attempts")
	return lastErr
}

// shouldRetry: повторяем только конфликт версий, бизнес-ошибки не повторяются.
func (r retrier) shouldRetry(err error) bool {
	return domain.IsVersionConflict(err)
}
