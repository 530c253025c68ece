// Package outbox публикует события заказов, накопленные в transactional outbox.
package outbox

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type settings struct {
	logger         *log.Entry
	metrics        *metrics.OutboxMetrics
	dlq            domain.OutboxPublisher
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*settings)

func WithLogger(logger *log.Entry) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMetrics задаёт метрики; по умолчанию используются метрики из DefaultRegisterer.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithDLQPublisher задаёт получателя событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(s *settings) { s.dlq = publisher }
}

func WithPollInterval(interval time.Duration) Option {
	return func(s *settings) { s.pollInterval = interval }
}

func WithBatchSize(batchSize int) Option {
	return func(s *settings) { s.batchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации одного события за цикл.
func WithMaxAttempts(maxAttempts int) Option {
	return func(s *settings) { s.maxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт первую паузу между попытками; дальше пауза удваивается
// до maxRetryDelay. 0 отключает паузы.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(s *settings) { s.retryBaseDelay = delay }
}

// Worker переносит pending-события из outbox в publisher.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	settings
}

// NewWorker создаёт worker; нулевые и отрицательные параметры заменяются значениями по умолчанию.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	s := settings{
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&s)
	}

	if s.logger == nil {
		s.logger = log.WithField("component", "outbox-worker")
	}
	if s.metrics == nil {
		s.metrics = metrics.NewOutboxMetrics()
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	s.retryBaseDelay = max(s.retryBaseDelay, 0)

	return &Worker{repo: repo, publisher: publisher, settings: s}
}

// Run обрабатывает outbox сразу и затем с интервалом pollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if sent, failed := w.ProcessOnce(ctx); sent+failed > 0 {
			w.logger.WithFields(log.Fields{"sent": sent, "failed": failed}).Debug("outbox batch processed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce публикует одну пачку pending-событий.
// Событие, не опубликованное за maxAttempts попыток, уходит в DLQ и помечается failed.
func (w *Worker) ProcessOnce(ctx context.Context) (sent, failed int) {
	if ctx.Err() != nil {
		return 0, 0
	}
	defer w.refreshBacklog(ctx)

	events, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return 0, 0
	}

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		fields := log.Fields{
			"outbox_id":  event.ID,
			"event_type": event.EventType,
			"order_id":   event.AggregateID,
		}

		if err := w.publish(ctx, event); err != nil {
			w.logger.WithError(err).WithFields(fields).Error("outbox publish failed after retries")
			w.metrics.RecordPublish(metrics.PublishFailed)
			w.deadLetter(event, err)
			if markErr := w.repo.MarkFailed(ctx, event.ID); markErr != nil {
				w.logger.WithError(markErr).WithFields(fields).Warn("failed to mark outbox message as failed")
			}
			failed++
			continue
		}

		if err := w.repo.MarkSent(ctx, event.ID); err != nil {
			w.logger.WithError(err).WithFields(fields).Warn("failed to mark outbox message as sent")
			continue
		}
		sent++
	}
	return sent, failed
}

// Drain повторяет ProcessOnce, пока пачки не станут пустыми.
func (w *Worker) Drain(ctx context.Context) (sent, failed int) {
	for ctx.Err() == nil {
		s, f := w.ProcessOnce(ctx)
		sent += s
		failed += f
		if s+f == 0 {
			break
		}
	}
	return sent, failed
}

func (w *Worker) publish(ctx context.Context, event domain.OutboxMessage) error {
	var err error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err = w.publisher.Publish(event); err == nil {
			w.metrics.RecordPublish(metrics.PublishSent)
			return nil
		}
		w.metrics.RecordPublish(metrics.PublishRetryError)

		if attempt == w.maxAttempts {
			break
		}
		if delay := w.backoff(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.maxAttempts, err)
}

// backoff возвращает паузу после попытки attempt: base, 2*base, 4*base... не больше maxRetryDelay.
func (w *Worker) backoff(attempt int) time.Duration {
	delay := w.retryBaseDelay
	for i := 1; i < attempt && delay > 0 && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	w.metrics.RecordBacklog(stats, time.Now())
}

// deadLetterPayload — содержимое DLQ-сообщения: исходное событие и причина отказа.
type deadLetterPayload struct {
	OutboxID      string              `json:"outbox_id"`
	AggregateType string              `json:"aggregate_type"`
	AggregateID   string              `json:"aggregate_id"`
	EventType     string              `json:"event_type"`
	Payload       jsoniter.RawMessage `json:"payload"`
	PublishError  string              `json:"publish_error"`
	FailedAt      time.Time           `json:"failed_at"`
}

func (w *Worker) deadLetter(event domain.OutboxMessage, publishErr error) {
	if w.dlq == nil {
		return
	}
	payload, err := json.Marshal(deadLetterPayload{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       jsoniter.RawMessage(event.Payload),
		PublishError:  publishErr.Error(),
		FailedAt:      time.Now().UTC(),
	})
	if err == nil {
		event.Payload = payload
		err = w.dlq.Publish(event)
	}
	if err != nil {
		w.logger.WithError(err).WithField("outbox_id", event.ID).Warn("failed to publish to DLQ")
		w.metrics.RecordPublish(metrics.PublishDLQFailed)
	}
}
