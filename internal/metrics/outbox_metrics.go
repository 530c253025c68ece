package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Результаты публикации outbox-сообщения.
const (
	PublishSent       = "sent"
	PublishRetryError = "retry_error"
	PublishFailed     = "failed"
	PublishDLQFailed  = "dlq_failed"
)

// OutboxMetrics — метрики публикации transactional outbox.
type OutboxMetrics struct {
	publishAttempts  *prometheus.CounterVec
	pendingRecords   prometheus.Gauge
	oldestPendingAge prometheus.Gauge
}

// NewOutboxMetrics создаёт метрики в DefaultRegisterer.
func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOutboxMetricsWithRegisterer создаёт метрики в заданном registerer.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &OutboxMetrics{
		publishAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result",
		}, []string{"result"}),
		pendingRecords: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox",
		}),
		oldestPendingAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record",
		}),
	}
}

// RecordPublish учитывает попытку публикации с результатом result.
func (m *OutboxMetrics) RecordPublish(result string) {
	m.publishAttempts.WithLabelValues(result).Inc()
}

// RecordBacklog выставляет размер и возраст очереди.
func (m *OutboxMetrics) RecordBacklog(stats domain.OutboxStats, now time.Time) {
	m.pendingRecords.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		m.oldestPendingAge.Set(0)
		return
	}
	m.oldestPendingAge.Set(max(now.Sub(stats.OldestPendingAt).Seconds(), 0))
}
