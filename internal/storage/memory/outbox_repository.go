package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepository — transactional outbox поверх таблиц Store.
type outboxRepository struct {
	t *tables
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с идентификатором.
func (r *outboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	r.t.outbox[msg.ID] = outboxRecord{
		msg:       msg,
		status:    outboxStatusPending,
		createdAt: msg.CreatedAt,
		updatedAt: now,
	}
	return msg, nil
}

// PullPending возвращает до limit самых старых сообщений со статусом `pending`.
func (r *outboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	pending := make([]outboxRecord, 0)
	for _, rec := range r.t.outbox {
		if rec.status == outboxStatusPending {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].createdAt.Equal(pending[j].createdAt) {
			return pending[i].createdAt.Before(pending[j].createdAt)
		}
		return pending[i].msg.ID < pending[j].msg.ID
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *outboxRepository) Stats(context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	for _, rec := range r.t.outbox {
		if rec.status != outboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepository) MarkSent(_ context.Context, id string) error {
	return r.mark(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.mark(id, outboxStatusFailed)
}

func (r *outboxRepository) mark(id, status string) error {
	record, ok := r.t.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	r.t.outbox[id] = record
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
