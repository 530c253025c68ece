package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	outboxTable         = "outbox_messages"
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

type outboxRow struct {
	ID            string    `db:"id"`
	AggregateType string    `db:"aggregate_type"`
	AggregateID   string    `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Payload       []byte    `db:"payload"`
	CreatedAt     time.Time `db:"created_at"`
}

// outboxRepository работает поверх пула или текущей транзакции.
type outboxRepository struct {
	q sqlx.ExtContext
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	query, args, err := dialect.Insert(outboxTable).Rows(goqu.Record{
		"id":             msg.ID,
		"aggregate_type": msg.AggregateType,
		"aggregate_id":   msg.AggregateID,
		"event_type":     msg.EventType,
		"payload":        string(msg.Payload),
		"status":         outboxStatusPending,
		"attempt_count":  0,
		"created_at":     msg.CreatedAt,
		"updated_at":     now,
	}).Prepared(true).ToSQL()
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("build outbox insert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxRow
	ds := dialect.From(outboxTable).
		Select("id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at").
		Where(goqu.C("status").Eq(outboxStatusPending)).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit))
	if err := selectRows(ctx, r.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}

	result := make([]domain.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.OutboxMessage{
			ID:            row.ID,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			EventType:     row.EventType,
			Payload:       row.Payload,
			CreatedAt:     row.CreatedAt.UTC(),
		})
	}
	return result, nil
}

func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	var row struct {
		Count  int          `db:"pending_count"`
		Oldest sql.NullTime `db:"oldest_pending_at"`
	}
	ds := dialect.From(outboxTable).
		Select(
			goqu.COUNT(goqu.Star()).As("pending_count"),
			goqu.MIN("created_at").As("oldest_pending_at"),
		).
		Where(goqu.C("status").Eq(outboxStatusPending))
	if err := getRow(ctx, r.q, &row, ds); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats query failed: %w", err)
	}

	stats := domain.OutboxStats{PendingCount: row.Count}
	if row.Oldest.Valid {
		stats.OldestPendingAt = row.Oldest.Time.UTC()
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusSent)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusFailed)
}

func (r *outboxRepository) markStatus(ctx context.Context, id, status string) error {
	affected, err := execUpdate(ctx, r.q, dialect.Update(outboxTable).
		Set(goqu.Record{
			"status":        status,
			"attempt_count": goqu.L("attempt_count + 1"),
			"updated_at":    time.Now().UTC(),
		}).
		Where(goqu.C("id").Eq(id)))
	if err != nil {
		return fmt.Errorf("mark outbox message as %s: %w", status, err)
	}
	if affected == 0 {
		return domain.ErrOutboxPublish
	}
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
