package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t, Options{})
	repo := store.Outbox()
	ctx := context.Background()

	stored1, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "1",
		EventType:     domain.EventTypeOrderPlaced,
		Payload:       []byte(`{"order_id":1}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored1.ID, "expected generated id for outbox message")

	stored2, err := repo.Enqueue(ctx, domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "2",
		EventType:     domain.EventTypeOrderCanceled,
		Payload:       []byte(`{"order_id":2}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "outbox-fixed-id", stored2.ID)

	pending, err := repo.PullPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.JSONEq(t, `{"order_id":1}`, string(pending[0].Payload))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingCount)
	assert.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(ctx, stored1.ID))
	require.NoError(t, repo.MarkFailed(ctx, stored2.ID))

	after, err := repo.PullPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, after)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
}

func TestOutboxRepository_PostgresMissingRows(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t, Options{})
	repo := store.Outbox()
	ctx := context.Background()

	assert.ErrorIs(t, repo.MarkSent(ctx, "missing-outbox"), domain.ErrOutboxPublish)
	assert.ErrorIs(t, repo.MarkFailed(ctx, "missing-outbox"), domain.ErrOutboxPublish)
}

func TestOutboxRepository_PostgresEnqueueInsideRolledBackTx(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t, Options{})
	ctx := context.Background()

	err := store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.Outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: domain.AggregateTypeOrder,
			AggregateID:   "1",
			EventType:     domain.EventTypeOrderPlaced,
			Payload:       []byte(`{}`),
		}); err != nil {
			return err
		}
		return domain.ErrInsufficientStock
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	stats, err := store.Outbox().Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
}

func TestOutboxRepository_PostgresOldestPendingOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t, Options{})
	repo := store.Outbox()
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "old",
		EventType:     domain.EventTypeOrderPlaced,
		Payload:       []byte(`{}`),
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "new",
		EventType:     domain.EventTypeOrderPlaced,
		Payload:       []byte(`{}`),
	})
	require.NoError(t, err)

	pending, err := repo.PullPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, first.CreatedAt, stats.OldestPendingAt, time.Millisecond)
}
