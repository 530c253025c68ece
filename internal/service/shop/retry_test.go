package shop_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/shop"
	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

// conflictingUoW отвечает конфликтом версий первые conflicts вызовов Do.
type conflictingUoW struct {
	storage.UnitOfWork
	conflicts int
	calls     int
}

func (u *conflictingUoW) Do(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	u.calls++
	if u.calls <= u.conflicts {
		return fmt.Errorf("%w: simulated", domain.ErrOrderVersionConflict)
	}
	return u.UnitOfWork.Do(ctx, fn)
}

func seededStore(t *testing.T) (*memory.Store, shop.SeedResult) {
	t.Helper()
	store := memory.NewStore(memory.Options{})
	services := shop.New(store, shop.WithMetrics(metrics.NewShopMetricsWithRegisterer(prometheus.NewRegistry())))
	seeded, err := services.Seed(context.Background())
	require.NoError(t, err)
	return store, seeded
}

func TestCancelOrder_RetriesVersionConflict(t *testing.T) {
	store, seeded := seededStore(t)

	tests := []struct {
		name      string
		conflicts int
		wantErr   bool
		wantCalls int
	}{
		{name: "no conflict", conflicts: 0, wantCalls: 1},
		{name: "two conflicts", conflicts: 2, wantCalls: 3},
		{name: "conflicts exhaust attempts", conflicts: 5, wantErr: true, wantCalls: 3},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uow := &conflictingUoW{UnitOfWork: store, conflicts: tt.conflicts}
			service := shop.NewOrderService(uow,
				shop.WithMetrics(metrics.NewShopMetricsWithRegisterer(prometheus.NewRegistry())),
				shop.WithRetryConfig(shop.RetryConfig{MaxAttempts: 3, BackoffFactor: 2}),
			)

			// Каждый случай отменяет свой заказ; для исчерпания попыток заказ не меняется.
			orderID := seeded.OrderIDs[i%len(seeded.OrderIDs)]
			err := service.CancelOrder(context.Background(), orderID)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsVersionConflict(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, uow.calls)
		})
	}
}

func TestCancelOrder_BusinessErrorNotRetried(t *testing.T) {
	store, seeded := seededStore(t)
	uow := &conflictingUoW{UnitOfWork: store}
	service := shop.NewOrderService(uow,
		shop.WithMetrics(metrics.NewShopMetricsWithRegisterer(prometheus.NewRegistry())),
		shop.WithRetryConfig(shop.RetryConfig{MaxAttempts: 5}),
	)

	require.NoError(t, service.CancelOrder(context.Background(), seeded.OrderIDs[0]))
	uow.calls = 0

	err := service.CancelOrder(context.Background(), seeded.OrderIDs[0])
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 1, uow.calls)
}

func TestCancelOrder_RetryStopsOnContextCancel(t *testing.T) {
	store, seeded := seededStore(t)
	uow := &conflictingUoW{UnitOfWork: store, conflicts: 10}
	service := shop.NewOrderService(uow,
		shop.WithMetrics(metrics.NewShopMetricsWithRegisterer(prometheus.NewRegistry())),
		shop.WithRetryConfig(shop.RetryConfig{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := service.CancelOrder(ctx, seeded.OrderIDs[0])
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, uow.calls)
}
