package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func placeOrder(t *testing.T, ctx context.Context, tx storage.Tx, memberName string, counts ...int) *domain.Order {
	t.Helper()

	member, err := domain.NewMember(memberName, domain.Address{City: "Seoul", Street: "1", Zipcode: "1111"})
	require.NoError(t, err)
	require.NoError(t, tx.Members.Create(ctx, member))

	lines := make([]*domain.OrderItem, 0, len(counts))
	for _, count := range counts {
		item, err := domain.NewBook(memberName+" BOOK", 10000, 100, domain.Book{})
		require.NoError(t, err)
		require.NoError(t, tx.Items.Create(ctx, item))

		line, err := domain.CreateOrderItem(item, item.Price, count)
		require.NoError(t, err)
		require.NoError(t, tx.Items.AdjustStock(ctx, item.ID, -count))
		lines = append(lines, line)
	}

	order, err := domain.CreateOrder(member, domain.NewDelivery(member.Address), lines...)
	require.NoError(t, err)
	require.NoError(t, tx.Orders.Create(ctx, order))
	return order
}

func TestStore_CommitAndReload(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.Options{})

	var orderID int64
	require.NoError(t, store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		orderID = placeOrder(t, ctx, tx, "userA", 1, 2).ID
		return nil
	}))
	require.NotZero(t, orderID)

	require.NoError(t, store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		order, err := tx.Orders.FindOne(ctx, orderID, domain.FetchCollectionJoin)
		require.NoError(t, err)
		assert.Equal(t, "userA", order.Member().Name)
		require.Len(t, order.Items(), 2)
		assert.Equal(t, int64(30000), order.TotalPrice())
		assert.Equal(t, 98, order.Items()[1].Item().StockQuantity())
		return nil
	}))
}

func TestStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.Options{})
	boom := errors.New("boom")

	err := store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		placeOrder(t, ctx, tx, "userA", 1)
		_, err := tx.Outbox.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateTypeOrder, EventType: domain.EventTypeOrderPlaced})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		members, err := tx.Members.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, members)

		orders, err := tx.Orders.FindAll(ctx, domain.OrderSearch{}, domain.FetchLazy, domain.Page{})
		require.NoError(t, err)
		assert.Empty(t, orders)
		return nil
	}))

	stats, err := store.Outbox().Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := memory.NewStore(memory.Options{}).Do(ctx, func(context.Context, storage.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestItemRepository_AdjustStock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.Options{})

	require.NoError(t, store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		item, err := domain.NewBook("JPA1 BOOK", 10000, 10, domain.Book{Author: "kim"})
		require.NoError(t, err)
		require.NoError(t, tx.Items.Create(ctx, item))

		err = tx.Items.AdjustStock(ctx, item.ID, -11)
		require.ErrorIs(t, err, domain.ErrInsufficientStock)

		require.NoError(t, tx.Items.AdjustStock(ctx, item.ID, -2))
		stored, err := tx.Items.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 8, stored.StockQuantity())
		assert.Equal(t, "kim", stored.Book.Author)

		require.ErrorIs(t, tx.Items.AdjustStock(ctx, 999, 1), domain.ErrItemNotFound)
		return nil
	}))
}

func TestMemberRepository(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.Options{})

	require.NoError(t, store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		member, err := domain.NewMember("kim", domain.Address{City: "Seoul"})
		require.NoError(t, err)
		require.NoError(t, tx.Members.Create(ctx, member))

		found, err := tx.Members.FindByName(ctx, "kim")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, member.ID, found[0].ID)

		require.NoError(t, member.Rename("lee"))
		require.NoError(t, tx.Members.Save(ctx, member))
		stored, err := tx.Members.Get(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, "lee", stored.Name)

		_, err = tx.Members.Get(ctx, 42)
		assert.ErrorIs(t, err, domain.ErrMemberNotFound)
		return nil
	}))
}

func TestCategoryRepository(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.Options{})

	require.NoError(t, store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		root, err := domain.NewCategory("books")
		require.NoError(t, err)
		require.NoError(t, tx.Categories.Create(ctx, root))

		child, err := domain.NewCategory("programming")
		require.NoError(t, err)
		root.AddChild(child)
		require.NoError(t, tx.Categories.Create(ctx, child))

		item, err := domain.NewBook("JPA1 BOOK", 1, 1, domain.Book{})
		require.NoError(t, err)
		require.NoError(t, tx.Items.Create(ctx, item))
		require.NoError(t, tx.Categories.LinkItem(ctx, child.ID, item.ID))

		categories, err := tx.Categories.ListByItem(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, categories, 1)
		assert.Equal(t, root.ID, categories[0].ParentID)

		orphan := &domain.Category{Name: "orphan", ParentID: 99}
		assert.ErrorIs(t, tx.Categories.Create(ctx, orphan), domain.ErrCategoryNotFound)
		return nil
	}))
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.Options{})

	var orderID int64
	require.NoError(t, store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		orderID = placeOrder(t, ctx, tx, "userA", 1).ID
		return nil
	}))

	require.NoError(t, store.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		order, err := tx.Orders.FindOne(ctx, orderID, domain.FetchBatched)
		require.NoError(t, err)
		require.NoError(t, order.Cancel())
		require.NoError(t, tx.Orders.Save(ctx, order))
		assert.Equal(t, int64(1), order.Version)

		stale := *order
		stale.Version = 0
		assert.ErrorIs(t, tx.Orders.Save(ctx, &stale), domain.ErrOrderVersionConflict)
		return nil
	}))
}
