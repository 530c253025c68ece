package shop_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/projection"
	"github.com/vladislavdragonenkov/shop/internal/service/shop"
	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/storage/fetch"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

type fixture struct {
	store    *memory.Store
	counter  *fetch.Counter
	services *shop.Services
}

func newFixture(t *testing.T, options ...shop.Option) *fixture {
	t.Helper()

	counter := &fetch.Counter{}
	store := memory.NewStore(memory.Options{BatchSize: 100, Recorder: counter})
	base := []shop.Option{
		shop.WithMetrics(metrics.NewShopMetricsWithRegisterer(prometheus.NewRegistry())),
		shop.WithRetryConfig(shop.RetryConfig{MaxAttempts: 3}),
	}
	return &fixture{
		store:    store,
		counter:  counter,
		services: shop.New(store, append(base, options...)...),
	}
}

func (f *fixture) seed(t *testing.T) shop.SeedResult {
	t.Helper()
	result, err := f.services.Seed(context.Background())
	require.NoError(t, err)
	return result
}

func (f *fixture) stock(t *testing.T, itemID int64) int {
	t.Helper()
	item, err := f.services.Items.FindOne(context.Background(), itemID)
	require.NoError(t, err)
	return item.StockQuantity()
}

func (f *fixture) outboxEvents(t *testing.T) []*kafka.OrderEvent {
	t.Helper()
	messages, err := f.store.Outbox().PullPending(context.Background(), 100)
	require.NoError(t, err)

	events := make([]*kafka.OrderEvent, 0, len(messages))
	for _, msg := range messages {
		event, err := kafka.DecodeOrderEvent(msg.Payload)
		require.NoError(t, err)
		events = append(events, event)
	}
	return events
}

func TestSeed_TwoOrdersWithTwoLines(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t)

	require.Len(t, seeded.MemberIDs, 2)
	require.Len(t, seeded.ItemIDs, 4)
	require.Len(t, seeded.OrderIDs, 2)

	assert.Equal(t, 99, f.stock(t, seeded.ItemIDs[0]))
	assert.Equal(t, 98, f.stock(t, seeded.ItemIDs[1]))
	assert.Equal(t, 197, f.stock(t, seeded.ItemIDs[2]))
	assert.Equal(t, 296, f.stock(t, seeded.ItemIDs[3]))

	views, err := f.services.Orders.ProjectOrders(context.Background(), projection.ModeFlat)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "userA", views[0].MemberName)
	assert.Equal(t, "Seoul", views[0].Address.City)
	assert.Equal(t, []projection.LineItemView{
		{ItemName: "JPA1 BOOK", OrderPrice: 10000, Count: 1},
		{ItemName: "JPA2 BOOK", OrderPrice: 20000, Count: 2},
	}, views[0].LineItems)
	assert.Equal(t, "userB", views[1].MemberName)
	assert.Len(t, views[1].LineItems, 2)

	summaries, err := f.services.Orders.OrderSummaries(context.Background())
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestProjection_AllPathsAgree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, shop.WithBatchSize(1))
	f.seed(t)

	expected, err := f.services.Orders.ProjectOrders(ctx, projection.ModeFlat)
	require.NoError(t, err)

	for _, mode := range projection.Modes() {
		views, err := f.services.Orders.ProjectOrders(ctx, mode)
		require.NoError(t, err, mode.String())
		assert.Equal(t, expected, views, mode.String())
	}
	for _, strategy := range domain.FetchStrategies() {
		views, err := f.services.Orders.ProjectOrdersFromAggregates(ctx, strategy)
		require.NoError(t, err, strategy.String())
		assert.Equal(t, expected, views, strategy.String())

		found, err := f.services.Orders.FindOrders(ctx, domain.OrderSearch{}, strategy, domain.Page{})
		require.NoError(t, err, strategy.String())
		assert.Equal(t, expected, found, strategy.String())
	}
}

func TestFindOrders_RetrievalCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	f.counter.Reset()
	_, err := f.services.Orders.FindOrders(ctx, domain.OrderSearch{}, domain.FetchLazy, domain.Page{})
	require.NoError(t, err)
	lazy := f.counter.Total()

	f.counter.Reset()
	_, err = f.services.Orders.FindOrders(ctx, domain.OrderSearch{}, domain.FetchBatched, domain.Page{})
	require.NoError(t, err)
	batched := f.counter.Total()

	f.counter.Reset()
	_, err = f.services.Orders.FindOrders(ctx, domain.OrderSearch{}, domain.FetchCollectionJoin, domain.Page{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.counter.Total())
	assert.Equal(t, 3, batched)
	assert.Greater(t, lazy, batched)
}

func TestQueryOrders_SearchAndPaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seed(t)

	orders, err := f.services.Orders.QueryOrders(ctx, domain.OrderSearch{MemberName: "userB"}, domain.FetchBatched, domain.Page{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, seeded.OrderIDs[1], orders[0].ID)

	page, err := f.services.Orders.QueryOrders(ctx, domain.OrderSearch{}, domain.FetchToOneJoin, domain.Page{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "userB", page[0].Member().Name)

	_, err = f.services.Orders.QueryOrders(ctx, domain.OrderSearch{}, domain.FetchCollectionJoin, domain.Page{Limit: 1})
	assert.ErrorIs(t, err, domain.ErrCollectionFetchPaging)

	_, err = f.services.Orders.QueryOrders(ctx, domain.OrderSearch{}, domain.FetchStrategy(0), domain.Page{})
	assert.ErrorIs(t, err, domain.ErrUnknownFetchStrategy)

	require.NoError(t, f.services.Orders.CancelOrder(ctx, seeded.OrderIDs[0]))
	canceled, err := f.services.Orders.QueryOrders(ctx, domain.OrderSearch{OrderStatus: domain.OrderStatusCancel}, domain.FetchLazy, domain.Page{})
	require.NoError(t, err)
	require.Len(t, canceled, 1)
	assert.Equal(t, seeded.OrderIDs[0], canceled[0].ID)
}

func TestLoadOrder_DetachedGraph(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t)

	order, err := f.services.Orders.LoadOrder(context.Background(), seeded.OrderIDs[0], domain.FetchLazy)
	require.NoError(t, err)

	require.NotNil(t, order.Member())
	assert.Equal(t, "userA", order.Member().Name)
	require.NotNil(t, order.Delivery())
	assert.Equal(t, domain.DeliveryStatusReady, order.Delivery().Status)
	require.Len(t, order.Items(), 2)
	assert.Equal(t, "JPA2 BOOK", order.Items()[1].Item().Name)
	assert.Equal(t, int64(50000), order.TotalPrice())

	_, err = f.services.Orders.LoadOrder(context.Background(), 999, domain.FetchLazy)
	assert.True(t, domain.IsNotFound(err))
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	member, err := domain.NewMember("kim", domain.Address{City: "Seoul", Street: "river", Zipcode: "123-123"})
	require.NoError(t, err)
	memberID, err := f.services.Members.Join(ctx, member)
	require.NoError(t, err)

	book, err := domain.NewBook("JPA BOOK", 10000, 10, domain.Book{Author: "kim", ISBN: "1234"})
	require.NoError(t, err)
	itemID, err := f.services.Items.SaveItem(ctx, book)
	require.NoError(t, err)

	orderID, err := f.services.Orders.PlaceOrder(ctx, memberID, itemID, 2)
	require.NoError(t, err)

	order, err := f.services.Orders.LoadOrder(ctx, orderID, domain.FetchCollectionJoin)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOrder, order.Status)
	assert.Equal(t, int64(20000), order.TotalPrice())
	assert.Equal(t, member.Address, order.Delivery().Address)
	assert.Equal(t, 8, f.stock(t, itemID))

	events := f.outboxEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, kafka.EventTypeOrderPlaced, events[0].EventType)
	assert.Equal(t, orderID, events[0].OrderID)
	assert.Equal(t, int64(20000), events[0].TotalPrice)
}

func TestPlaceOrder_InsufficientStockRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	member, err := domain.NewMember("kim", domain.Address{City: "Seoul"})
	require.NoError(t, err)
	memberID, err := f.services.Members.Join(ctx, member)
	require.NoError(t, err)

	first, err := domain.NewBook("first", 1000, 10, domain.Book{})
	require.NoError(t, err)
	firstID, err := f.services.Items.SaveItem(ctx, first)
	require.NoError(t, err)
	second, err := domain.NewBook("second", 1000, 1, domain.Book{})
	require.NoError(t, err)
	secondID, err := f.services.Items.SaveItem(ctx, second)
	require.NoError(t, err)

	_, err = f.services.Orders.PlaceOrderLines(ctx, memberID,
		shop.OrderLine{ItemID: firstID, Count: 3},
		shop.OrderLine{ItemID: secondID, Count: 2},
	)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 10, f.stock(t, firstID))
	assert.Equal(t, 1, f.stock(t, secondID))
	assert.Empty(t, f.outboxEvents(t))

	views, err := f.services.Orders.ProjectOrders(ctx, projection.ModeBatched)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestPlaceOrder_SameItemTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	member, err := domain.NewMember("kim", domain.Address{City: "Seoul"})
	require.NoError(t, err)
	memberID, err := f.services.Members.Join(ctx, member)
	require.NoError(t, err)
	book, err := domain.NewBook("book", 1000, 3, domain.Book{})
	require.NoError(t, err)
	itemID, err := f.services.Items.SaveItem(ctx, book)
	require.NoError(t, err)

	_, err = f.services.Orders.PlaceOrderLines(ctx, memberID,
		shop.OrderLine{ItemID: itemID, Count: 2},
		shop.OrderLine{ItemID: itemID, Count: 2},
	)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 3, f.stock(t, itemID))
}

func TestPlaceOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seed(t)

	tests := []struct {
		name     string
		memberID int64
		itemID   int64
		count    int
		check    func(t *testing.T, err error)
	}{
		{
			name:     "unknown member",
			memberID: 999,
			itemID:   seeded.ItemIDs[0],
			count:    1,
			check:    func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrMemberNotFound) },
		},
		{
			name:     "unknown item",
			memberID: seeded.MemberIDs[0],
			itemID:   999,
			count:    1,
			check:    func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrItemNotFound) },
		},
		{
			name:     "negative count",
			memberID: seeded.MemberIDs[0],
			itemID:   seeded.ItemIDs[0],
			count:    -1,
			check:    func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrInvalidQuantity) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.services.Orders.PlaceOrder(ctx, tt.memberID, tt.itemID, tt.count)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	_, err := f.services.Orders.PlaceOrderLines(ctx, seeded.MemberIDs[0])
	assert.ErrorIs(t, err, domain.ErrOrderItemsRequired)
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seed(t)
	drainOutbox(t, f.store)

	require.NoError(t, f.services.Orders.CancelOrder(ctx, seeded.OrderIDs[0]))

	assert.Equal(t, 100, f.stock(t, seeded.ItemIDs[0]))
	assert.Equal(t, 100, f.stock(t, seeded.ItemIDs[1]))

	order, err := f.services.Orders.LoadOrder(ctx, seeded.OrderIDs[0], domain.FetchBatched)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancel, order.Status)
	assert.Equal(t, int64(1), order.Version)

	events := f.outboxEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, kafka.EventTypeOrderCanceled, events[0].EventType)
	assert.Equal(t, "CANCEL", events[0].Status)

	err = f.services.Orders.CancelOrder(ctx, seeded.OrderIDs[0])
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 100, f.stock(t, seeded.ItemIDs[0]))

	err = f.services.Orders.CancelOrder(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCompleteDelivery_BlocksCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := f.seed(t)

	require.NoError(t, f.services.Orders.CompleteDelivery(ctx, seeded.OrderIDs[1]))

	err := f.services.Orders.CancelOrder(ctx, seeded.OrderIDs[1])
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 197, f.stock(t, seeded.ItemIDs[2]))

	err = f.services.Orders.CompleteDelivery(ctx, seeded.OrderIDs[1])
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, f.services.Orders.CancelOrder(ctx, seeded.OrderIDs[0]))
	err = f.services.Orders.CompleteDelivery(ctx, seeded.OrderIDs[0])
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func drainOutbox(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	messages, err := store.Outbox().PullPending(ctx, 100)
	require.NoError(t, err)
	for _, msg := range messages {
		require.NoError(t, store.Outbox().MarkSent(ctx, msg.ID))
	}
}

var _ storage.UnitOfWork = (*memory.Store)(nil)
