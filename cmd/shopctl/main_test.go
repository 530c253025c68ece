package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/projection"
	"github.com/vladislavdragonenkov/shop/internal/service/shop"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SHOP_STORAGE_DRIVER", "memory")
	t.Setenv("SHOP_POSTGRES_DSN", "")
	t.Setenv("SHOP_KAFKA_BROKERS", "")

	var out bytes.Buffer
	err := newApp(&out).RunContext(context.Background(), append([]string{"shopctl"}, args...))
	return out.String(), err
}

func decodeViews(t *testing.T, out string) []projection.OrderView {
	t.Helper()
	var views []projection.OrderView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	return views
}

func TestOrdersListAllModes(t *testing.T) {
	for _, mode := range projection.Modes() {
		t.Run(mode.String(), func(t *testing.T) {
			out, err := runCLI(t, "--seed", "orders", "list", "--mode", mode.String())
			require.NoError(t, err)

			views := decodeViews(t, out)
			require.Len(t, views, 2)
			assert.Equal(t, "userA", views[0].MemberName)
			assert.Len(t, views[0].LineItems, 2)
			assert.Equal(t, "Seoul", views[0].Address.City)
		})
	}
}

func TestOrdersListWithFilters(t *testing.T) {
	out, err := runCLI(t, "--seed", "orders", "list", "--member", "B", "--strategy", "batched")
	require.NoError(t, err)

	views := decodeViews(t, out)
	require.Len(t, views, 1)
	assert.Equal(t, "userB", views[0].MemberName)
	assert.Len(t, views[0].LineItems, 2)

	out, err = runCLI(t, "--seed", "orders", "list", "--offset", "1", "--limit", "1")
	require.NoError(t, err)
	views = decodeViews(t, out)
	require.Len(t, views, 1)
	assert.Equal(t, int64(2), views[0].OrderID)
}

func TestOrdersListRejectsBadInput(t *testing.T) {
	_, err := runCLI(t, "--seed", "orders", "list", "--status", "SHIPPED")
	assert.Error(t, err)

	_, err = runCLI(t, "--seed", "orders", "list", "--strategy", "eager")
	assert.Error(t, err)

	_, err = runCLI(t, "--seed", "orders", "list", "--mode", "parallel")
	assert.Error(t, err)
}

func TestOrdersShowAndSummaries(t *testing.T) {
	out, err := runCLI(t, "--seed", "orders", "show", "1")
	require.NoError(t, err)

	var view projection.OrderView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, int64(1), view.OrderID)
	assert.Equal(t, domain.OrderStatusOrder, view.Status)
	assert.Len(t, view.LineItems, 2)

	out, err = runCLI(t, "--seed", "orders", "summaries")
	require.NoError(t, err)
	var summaries []projection.OrderSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	assert.Len(t, summaries, 2)
}

func TestOrdersMutations(t *testing.T) {
	_, err := runCLI(t, "--seed", "orders", "cancel", "1")
	assert.NoError(t, err)

	_, err = runCLI(t, "--seed", "orders", "complete", "2")
	assert.NoError(t, err)

	_, err = runCLI(t, "--seed", "orders", "cancel", "abc")
	assert.Error(t, err)

	_, err = runCLI(t, "--seed", "orders", "cancel", "42")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	out, err := runCLI(t, "--seed", "orders", "place", "--member", "1", "--line", "1:2", "--line", "3")
	require.NoError(t, err)
	assert.Equal(t, "3", strings.TrimSpace(out))
}

func TestSeedCommand(t *testing.T) {
	out, err := runCLI(t, "seed")
	require.NoError(t, err)

	var result shop.SeedResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.MemberIDs, 2)
	assert.Len(t, result.ItemIDs, 4)
	assert.Len(t, result.OrderIDs, 2)
}

func TestOutboxCommands(t *testing.T) {
	out, err := runCLI(t, "--seed", "outbox", "stats")
	require.NoError(t, err)
	var stats domain.OutboxStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.PendingCount)

	out, err = runCLI(t, "--seed", "outbox", "drain")
	require.NoError(t, err)
	assert.Equal(t, "sent=2 failed=0", strings.TrimSpace(out))
}

func TestCommandsRequiringInfrastructure(t *testing.T) {
	_, err := runCLI(t, "migrate", "status")
	assert.Error(t, err)

	_, err = runCLI(t, "events", "tail")
	assert.Error(t, err)

	_, err = runCLI(t, "--storage", "postgres", "orders", "summaries")
	assert.Error(t, err)
}

func TestParseLines(t *testing.T) {
	lines, err := parseLines([]string{"1:2", " 3 : 4 ", "5"})
	require.NoError(t, err)
	assert.Equal(t, []shop.OrderLine{
		{ItemID: 1, Count: 2},
		{ItemID: 3, Count: 4},
		{ItemID: 5, Count: 1},
	}, lines)

	_, err = parseLines([]string{"x:1"})
	assert.Error(t, err)
	_, err = parseLines([]string{"1:y"})
	assert.Error(t, err)
}

func TestPrintEventHandler(t *testing.T) {
	member, err := domain.NewMember("userA", domain.Address{City: "Seoul"})
	require.NoError(t, err)
	item, err := domain.NewBook("JPA1 BOOK", 10000, 10, domain.Book{})
	require.NoError(t, err)
	line, err := domain.CreateOrderItem(item, 10000, 2)
	require.NoError(t, err)
	order, err := domain.CreateOrder(member, domain.NewDelivery(member.Address), line)
	require.NoError(t, err)

	payload, err := kafka.NewOrderEvent(kafka.EventTypeOrderPlaced, order).Marshal()
	require.NoError(t, err)
	envelope, err := json.Marshal(kafka.OutboxEnvelope{ID: "evt-1", EventType: domain.EventTypeOrderPlaced, Payload: payload})
	require.NoError(t, err)

	var out bytes.Buffer
	handler := kafka.OrderEvents(printEvent(&out))
	require.NoError(t, handler(context.Background(), &sarama.ConsumerMessage{Value: envelope}))

	event, err := kafka.DecodeOrderEvent(bytes.TrimSpace(out.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, kafka.EventTypeOrderPlaced, event.EventType)
	assert.Equal(t, int64(20000), event.TotalPrice)

	assert.Error(t, handler(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}))
}
