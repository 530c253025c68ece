package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type statsFunc func(ctx context.Context) (domain.OutboxStats, error)

func (f statsFunc) Stats(ctx context.Context) (domain.OutboxStats, error) { return f(ctx) }

func okPinger() Pinger {
	return pingerFunc(func(context.Context) error { return nil })
}

// enqueuePlaced кладёт n событий order.placed в outbox хранилища.
func enqueuePlaced(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.Outbox().Enqueue(context.Background(), domain.OutboxMessage{
			AggregateType: domain.AggregateTypeOrder,
			AggregateID:   "1",
			EventType:     domain.EventTypeOrderPlaced,
			Payload:       []byte(`{}`),
		})
		require.NoError(t, err)
	}
}

func serve(handler http.HandlerFunc, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler_HealthyShop(t *testing.T) {
	store := memory.NewStore(memory.Options{})
	handler := NewHandler(store, store.Outbox(), Options{Version: "v1.0.0", MaxPending: 10})

	w := serve(handler.ServeHTTP, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var report Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "v1.0.0", report.Version)
	assert.Equal(t, StatusHealthy, report.Storage.Status)
	assert.Equal(t, StatusHealthy, report.Outbox.Status)
	assert.Zero(t, report.Outbox.Pending)
	assert.Equal(t, 10, report.Outbox.MaxPending)

	w = serve(handler.ReadinessHandler, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", w.Body.String())
}

func TestHandler_StorageDown(t *testing.T) {
	store := memory.NewStore(memory.Options{})
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	handler := NewHandler(down, store.Outbox(), Options{})

	w := serve(handler.ServeHTTP, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var report Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "connection refused", report.Storage.Error)
	assert.Equal(t, StatusHealthy, report.Outbox.Status)

	w = serve(handler.ReadinessHandler, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready: storage: connection refused", w.Body.String())
}

func TestHandler_PingTimeout(t *testing.T) {
	slow := pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	handler := NewHandler(slow, nil, Options{Timeout: 10 * time.Millisecond})

	report := handler.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Storage.Status)
	assert.Contains(t, report.Storage.Error, context.DeadlineExceeded.Error())
	assert.False(t, report.Ready())
}

func TestHandler_OutboxBacklogGatesReadiness(t *testing.T) {
	store := memory.NewStore(memory.Options{})
	handler := NewHandler(store, store.Outbox(), Options{MaxPending: 1})

	enqueuePlaced(t, store, 1)
	assert.True(t, handler.Check(context.Background()).Ready())

	enqueuePlaced(t, store, 1)
	handler.now = func() time.Time { return time.Now().Add(time.Minute) }

	report := handler.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusDegraded, report.Outbox.Status)
	assert.Equal(t, 2, report.Outbox.Pending)
	assert.GreaterOrEqual(t, report.Outbox.OldestPendingAge, 59.0)
	assert.Equal(t, "pending=2 exceeds 1", report.Outbox.Error)

	// degraded не валит /healthz, но снимает трафик через /readyz
	w := serve(handler.ServeHTTP, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(handler.ReadinessHandler, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready: outbox: pending=2 exceeds 1", w.Body.String())
}

func TestHandler_OutboxWithoutThreshold(t *testing.T) {
	store := memory.NewStore(memory.Options{})
	handler := NewHandler(store, store.Outbox(), Options{})
	enqueuePlaced(t, store, 5)

	report := handler.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, 5, report.Outbox.Pending)
	assert.True(t, report.Ready())
}

func TestHandler_OutboxStatsError(t *testing.T) {
	broken := statsFunc(func(context.Context) (domain.OutboxStats, error) {
		return domain.OutboxStats{}, errors.New("relation outbox_messages does not exist")
	})
	handler := NewHandler(okPinger(), broken, Options{MaxPending: 10})

	w := serve(handler.ServeHTTP, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	report := handler.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Outbox.Status)
	assert.Equal(t, StatusHealthy, report.Storage.Status)
	assert.False(t, report.Ready())
}

func TestHandler_NoStorage(t *testing.T) {
	report := NewHandler(nil, nil, Options{}).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "storage is not configured", report.Storage.Error)
}

func TestLivenessHandler(t *testing.T) {
	w := serve(LivenessHandler, "/livez")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
