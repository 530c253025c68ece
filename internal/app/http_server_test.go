package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

// serveProbes поднимает сервер метрик с проверками хранилища и outbox.
func serveProbes(t *testing.T, pinger healthcheck.Pinger) string {
	t.Helper()

	store := memory.NewStore(memory.Options{})
	handler := healthcheck.NewHandler(pinger, store.Outbox(), healthcheck.Options{
		Version:    version.GetVersion(),
		MaxPending: 10,
		Timeout:    time.Second,
	})

	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NotNil(t, startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", t.Name()), handler))

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/livez")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	return base
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMetricsServer_HealthyStorage(t *testing.T) {
	store := memory.NewStore(memory.Options{})
	base := serveProbes(t, store)

	status, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"healthy"`)
	assert.Contains(t, body, `"storage":{"status":"healthy"`)
	assert.Contains(t, body, `"outbox":{"status":"healthy","pending":0`)

	status, body = get(t, base+"/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body)

	status, body = get(t, base+"/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)
}

func TestMetricsServer_UnreachableStorage(t *testing.T) {
	base := serveProbes(t, failingPinger{})

	status, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "connection refused")

	status, body = get(t, base+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not ready: storage: connection refused", body)

	// liveness не зависит от хранилища
	status, _ = get(t, base+"/livez")
	assert.Equal(t, http.StatusOK, status)
}

func TestMetricsServer_ExposesShopMetrics(t *testing.T) {
	metrics.NewShopMetrics().RecordOrderPlaced()

	store := memory.NewStore(memory.Options{})
	base := serveProbes(t, store)

	status, body := get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "shop_orders_placed_total")
}

func TestMetricsServer_StopsOnContextCancel(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", "stop"), healthcheck.NewHandler(failingPinger{}, nil, healthcheck.Options{}))

	url := fmt.Sprintf("http://127.0.0.1:%d/livez", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
		}
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
		}
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

// findFreePort находит свободный порт для тестов
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
