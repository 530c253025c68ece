// Package health отдаёт состояние магазина для проб: доступность хранилища
// и backlog transactional outbox.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status — состояние компонента или магазина в целом.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const defaultTimeout = 2 * time.Second

// Pinger — хранилище с проверкой соединения.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OutboxStats — источник статистики outbox.
type OutboxStats interface {
	Stats(ctx context.Context) (domain.OutboxStats, error)
}

// Options настраивает пороги проверок.
type Options struct {
	Version string
	// MaxPending — допустимый backlog outbox; 0 отключает порог.
	MaxPending int
	// Timeout ограничивает каждую проверку.
	Timeout time.Duration
}

// StorageReport — результат Ping хранилища.
type StorageReport struct {
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// OutboxReport — backlog неотправленных событий.
type OutboxReport struct {
	Status           Status  `json:"status"`
	Pending          int     `json:"pending"`
	MaxPending       int     `json:"max_pending,omitempty"`
	OldestPendingAge float64 `json:"oldest_pending_age_seconds"`
	Error            string  `json:"error,omitempty"`
}

// Report — ответ /healthz.
type Report struct {
	Status        Status        `json:"status"`
	Timestamp     time.Time     `json:"timestamp"`
	Version       string        `json:"version,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Storage       StorageReport `json:"storage"`
	Outbox        OutboxReport  `json:"outbox"`
}

// Ready — магазин принимает заказы: хранилище отвечает, backlog в пределах порога.
func (r Report) Ready() bool {
	return r.Storage.Status == StatusHealthy && r.Outbox.Status == StatusHealthy
}

// Handler проверяет хранилище и outbox магазина.
type Handler struct {
	store     Pinger
	outbox    OutboxStats
	opts      Options
	startTime time.Time
	now       func() time.Time
}

// NewHandler создаёт обработчик проб. outbox может быть nil.
func NewHandler(store Pinger, outbox OutboxStats, opts Options) *Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Handler{
		store:     store,
		outbox:    outbox,
		opts:      opts,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Check выполняет обе проверки.
func (h *Handler) Check(ctx context.Context) Report {
	now := h.now()
	report := Report{
		Timestamp:     now.UTC(),
		Version:       h.opts.Version,
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		Storage:       h.checkStorage(ctx),
		Outbox:        h.checkOutbox(ctx, now),
	}

	report.Status = StatusHealthy
	switch {
	case report.Storage.Status == StatusUnhealthy || report.Outbox.Status == StatusUnhealthy:
		report.Status = StatusUnhealthy
	case report.Outbox.Status == StatusDegraded:
		report.Status = StatusDegraded
	}
	return report
}

func (h *Handler) checkStorage(ctx context.Context) StorageReport {
	if h.store == nil {
		return StorageReport{Status: StatusUnhealthy, Error: "storage is not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(ctx)
	report := StorageReport{Status: StatusHealthy, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		report.Status = StatusUnhealthy
		report.Error = err.Error()
	}
	return report
}

// Backlog больше MaxPending — degraded, ошибка чтения статистики — unhealthy.
func (h *Handler) checkOutbox(ctx context.Context, now time.Time) OutboxReport {
	report := OutboxReport{Status: StatusHealthy, MaxPending: h.opts.MaxPending}
	if h.outbox == nil {
		return report
	}
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	stats, err := h.outbox.Stats(ctx)
	if err != nil {
		report.Status = StatusUnhealthy
		report.Error = err.Error()
		return report
	}
	report.Pending = stats.PendingCount
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		if age := now.Sub(stats.OldestPendingAt).Seconds(); age > 0 {
			report.OldestPendingAge = age
		}
	}
	if h.opts.MaxPending > 0 && stats.PendingCount > h.opts.MaxPending {
		report.Status = StatusDegraded
		report.Error = fmt.Sprintf("pending=%d exceeds %d", stats.PendingCount, h.opts.MaxPending)
	}
	return report
}

// ServeHTTP отдаёт полный отчёт; 503 только при unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())

	statusCode := http.StatusOK
	if report.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(report)
}

// ReadinessHandler пропускает трафик, только пока хранилище отвечает
// и backlog outbox не превышает порог.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())
	if report.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}

	reason := "outbox: " + report.Outbox.Error
	if report.Storage.Status != StatusHealthy {
		reason = "storage: " + report.Storage.Error
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready: " + reason))
}

// LivenessHandler не зависит от хранилища.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
