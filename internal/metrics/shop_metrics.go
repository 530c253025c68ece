package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/fetch"
)

// ShopMetrics содержит метрики операций магазина.
type ShopMetrics struct {
	// Счётчики операций
	ordersPlaced        prometheus.Counter
	ordersCanceled      prometheus.Counter
	deliveriesCompleted prometheus.Counter
	insufficientStock   prometheus.Counter
	versionConflicts    prometheus.Counter
	outboxEvents        prometheus.Counter

	// Гистограмма времени выполнения операций
	operationDuration *prometheus.HistogramVec

	// Обращения к хранилищу по стратегиям загрузки
	fetchRetrievals *prometheus.CounterVec

	activeOperations prometheus.Gauge
}

// NewShopMetrics создаёт метрики в DefaultRegisterer.
func NewShopMetrics() *ShopMetrics {
	return NewShopMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewShopMetricsWithRegisterer создаёт метрики в заданном registerer.
// Повторная регистрация возвращает уже зарегистрированные коллекторы.
func NewShopMetricsWithRegisterer(registerer prometheus.Registerer) *ShopMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ShopMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_canceled_total",
			Help: "Total number of orders canceled",
		}),
		deliveriesCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_deliveries_completed_total",
			Help: "Total number of deliveries completed",
		}),
		insufficientStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_insufficient_stock_total",
			Help: "Total number of orders rejected because of insufficient stock",
		}),
		versionConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_version_conflicts_total",
			Help: "Total number of optimistic locking conflicts on orders",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_operation_duration_seconds",
			Help:    "Duration of shop operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		fetchRetrievals: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_fetch_retrievals_total",
			Help: "Total number of storage retrievals grouped by fetch strategy and query",
		}, []string{"strategy", "query"}),
		activeOperations: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_active_operations",
			Help: "Number of currently running shop operations",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *ShopMetrics) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

// RecordOrderCanceled увеличивает счётчик отменённых заказов.
func (m *ShopMetrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

// RecordDeliveryCompleted увеличивает счётчик завершённых доставок.
func (m *ShopMetrics) RecordDeliveryCompleted() {
	m.deliveriesCompleted.Inc()
}

// RecordInsufficientStock увеличивает счётчик отказов по остатку.
func (m *ShopMetrics) RecordInsufficientStock() {
	m.insufficientStock.Inc()
}

// RecordVersionConflict увеличивает счётчик конфликтов версий.
func (m *ShopMetrics) RecordVersionConflict() {
	m.versionConflicts.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *ShopMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordOperationStarted увеличивает количество выполняющихся операций.
func (m *ShopMetrics) RecordOperationStarted() {
	m.activeOperations.Inc()
}

// RecordOperationFinished уменьшает количество выполняющихся операций
// и записывает длительность.
func (m *ShopMetrics) RecordOperationFinished(operation string, duration time.Duration) {
	m.activeOperations.Dec()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetrieval учитывает обращение к хранилищу (реализует fetch.Recorder).
func (m *ShopMetrics) RecordRetrieval(strategy domain.FetchStrategy, query fetch.Query) {
	m.fetchRetrievals.WithLabelValues(strategy.String(), string(query)).Inc()
}

var _ fetch.Recorder = (*ShopMetrics)(nil)
