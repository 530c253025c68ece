package fetch

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Filter ограничивает выборку заказов. Нулевые поля не фильтруют.
type Filter struct {
	OrderID    int64
	MemberName string
	Status     domain.OrderStatus
}

// FilterOf строит фильтр по поисковому запросу.
func FilterOf(search domain.OrderSearch) Filter {
	return Filter{MemberName: search.MemberName, Status: search.OrderStatus}
}

// Source — чтение строк для стратегий загрузки.
// Каждый вызов соответствует ровно одному обращению к хранилищу.
// Все методы возвращают строки в порядке возрастания ID (для graph — ID заказа, затем ID позиции).
type Source interface {
	SelectOrders(ctx context.Context, filter Filter, page domain.Page) ([]OrderRow, error)
	SelectOrderHeaders(ctx context.Context, filter Filter, page domain.Page) ([]OrderHeaderRow, error)
	SelectOrderGraph(ctx context.Context, filter Filter) ([]OrderGraphRow, error)
	SelectOrderItems(ctx context.Context, orderIDs []int64) ([]OrderItemRow, error)
	SelectItems(ctx context.Context, itemIDs []int64) ([]ItemRow, error)
	SelectMembers(ctx context.Context, memberIDs []int64) ([]MemberRow, error)
	SelectDeliveries(ctx context.Context, deliveryIDs []int64) ([]DeliveryRow, error)
}

// Writer — запись строк агрегата заказа.
type Writer interface {
	InsertDelivery(ctx context.Context, row DeliveryRow) (int64, error)
	InsertOrder(ctx context.Context, row OrderRow) (int64, error)
	InsertOrderItem(ctx context.Context, row OrderItemRow) (int64, error)
	// UpdateOrderStatus меняет статус, если версия совпадает с expectedVersion, и увеличивает её.
	// Возвращает ErrOrderVersionConflict при несовпадении и ErrOrderNotFound, если заказа нет.
	UpdateOrderStatus(ctx context.Context, id int64, status string, expectedVersion int64) error
	UpdateDeliveryStatus(ctx context.Context, id int64, status string) error
}

// Query — имя выборки для учёта обращений к хранилищу.
type Query string

const (
	QueryOrders       Query = "orders"
	QueryOrderHeaders Query = "order_headers"
	QueryOrderGraph   Query = "order_graph"
	QueryOrderItems   Query = "order_items"
	QueryItems        Query = "items"
	QueryMembers      Query = "members"
	QueryDeliveries   Query = "deliveries"
)

// Recorder учитывает обращения к хранилищу по стратегиям.
type Recorder interface {
	RecordRetrieval(strategy domain.FetchStrategy, query Query)
}

// RecorderFunc адаптирует функцию к Recorder.
type RecorderFunc func(strategy domain.FetchStrategy, query Query)

func (f RecorderFunc) RecordRetrieval(strategy domain.FetchStrategy, query Query) {
	f(strategy, query)
}

type nopRecorder struct{}

func (nopRecorder) RecordRetrieval(domain.FetchStrategy, Query) {}

// Counter — Recorder, считающий обращения. Используется в тестах и CLI.
type Counter struct {
	total   int
	byQuery map[Query]int
}

func (c *Counter) RecordRetrieval(_ domain.FetchStrategy, query Query) {
	if c.byQuery == nil {
		c.byQuery = make(map[Query]int)
	}
	c.total++
	c.byQuery[query]++
}

// Total возвращает общее число обращений.
func (c *Counter) Total() int { return c.total }

// Of возвращает число обращений заданной выборки.
func (c *Counter) Of(query Query) int { return c.byQuery[query] }

// Reset обнуляет счётчик.
func (c *Counter) Reset() {
	c.total = 0
	c.byQuery = nil
}

// Multi объединяет несколько Recorder.
func Multi(recorders ...Recorder) Recorder {
	return RecorderFunc(func(strategy domain.FetchStrategy, query Query) {
		for _, r := range recorders {
			if r != nil {
				r.RecordRetrieval(strategy, query)
			}
		}
	})
}
