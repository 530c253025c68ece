package projection

import (
	"context"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// QuerySource — выборки для построения представлений.
// Заголовки и плоские строки упорядочены по ID заказа, позиции — по ID позиции.
type QuerySource interface {
	SelectOrderHeaders(ctx context.Context) ([]OrderHeader, error)
	SelectLineItems(ctx context.Context, orderIDs []int64) ([]LineItemRow, error)
	SelectFlatRows(ctx context.Context) ([]FlatRow, error)
}

// Mode задаёт способ построения представлений.
type Mode int

const (
	// ModePerOrder — заголовки, затем отдельный запрос позиций на каждый заказ (1+N).
	ModePerOrder Mode = iota + 1
	// ModeBatched — заголовки и один запрос позиций по IN-списку на пакет заказов.
	ModeBatched
	// ModeFlat — один join-запрос и группировка в памяти.
	ModeFlat
)

var modeNames = map[Mode]string{
	ModePerOrder: "per-order",
	ModeBatched:  "batched",
	ModeFlat:     "flat",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode разбирает имя режима (per-order, batched, flat).
func ParseMode(name string) (Mode, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for mode, modeName := range modeNames {
		if modeName == normalized {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown projection mode %q", name)
}

// Modes возвращает все режимы в порядке объявления.
func Modes() []Mode {
	return []Mode{ModePerOrder, ModeBatched, ModeFlat}
}

// Reader строит представления поверх QuerySource.
type Reader struct {
	source    QuerySource
	batchSize int
}

// NewReader создаёт Reader. batchSize <= 0 — все заказы одним IN-запросом.
func NewReader(source QuerySource, batchSize int) *Reader {
	return &Reader{source: source, batchSize: batchSize}
}

// Orders строит представления всех заказов в заданном режиме.
// Результат не зависит от режима.
func (r *Reader) Orders(ctx context.Context, mode Mode) ([]OrderView, error) {
	switch mode {
	case ModePerOrder:
		return r.perOrder(ctx)
	case ModeBatched:
		return r.batched(ctx)
	case ModeFlat:
		rows, err := r.source.SelectFlatRows(ctx)
		if err != nil {
			return nil, fmt.Errorf("select flat rows: %w", err)
		}
		return Group(rows), nil
	default:
		return nil, fmt.Errorf("unknown projection mode %s", mode)
	}
}

// Summaries возвращает заказы без позиций одним запросом.
func (r *Reader) Summaries(ctx context.Context) ([]OrderSummary, error) {
	headers, err := r.source.SelectOrderHeaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("select order headers: %w", err)
	}
	summaries := make([]OrderSummary, 0, len(headers))
	for _, header := range headers {
		summaries = append(summaries, header.summary())
	}
	return summaries, nil
}

func (r *Reader) perOrder(ctx context.Context) ([]OrderView, error) {
	headers, err := r.source.SelectOrderHeaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("select order headers: %w", err)
	}

	var lines []LineItemRow
	for _, header := range headers {
		orderLines, err := r.source.SelectLineItems(ctx, []int64{header.OrderID})
		if err != nil {
			return nil, fmt.Errorf("select line items of order %d: %w", header.OrderID, err)
		}
		lines = append(lines, orderLines...)
	}
	return Assemble(headers, lines), nil
}

func (r *Reader) batched(ctx context.Context) ([]OrderView, error) {
	headers, err := r.source.SelectOrderHeaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("select order headers: %w", err)
	}
	if len(headers) == 0 {
		return []OrderView{}, nil
	}

	ids := make([]int64, 0, len(headers))
	for _, header := range headers {
		ids = append(ids, header.OrderID)
	}

	size := r.batchSize
	if size <= 0 {
		size = len(ids)
	}

	var lines []LineItemRow
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := r.source.SelectLineItems(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("select line items: %w", err)
		}
		lines = append(lines, batch...)
	}
	return Assemble(headers, lines), nil
}

// AggregateReader строит представления из агрегатов, загруженных репозиторием.
type AggregateReader struct {
	orders   domain.OrderRepository
	strategy domain.FetchStrategy
}

// NewAggregateReader создаёт AggregateReader для заданной стратегии загрузки.
func NewAggregateReader(orders domain.OrderRepository, strategy domain.FetchStrategy) *AggregateReader {
	return &AggregateReader{orders: orders, strategy: strategy}
}

// Orders загружает все заказы и переводит их в представления.
func (r *AggregateReader) Orders(ctx context.Context) ([]OrderView, error) {
	orders, err := r.orders.FindAll(ctx, domain.OrderSearch{}, r.strategy, domain.Page{})
	if err != nil {
		return nil, err
	}
	return FromAggregates(ctx, orders)
}
