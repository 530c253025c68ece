package fetch

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// DefaultBatchSize — ширина IN-списка пакетной стратегии по умолчанию.
const DefaultBatchSize = 100

// Options задаёт параметры репозитория.
type Options struct {
	// BatchSize — максимальное число идентификаторов в одном IN-запросе.
	BatchSize int
	Recorder  Recorder
}

// Repository реализует domain.OrderRepository поверх Source и Writer.
//
// Экземпляр живёт одну единицу работы: identity map не синхронизирован
// и не очищается, поэтому переиспользовать репозиторий между транзакциями нельзя.
type Repository struct {
	source    Source
	writer    Writer
	batchSize int
	recorder  Recorder
	session   *session
	loader    *lazyLoader
}

// NewRepository создаёт репозиторий заказов.
func NewRepository(source Source, writer Writer, opts Options) *Repository {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	r := &Repository{
		source:    source,
		writer:    writer,
		batchSize: opts.BatchSize,
		recorder:  opts.Recorder,
		session:   newSession(),
	}
	r.loader = &lazyLoader{repo: r}
	return r
}

var _ domain.OrderRepository = (*Repository)(nil)

// ValidateJoin проверяет план выборки: не больше одной коллекции в join
// и никакой пагинации вместе с join коллекции.
func ValidateJoin(page domain.Page, collections ...string) error {
	if len(collections) > 1 {
		return fmt.Errorf("%w: %v", domain.ErrMultipleCollectionFetch, collections)
	}
	if len(collections) == 1 && !page.IsZero() {
		return fmt.Errorf("%w: %s", domain.ErrCollectionFetchPaging, collections[0])
	}
	return nil
}

// Create сохраняет заказ каскадом: доставку, заказ, позиции.
func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	if order == nil {
		return fmt.Errorf("order is nil")
	}
	if order.MemberID() == 0 {
		return fmt.Errorf("%w: member is not persisted", domain.ErrMemberNotFound)
	}
	delivery := order.Delivery()
	if delivery == nil {
		return fmt.Errorf("%w: delivery of new order", domain.ErrAssociationNotLoaded)
	}

	if delivery.ID == 0 {
		id, err := r.writer.InsertDelivery(ctx, DeliveryRowOf(delivery))
		if err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
		delivery.ID = id
	}

	row := OrderRowOf(order)
	row.DeliveryID = delivery.ID
	id, err := r.writer.InsertOrder(ctx, row)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	order.ID = id

	for _, line := range order.Items() {
		if line.ItemID() == 0 {
			return fmt.Errorf("%w: order item references unsaved item", domain.ErrItemNotFound)
		}
		lineID, err := r.writer.InsertOrderItem(ctx, OrderItemRow{
			OrderID:    order.ID,
			ItemID:     line.ItemID(),
			OrderPrice: line.OrderPrice,
			Count:      line.Count,
		})
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		line.ID = lineID
	}

	order.BindLoader(r.loader)
	r.session.register(order)
	return nil
}

// Save сохраняет статусы заказа и доставки. Версия заказа увеличивается на единицу.
func (r *Repository) Save(ctx context.Context, order *domain.Order) error {
	if err := r.writer.UpdateOrderStatus(ctx, order.ID, string(order.Status), order.Version); err != nil {
		return err
	}
	order.Version++

	if delivery := order.Delivery(); delivery != nil {
		if err := r.writer.UpdateDeliveryStatus(ctx, delivery.ID, string(delivery.Status)); err != nil {
			return fmt.Errorf("update delivery status: %w", err)
		}
	}
	return nil
}

// FindOne загружает заказ выбранной стратегией.
func (r *Repository) FindOne(ctx context.Context, id int64, strategy domain.FetchStrategy) (*domain.Order, error) {
	orders, err := r.find(ctx, Filter{OrderID: id}, strategy, domain.Page{})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	return orders[0], nil
}

// FindAll загружает заказы по фильтру выбранной стратегией.
func (r *Repository) FindAll(ctx context.Context, search domain.OrderSearch, strategy domain.FetchStrategy, page domain.Page) ([]*domain.Order, error) {
	return r.find(ctx, FilterOf(search), strategy, page)
}

func (r *Repository) find(ctx context.Context, filter Filter, strategy domain.FetchStrategy, page domain.Page) ([]*domain.Order, error) {
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	switch strategy {
	case domain.FetchLazy:
		return r.findLazy(ctx, filter, page)
	case domain.FetchToOneJoin:
		return r.findToOneJoin(ctx, filter, page)
	case domain.FetchCollectionJoin:
		if err := ValidateJoin(page, "order_items"); err != nil {
			return nil, err
		}
		return r.findCollectionJoin(ctx, filter)
	case domain.FetchBatched:
		return r.findBatched(ctx, filter, page)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFetchStrategy, strategy)
	}
}

func (r *Repository) findLazy(ctx context.Context, filter Filter, page domain.Page) ([]*domain.Order, error) {
	r.recorder.RecordRetrieval(domain.FetchLazy, QueryOrders)
	rows, err := r.source.SelectOrders(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, r.session.order(row, r.loader))
	}
	return orders, nil
}

func (r *Repository) findToOneJoin(ctx context.Context, filter Filter, page domain.Page) ([]*domain.Order, error) {
	return r.selectHeaders(ctx, domain.FetchToOneJoin, filter, page)
}

func (r *Repository) selectHeaders(ctx context.Context, strategy domain.FetchStrategy, filter Filter, page domain.Page) ([]*domain.Order, error) {
	r.recorder.RecordRetrieval(strategy, QueryOrderHeaders)
	rows, err := r.source.SelectOrderHeaders(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("select order headers: %w", err)
	}

	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, r.session.header(row, r.loader))
	}
	return orders, nil
}

func (r *Repository) findCollectionJoin(ctx context.Context, filter Filter) ([]*domain.Order, error) {
	r.recorder.RecordRetrieval(domain.FetchCollectionJoin, QueryOrderGraph)
	rows, err := r.source.SelectOrderGraph(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("select order graph: %w", err)
	}

	// Строки размножены по позициям: схлопываем по ID заказа в порядке первого появления.
	orders := make([]*domain.Order, 0)
	seen := make(map[int64]bool)
	for _, row := range rows {
		order := r.session.header(row.OrderHeaderRow, r.loader)
		if !seen[order.ID] {
			seen[order.ID] = true
			orders = append(orders, order)
		}

		line, item, ok := row.Line()
		if !ok {
			continue
		}
		orderItem := r.session.line(line)
		if orderItem.Item() == nil {
			orderItem.ConnectItem(r.session.item(item))
		}
		if orderItem.Order() == nil {
			order.AddOrderItem(orderItem)
		}
	}
	for _, order := range orders {
		order.MarkItemsLoaded()
	}
	return orders, nil
}

func (r *Repository) findBatched(ctx context.Context, filter Filter, page domain.Page) ([]*domain.Order, error) {
	orders, err := r.selectHeaders(ctx, domain.FetchBatched, filter, page)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	pending := make([]*domain.Order, 0, len(orders))
	for _, order := range orders {
		if !order.ItemsLoaded() {
			pending = append(pending, order)
		}
	}
	if err := r.batchLoadLines(ctx, pending); err != nil {
		return nil, err
	}

	var missingItems []int64
	seen := make(map[int64]bool)
	for _, order := range orders {
		for _, line := range order.Items() {
			if line.Item() != nil {
				continue
			}
			if item, ok := r.session.items[line.ItemID()]; ok {
				line.ConnectItem(item)
				continue
			}
			if !seen[line.ItemID()] {
				seen[line.ItemID()] = true
				missingItems = append(missingItems, line.ItemID())
			}
		}
	}
	if err := r.batchLoadItems(ctx, missingItems); err != nil {
		return nil, err
	}

	for _, order := range orders {
		for _, line := range order.Items() {
			if line.Item() == nil {
				item, ok := r.session.items[line.ItemID()]
				if !ok {
					return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, line.ItemID())
				}
				line.ConnectItem(item)
			}
		}
	}
	return orders, nil
}

func (r *Repository) batchLoadLines(ctx context.Context, orders []*domain.Order) error {
	byID := make(map[int64]*domain.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	for _, chunk := range chunks(ids, r.batchSize) {
		r.recorder.RecordRetrieval(domain.FetchBatched, QueryOrderItems)
		rows, err := r.source.SelectOrderItems(ctx, chunk)
		if err != nil {
			return fmt.Errorf("select order items: %w", err)
		}
		for _, row := range rows {
			order, ok := byID[row.OrderID]
			if !ok {
				continue
			}
			line := r.session.line(row)
			if line.Order() == nil {
				order.AddOrderItem(line)
			}
		}
	}
	for _, order := range orders {
		order.MarkItemsLoaded()
	}
	return nil
}

func (r *Repository) batchLoadItems(ctx context.Context, ids []int64) error {
	for _, chunk := range chunks(ids, r.batchSize) {
		r.recorder.RecordRetrieval(domain.FetchBatched, QueryItems)
		rows, err := r.source.SelectItems(ctx, chunk)
		if err != nil {
			return fmt.Errorf("select items: %w", err)
		}
		for _, row := range rows {
			r.session.item(row)
		}
	}
	return nil
}

func chunks(ids []int64, size int) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	result := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		result = append(result, ids[start:end])
	}
	return result
}
