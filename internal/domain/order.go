package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа: ORDER → CANCEL.
type OrderStatus string

const (
	// OrderStatusOrder — заказ оформлен.
	OrderStatusOrder OrderStatus = "ORDER"
	// OrderStatusCancel — заказ отменён. Конечное состояние.
	OrderStatusCancel OrderStatus = "CANCEL"
)

// ParseOrderStatus разбирает статус без учёта регистра. Пустая строка — пустой статус.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case OrderStatusOrder:
		return OrderStatusOrder, nil
	case OrderStatusCancel:
		return OrderStatusCancel, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// AssociationLoader подгружает ленивые связи агрегата по идентификатору.
// Реализуется репозиторием для стратегий, которые не загружают связи сразу.
type AssociationLoader interface {
	LoadMember(ctx context.Context, memberID int64) (*Member, error)
	LoadDelivery(ctx context.Context, deliveryID int64) (*Delivery, error)
	LoadOrderItems(ctx context.Context, orderID int64) ([]*OrderItem, error)
	LoadItem(ctx context.Context, itemID int64) (*Item, error)
}

// Order — корень агрегата: владеет доставкой и позициями, ссылается на участника.
//
// Ссылки на участника, доставку и позиции не экспортируются. Менять их можно
// только через ConnectMember, ConnectDelivery и AddOrderItem, которые
// выставляют обе стороны связи.
type Order struct {
	ID        int64
	OrderDate time.Time
	Status    OrderStatus
	// Version используется для optimistic locking при сохранении.
	Version int64

	memberID    int64
	deliveryID  int64
	member      *Member
	delivery    *Delivery
	items       []*OrderItem
	itemsLoaded bool
	loader      AssociationLoader
}

// CreateOrder собирает новый заказ: связывает участника, доставку и позиции,
// ставит статус ORDER и дату заказа. Остаток товаров списывает CreateOrderItem.
func CreateOrder(member *Member, delivery *Delivery, items ...*OrderItem) (*Order, error) {
	if member == nil {
		return nil, ErrMemberNotFound
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	if len(items) == 0 {
		return nil, ErrOrderItemsRequired
	}

	order := &Order{
		Status:      OrderStatusOrder,
		OrderDate:   time.Now().UTC(),
		itemsLoaded: true,
	}
	order.ConnectMember(member)
	order.ConnectDelivery(delivery)
	for _, item := range items {
		order.AddOrderItem(item)
	}
	return order, nil
}

// RestoreOrder восстанавливает заготовку заказа из хранилища.
// Связи не загружены: их подключает репозиторий или загрузчик.
func RestoreOrder(id, memberID, deliveryID int64, orderDate time.Time, status OrderStatus, version int64) *Order {
	return &Order{
		ID:         id,
		OrderDate:  orderDate,
		Status:     status,
		Version:    version,
		memberID:   memberID,
		deliveryID: deliveryID,
	}
}

// ConnectMember связывает заказ с участником с обеих сторон.
func (o *Order) ConnectMember(member *Member) {
	if o.member == member {
		return
	}
	if o.member != nil {
		o.member.detachOrder(o)
	}
	o.member = member
	o.memberID = member.ID
	member.attachOrder(o)
}

// ConnectDelivery связывает заказ с доставкой с обеих сторон.
func (o *Order) ConnectDelivery(delivery *Delivery) {
	if o.delivery == delivery {
		return
	}
	if o.delivery != nil {
		o.delivery.order = nil
	}
	o.delivery = delivery
	o.deliveryID = delivery.ID
	delivery.order = o
}

// AddOrderItem добавляет позицию и выставляет её обратную ссылку на заказ.
func (o *Order) AddOrderItem(item *OrderItem) {
	if item.order != nil && item.order != o {
		item.order.removeOrderItem(item)
	}
	item.order = o
	o.itemsLoaded = true
	for _, existing := range o.items {
		if existing == item {
			return
		}
	}
	o.items = append(o.items, item)
}

// MarkItemsLoaded отмечает коллекцию позиций загруженной, даже если она пуста.
func (o *Order) MarkItemsLoaded() {
	o.itemsLoaded = true
}

// BindLoader задаёт загрузчик ленивых связей.
func (o *Order) BindLoader(loader AssociationLoader) {
	o.loader = loader
}

// MemberID возвращает идентификатор участника.
func (o *Order) MemberID() int64 {
	if o.member != nil {
		return o.member.ID
	}
	return o.memberID
}

// DeliveryID возвращает идентификатор доставки.
func (o *Order) DeliveryID() int64 {
	if o.delivery != nil {
		return o.delivery.ID
	}
	return o.deliveryID
}

// Member возвращает участника или nil, если связь не загружена.
func (o *Order) Member() *Member { return o.member }

// Delivery возвращает доставку или nil, если связь не загружена.
func (o *Order) Delivery() *Delivery { return o.delivery }

// ItemsLoaded сообщает, загружена ли коллекция позиций.
func (o *Order) ItemsLoaded() bool { return o.itemsLoaded }

// Items возвращает копию списка позиций (пустой, если коллекция не загружена).
func (o *Order) Items() []*OrderItem {
	result := make([]*OrderItem, len(o.items))
	copy(result, o.items)
	return result
}

// LoadMember возвращает участника, при необходимости подгружая его.
func (o *Order) LoadMember(ctx context.Context) (*Member, error) {
	if o.member != nil {
		return o.member, nil
	}
	if o.loader == nil {
		return nil, fmt.Errorf("%w: member of order %d", ErrAssociationNotLoaded, o.ID)
	}
	member, err := o.loader.LoadMember(ctx, o.memberID)
	if err != nil {
		return nil, err
	}
	o.ConnectMember(member)
	return member, nil
}

// LoadDelivery возвращает доставку, при необходимости подгружая её.
func (o *Order) LoadDelivery(ctx context.Context) (*Delivery, error) {
	if o.delivery != nil {
		return o.delivery, nil
	}
	if o.loader == nil {
		return nil, fmt.Errorf("%w: delivery of order %d", ErrAssociationNotLoaded, o.ID)
	}
	delivery, err := o.loader.LoadDelivery(ctx, o.deliveryID)
	if err != nil {
		return nil, err
	}
	o.ConnectDelivery(delivery)
	return delivery, nil
}

// LoadItems возвращает позиции заказа, при необходимости подгружая коллекцию.
func (o *Order) LoadItems(ctx context.Context) ([]*OrderItem, error) {
	if o.itemsLoaded {
		return o.Items(), nil
	}
	if o.loader == nil {
		return nil, fmt.Errorf("%w: items of order %d", ErrAssociationNotLoaded, o.ID)
	}
	items, err := o.loader.LoadOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		o.AddOrderItem(item)
	}
	o.itemsLoaded = true
	return o.Items(), nil
}

// Initialize загружает весь граф агрегата: участника, доставку, позиции и их товары.
func (o *Order) Initialize(ctx context.Context) error {
	if _, err := o.LoadMember(ctx); err != nil {
		return err
	}
	if _, err := o.LoadDelivery(ctx); err != nil {
		return err
	}
	items, err := o.LoadItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if _, err := item.LoadItem(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Cancel отменяет заказ и возвращает товар на склад по каждой позиции.
//
// Запрещено, если доставка завершена или заказ уже отменён (ErrInvalidState).
// Требует загруженных доставки, позиций и их товаров. Проверки выполняются
// до первого изменения, поэтому при ошибке агрегат остаётся нетронутым.
func (o *Order) Cancel() error {
	if o.Status == OrderStatusCancel {
		return fmt.Errorf("%w: order %d is already canceled", ErrInvalidState, o.ID)
	}
	if o.delivery == nil {
		return fmt.Errorf("%w: delivery of order %d", ErrAssociationNotLoaded, o.ID)
	}
	if o.delivery.Status == DeliveryStatusComp {
		return fmt.Errorf("%w: delivery of order %d is already completed", ErrInvalidState, o.ID)
	}
	if !o.itemsLoaded {
		return fmt.Errorf("%w: items of order %d", ErrAssociationNotLoaded, o.ID)
	}
	for _, item := range o.items {
		if item.item == nil {
			return fmt.Errorf("%w: item %d of order %d", ErrAssociationNotLoaded, item.itemID, o.ID)
		}
		if item.Count < 0 {
			return ErrInvalidQuantity
		}
	}

	o.Status = OrderStatusCancel
	for _, item := range o.items {
		if err := item.Cancel(); err != nil {
			return err
		}
	}
	return nil
}

// TotalPrice — сумма orderPrice*count по загруженным позициям.
// Для заглушки с незагруженной коллекцией (ItemsLoaded() == false) вернёт 0,
// в этом случае нужен LoadTotalPrice.
func (o *Order) TotalPrice() int64 {
	var total int64
	for _, item := range o.items {
		total += item.TotalPrice()
	}
	return total
}

// LoadTotalPrice считает сумму заказа, при необходимости подгружая позиции.
func (o *Order) LoadTotalPrice(ctx context.Context) (int64, error) {
	if _, err := o.LoadItems(ctx); err != nil {
		return 0, err
	}
	return o.TotalPrice(), nil
}

func (o *Order) removeOrderItem(item *OrderItem) {
	for i, existing := range o.items {
		if existing == item {
			o.items = append(o.items[:i], o.items[i+1:]...)
			return
		}
	}
}
