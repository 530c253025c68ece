package domain

import (
	"context"
	"fmt"
)

// OrderItem — позиция заказа со снимком цены на момент оформления.
type OrderItem struct {
	ID int64
	// OrderPrice — цена единицы на момент заказа; последующие изменения Item.Price её не трогают.
	OrderPrice int64
	Count      int

	itemID int64
	item   *Item
	order  *Order
}

// CreateOrderItem создаёт позицию и сразу списывает count единиц со склада.
// При нехватке возвращает ErrInsufficientStock, остаток товара не меняется.
// Позиция с count == 0 допустима и не трогает склад.
func CreateOrderItem(item *Item, orderPrice int64, count int) (*OrderItem, error) {
	if item == nil {
		return nil, ErrItemNotFound
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: count %d", ErrInvalidQuantity, count)
	}
	if orderPrice < 0 {
		return nil, ErrInvalidPrice
	}
	if err := item.DecreaseStock(count); err != nil {
		return nil, err
	}

	orderItem := &OrderItem{OrderPrice: orderPrice, Count: count}
	orderItem.ConnectItem(item)
	return orderItem, nil
}

// RestoreOrderItem восстанавливает позицию из хранилища без загруженного товара.
func RestoreOrderItem(id, itemID, orderPrice int64, count int) *OrderItem {
	return &OrderItem{ID: id, OrderPrice: orderPrice, Count: count, itemID: itemID}
}

// ConnectItem связывает позицию с товаром. Связь односторонняя.
func (oi *OrderItem) ConnectItem(item *Item) {
	oi.item = item
	oi.itemID = item.ID
}

// ItemID возвращает идентификатор товара.
func (oi *OrderItem) ItemID() int64 {
	if oi.item != nil {
		return oi.item.ID
	}
	return oi.itemID
}

// Item возвращает товар или nil, если он не загружен.
func (oi *OrderItem) Item() *Item { return oi.item }

// Order возвращает заказ-владелец.
func (oi *OrderItem) Order() *Order { return oi.order }

// OrderID возвращает идентификатор заказа-владельца или 0.
func (oi *OrderItem) OrderID() int64 {
	if oi.order == nil {
		return 0
	}
	return oi.order.ID
}

// LoadItem возвращает товар, при необходимости подгружая его через загрузчик заказа.
func (oi *OrderItem) LoadItem(ctx context.Context) (*Item, error) {
	if oi.item != nil {
		return oi.item, nil
	}
	if oi.order == nil || oi.order.loader == nil {
		return nil, fmt.Errorf("%w: item %d", ErrAssociationNotLoaded, oi.itemID)
	}
	item, err := oi.order.loader.LoadItem(ctx, oi.itemID)
	if err != nil {
		return nil, err
	}
	oi.ConnectItem(item)
	return item, nil
}

// Cancel возвращает count единиц на склад.
func (oi *OrderItem) Cancel() error {
	if oi.item == nil {
		return fmt.Errorf("%w: item %d", ErrAssociationNotLoaded, oi.itemID)
	}
	return oi.item.IncreaseStock(oi.Count)
}

// TotalPrice — orderPrice * count.
func (oi *OrderItem) TotalPrice() int64 {
	return oi.OrderPrice * int64(oi.Count)
}
