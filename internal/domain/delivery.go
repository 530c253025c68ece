package domain

import "fmt"

// DeliveryStatus — состояние доставки заказа.
type DeliveryStatus string

const (
	// DeliveryStatusReady — доставка ещё не выполнена, заказ можно отменить.
	DeliveryStatusReady DeliveryStatus = "READY"
	// DeliveryStatusComp — доставка завершена.
	DeliveryStatusComp DeliveryStatus = "COMP"
)

// Delivery принадлежит ровно одному заказу (1:1, ссылка хранится в заказе).
type Delivery struct {
	ID      int64
	Address Address
	Status  DeliveryStatus

	order *Order
}

// NewDelivery создаёт доставку по адресу в статусе READY.
func NewDelivery(address Address) *Delivery {
	return &Delivery{Address: address, Status: DeliveryStatusReady}
}

// RestoreDelivery восстанавливает доставку из хранилища.
func RestoreDelivery(id int64, address Address, status DeliveryStatus) *Delivery {
	return &Delivery{ID: id, Address: address, Status: status}
}

// Order возвращает заказ-владелец, если он есть в текущем графе.
func (d *Delivery) Order() *Order {
	return d.order
}

// Complete переводит доставку READY → COMP.
// Доставку отменённого заказа завершить нельзя.
func (d *Delivery) Complete() error {
	if d.Status == DeliveryStatusComp {
		return fmt.Errorf("%w: delivery %d is already completed", ErrInvalidState, d.ID)
	}
	if d.order != nil && d.order.Status == OrderStatusCancel {
		return fmt.Errorf("%w: order %d is canceled", ErrInvalidState, d.order.ID)
	}
	d.Status = DeliveryStatusComp
	return nil
}
