// Package projection строит плоские представления заказов для чтения
// без загрузки агрегатов.
package projection

import (
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// AddressView — адрес доставки в представлении.
type AddressView struct {
	City    string `json:"city" db:"city"`
	Street  string `json:"street" db:"street"`
	Zipcode string `json:"zipcode" db:"zipcode"`
}

// LineItemView — позиция заказа в представлении.
type LineItemView struct {
	ItemName   string `json:"itemName"`
	OrderPrice int64  `json:"orderPrice"`
	Count      int    `json:"count"`
}

// OrderView — заказ с позициями для чтения.
type OrderView struct {
	OrderID    int64              `json:"orderId"`
	MemberName string             `json:"name"`
	OrderDate  time.Time          `json:"orderDate"`
	Status     domain.OrderStatus `json:"orderStatus"`
	Address    AddressView        `json:"address"`
	LineItems  []LineItemView     `json:"orderItems"`
}

// OrderSummary — заказ без позиций.
type OrderSummary struct {
	OrderID    int64              `json:"orderId"`
	MemberName string             `json:"name"`
	OrderDate  time.Time          `json:"orderDate"`
	Status     domain.OrderStatus `json:"orderStatus"`
	Address    AddressView        `json:"address"`
}

// OrderHeader — строка заголовка: заказ, имя участника и адрес доставки.
type OrderHeader struct {
	OrderID    int64              `db:"order_id"`
	MemberName string             `db:"member_name"`
	OrderDate  time.Time          `db:"order_date"`
	Status     domain.OrderStatus `db:"order_status"`
	AddressView
}

// LineItemRow — строка позиции с идентификатором заказа для группировки.
type LineItemRow struct {
	OrderID    int64  `db:"order_id"`
	ItemName   string `db:"item_name"`
	OrderPrice int64  `db:"order_price"`
	Count      int    `db:"count"`
}

// FlatRow — строка join заказа и позиции; поля заголовка повторяются в каждой строке заказа.
// HasLine == false — заказ без позиций.
type FlatRow struct {
	OrderHeader
	HasLine    bool
	ItemName   string
	OrderPrice int64
	Count      int
}

func (h OrderHeader) view() OrderView {
	return OrderView{
		OrderID:    h.OrderID,
		MemberName: h.MemberName,
		OrderDate:  h.OrderDate,
		Status:     h.Status,
		Address:    h.AddressView,
		LineItems:  []LineItemView{},
	}
}

func (h OrderHeader) summary() OrderSummary {
	return OrderSummary{
		OrderID:    h.OrderID,
		MemberName: h.MemberName,
		OrderDate:  h.OrderDate,
		Status:     h.Status,
		Address:    h.AddressView,
	}
}
