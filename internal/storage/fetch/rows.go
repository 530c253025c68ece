package fetch

import (
	"database/sql"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Имена колонок в строках уникальны в пределах одной выборки: header- и
// graph-строки склеивают несколько таблиц, и sqlx сопоставляет колонки с
// полями встроенных структур по тегу db.

// OrderRow — строка таблицы orders.
type OrderRow struct {
	ID         int64     `db:"order_id"`
	MemberID   int64     `db:"order_member_id"`
	DeliveryID int64     `db:"order_delivery_id"`
	OrderDate  time.Time `db:"order_date"`
	Status     string    `db:"order_status"`
	Version    int64     `db:"order_version"`
}

// MemberRow — строка таблицы members.
type MemberRow struct {
	ID      int64  `db:"member_id"`
	Name    string `db:"member_name"`
	City    string `db:"member_city"`
	Street  string `db:"member_street"`
	Zipcode string `db:"member_zipcode"`
}

// DeliveryRow — строка таблицы deliveries.
type DeliveryRow struct {
	ID      int64  `db:"delivery_id"`
	City    string `db:"delivery_city"`
	Street  string `db:"delivery_street"`
	Zipcode string `db:"delivery_zipcode"`
	Status  string `db:"delivery_status"`
}

// OrderItemRow — строка таблицы order_items.
type OrderItemRow struct {
	ID         int64 `db:"order_item_id"`
	OrderID    int64 `db:"order_item_order_id"`
	ItemID     int64 `db:"order_item_item_id"`
	OrderPrice int64 `db:"order_item_order_price"`
	Count      int   `db:"order_item_count"`
}

// ItemRow — строка таблицы items (single table, дискриминатор dtype).
type ItemRow struct {
	ID            int64  `db:"item_id"`
	Kind          string `db:"item_dtype"`
	Name          string `db:"item_name"`
	Price         int64  `db:"item_price"`
	StockQuantity int    `db:"item_stock_quantity"`
	Author        string `db:"item_author"`
	ISBN          string `db:"item_isbn"`
}

// OrderHeaderRow — заказ вместе с участником и доставкой (to-one join).
type OrderHeaderRow struct {
	OrderRow
	MemberRow
	DeliveryRow
}

// OrderGraphRow — строка join-выборки коллекции: заголовок заказа, позиция и её товар.
// Для заказа без позиций (LEFT JOIN) поля позиции и товара равны NULL.
type OrderGraphRow struct {
	OrderHeaderRow

	LineID            sql.NullInt64  `db:"order_item_id"`
	LineItemID        sql.NullInt64  `db:"order_item_item_id"`
	LineOrderPrice    sql.NullInt64  `db:"order_item_order_price"`
	LineCount         sql.NullInt64  `db:"order_item_count"`
	ItemID            sql.NullInt64  `db:"item_id"`
	ItemKind          sql.NullString `db:"item_dtype"`
	ItemName          sql.NullString `db:"item_name"`
	ItemPrice         sql.NullInt64  `db:"item_price"`
	ItemStockQuantity sql.NullInt64  `db:"item_stock_quantity"`
	ItemAuthor        sql.NullString `db:"item_author"`
	ItemISBN          sql.NullString `db:"item_isbn"`
}

// NewOrderGraphRow собирает graph-строку из частей; line и item могут быть nil.
func NewOrderGraphRow(header OrderHeaderRow, line *OrderItemRow, item *ItemRow) OrderGraphRow {
	row := OrderGraphRow{OrderHeaderRow: header}
	if line != nil {
		row.LineID = sql.NullInt64{Int64: line.ID, Valid: true}
		row.LineItemID = sql.NullInt64{Int64: line.ItemID, Valid: true}
		row.LineOrderPrice = sql.NullInt64{Int64: line.OrderPrice, Valid: true}
		row.LineCount = sql.NullInt64{Int64: int64(line.Count), Valid: true}
	}
	if item != nil {
		row.ItemID = sql.NullInt64{Int64: item.ID, Valid: true}
		row.ItemKind = sql.NullString{String: item.Kind, Valid: true}
		row.ItemName = sql.NullString{String: item.Name, Valid: true}
		row.ItemPrice = sql.NullInt64{Int64: item.Price, Valid: true}
		row.ItemStockQuantity = sql.NullInt64{Int64: int64(item.StockQuantity), Valid: true}
		row.ItemAuthor = sql.NullString{String: item.Author, Valid: true}
		row.ItemISBN = sql.NullString{String: item.ISBN, Valid: true}
	}
	return row
}

// Line возвращает позицию и товар строки; ok == false для заказа без позиций.
func (r OrderGraphRow) Line() (OrderItemRow, ItemRow, bool) {
	if !r.LineID.Valid {
		return OrderItemRow{}, ItemRow{}, false
	}
	line := OrderItemRow{
		ID:         r.LineID.Int64,
		OrderID:    r.OrderRow.ID,
		ItemID:     r.LineItemID.Int64,
		OrderPrice: r.LineOrderPrice.Int64,
		Count:      int(r.LineCount.Int64),
	}
	item := ItemRow{
		ID:            r.ItemID.Int64,
		Kind:          r.ItemKind.String,
		Name:          r.ItemName.String,
		Price:         r.ItemPrice.Int64,
		StockQuantity: int(r.ItemStockQuantity.Int64),
		Author:        r.ItemAuthor.String,
		ISBN:          r.ItemISBN.String,
	}
	return line, item, true
}

// MemberRowOf переводит участника в строку.
func MemberRowOf(m *domain.Member) MemberRow {
	return MemberRow{ID: m.ID, Name: m.Name, City: m.Address.City, Street: m.Address.Street, Zipcode: m.Address.Zipcode}
}

// Member восстанавливает участника из строки.
func (r MemberRow) Member() *domain.Member {
	return &domain.Member{
		ID:      r.ID,
		Name:    r.Name,
		Address: domain.Address{City: r.City, Street: r.Street, Zipcode: r.Zipcode},
	}
}

// DeliveryRowOf переводит доставку в строку.
func DeliveryRowOf(d *domain.Delivery) DeliveryRow {
	return DeliveryRow{
		ID:      d.ID,
		City:    d.Address.City,
		Street:  d.Address.Street,
		Zipcode: d.Address.Zipcode,
		Status:  string(d.Status),
	}
}

// Delivery восстанавливает доставку из строки.
func (r DeliveryRow) Delivery() *domain.Delivery {
	address := domain.Address{City: r.City, Street: r.Street, Zipcode: r.Zipcode}
	return domain.RestoreDelivery(r.ID, address, domain.DeliveryStatus(r.Status))
}

// ItemRowOf переводит товар в строку.
func ItemRowOf(item *domain.Item) ItemRow {
	row := ItemRow{
		ID:            item.ID,
		Kind:          string(item.Kind),
		Name:          item.Name,
		Price:         item.Price,
		StockQuantity: item.StockQuantity(),
	}
	if item.Book != nil {
		row.Author = item.Book.Author
		row.ISBN = item.Book.ISBN
	}
	return row
}

// Item восстанавливает товар из строки.
func (r ItemRow) Item() *domain.Item {
	var book *domain.Book
	if domain.ItemKind(r.Kind) == domain.ItemKindBook {
		book = &domain.Book{Author: r.Author, ISBN: r.ISBN}
	}
	return domain.RestoreItem(r.ID, domain.ItemKind(r.Kind), r.Name, r.Price, r.StockQuantity, book)
}

// OrderRowOf переводит заказ в строку без связей.
func OrderRowOf(o *domain.Order) OrderRow {
	return OrderRow{
		ID:         o.ID,
		MemberID:   o.MemberID(),
		DeliveryID: o.DeliveryID(),
		OrderDate:  o.OrderDate,
		Status:     string(o.Status),
		Version:    o.Version,
	}
}

// Order восстанавливает заготовку заказа из строки.
func (r OrderRow) Order() *domain.Order {
	return domain.RestoreOrder(r.ID, r.MemberID, r.DeliveryID, r.OrderDate, domain.OrderStatus(r.Status), r.Version)
}

// OrderItem восстанавливает позицию из строки.
func (r OrderItemRow) OrderItem() *domain.OrderItem {
	return domain.RestoreOrderItem(r.ID, r.ItemID, r.OrderPrice, r.Count)
}
