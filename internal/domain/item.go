package domain

import (
	"fmt"
	"strings"
)

// ItemKind — дискриминатор вариантов товара (колонка dtype).
type ItemKind string

const (
	// ItemKindBook — книга, сейчас единственный вариант товара.
	ItemKindBook ItemKind = "BOOK"
)

// Book — данные, специфичные для варианта ItemKindBook.
type Book struct {
	Author string
	ISBN   string
}

// Item — продаваемый товар.
//
// Остаток хранится в неэкспортируемом поле: менять его можно только через
// DecreaseStock/IncreaseStock/Change, которые держат инвариант stock >= 0.
// Методы не синхронизированы. Параллельные изменения одного и того же Item
// требуют внешней взаимной блокировки (транзакция, SELECT ... FOR UPDATE)
// или атомарного UPDATE на стороне БД.
type Item struct {
	ID    int64
	Name  string
	Price int64
	Kind  ItemKind
	// Book заполнен только для Kind == ItemKindBook.
	Book *Book

	stockQuantity int
	categories    []*Category
}

// NewBook создаёт товар-книгу без идентификатора.
func NewBook(name string, price int64, stockQuantity int, book Book) (*Item, error) {
	item := &Item{Kind: ItemKindBook, Book: &book}
	if err := item.Change(name, price, stockQuantity); err != nil {
		return nil, err
	}
	return item, nil
}

// RestoreItem восстанавливает товар из хранилища, не проверяя бизнес-правила.
func RestoreItem(id int64, kind ItemKind, name string, price int64, stockQuantity int, book *Book) *Item {
	return &Item{
		ID:            id,
		Name:          name,
		Price:         price,
		Kind:          kind,
		Book:          book,
		stockQuantity: stockQuantity,
	}
}

// StockQuantity возвращает текущий остаток.
func (i *Item) StockQuantity() int {
	return i.stockQuantity
}

// DecreaseStock списывает quantity единиц.
// При нехватке возвращает ErrInsufficientStock и не меняет остаток.
func (i *Item) DecreaseStock(quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	rest := i.stockQuantity - quantity
	if rest < 0 {
		return fmt.Errorf("%w: item %d has %d, requested %d", ErrInsufficientStock, i.ID, i.stockQuantity, quantity)
	}
	i.stockQuantity = rest
	return nil
}

// IncreaseStock возвращает quantity единиц на склад. Вызывается только при отмене.
func (i *Item) IncreaseStock(quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	i.stockQuantity += quantity
	return nil
}

// Change обновляет название, цену и остаток товара целиком.
// Уже оформленные позиции не меняются: у них свой снимок цены.
func (i *Item) Change(name string, price int64, stockQuantity int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if price < 0 {
		return ErrInvalidPrice
	}
	if stockQuantity < 0 {
		return ErrInvalidQuantity
	}
	i.Name = name
	i.Price = price
	i.stockQuantity = stockQuantity
	return nil
}

// Categories возвращает категории товара, известные в текущем графе.
func (i *Item) Categories() []*Category {
	result := make([]*Category, len(i.categories))
	copy(result, i.categories)
	return result
}
