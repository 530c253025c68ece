package shop

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

// Services объединяет сервисы магазина над одним хранилищем.
type Services struct {
	Members *MemberService
	Items   *ItemService
	Orders  *OrderService
}

// New создаёт все сервисы с общими опциями.
func New(uow storage.UnitOfWork, options ...Option) *Services {
	return &Services{
		Members: NewMemberService(uow, options...),
		Items:   NewItemService(uow, options...),
		Orders:  NewOrderService(uow, options...),
	}
}

// SeedResult — идентификаторы демонстрационных данных.
type SeedResult struct {
	MemberIDs []int64
	ItemIDs   []int64
	OrderIDs  []int64
}

type seedBook struct {
	name  string
	price int64
	stock int
	count int
}

type seedMember struct {
	name    string
	address domain.Address
	books   [2]seedBook
}

var demoMembers = []seedMember{
	{
		name:    "userA",
		address: domain.Address{City: "Seoul", Street: "1", Zipcode: "1111"},
		books: [2]seedBook{
			{name: "JPA1 BOOK", price: 10000, stock: 100, count: 1},
			{name: "JPA2 BOOK", price: 20000, stock: 100, count: 2},
		},
	},
	{
		name:    "userB",
		address: domain.Address{City: "Jinju", Street: "2", Zipcode: "2222"},
		books: [2]seedBook{
			{name: "SPRING1 BOOK", price: 20000, stock: 200, count: 3},
			{name: "SPRING2 BOOK", price: 40000, stock: 300, count: 4},
		},
	},
}

// Seed заполняет хранилище демонстрационными данными: два участника,
// четыре книги и по заказу из двух позиций на участника.
func (s *Services) Seed(ctx context.Context) (SeedResult, error) {
	var result SeedResult
	for _, demo := range demoMembers {
		member, err := domain.NewMember(demo.name, demo.address)
		if err != nil {
			return result, err
		}
		memberID, err := s.Members.Join(ctx, member)
		if err != nil {
			return result, fmt.Errorf("seed member %s: %w", demo.name, err)
		}
		result.MemberIDs = append(result.MemberIDs, memberID)

		lines := make([]OrderLine, 0, len(demo.books))
		for _, book := range demo.books {
			item, err := domain.NewBook(book.name, book.price, book.stock, domain.Book{})
			if err != nil {
				return result, err
			}
			itemID, err := s.Items.SaveItem(ctx, item)
			if err != nil {
				return result, fmt.Errorf("seed item %s: %w", book.name, err)
			}
			result.ItemIDs = append(result.ItemIDs, itemID)
			lines = append(lines, OrderLine{ItemID: itemID, Count: book.count})
		}

		orderID, err := s.Orders.PlaceOrderLines(ctx, memberID, lines...)
		if err != nil {
			return result, fmt.Errorf("seed order for %s: %w", demo.name, err)
		}
		result.OrderIDs = append(result.OrderIDs, orderID)
	}
	return result, nil
}
