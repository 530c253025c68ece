package domain

import (
	"context"
	"fmt"
	"strings"
)

// FetchStrategy задаёт, как репозиторий загружает граф заказа.
// Нулевое значение невалидно: стратегию всегда выбирает вызывающий.
type FetchStrategy int

const (
	// FetchLazy — только строки заказов; связи подгружаются при первом обращении.
	FetchLazy FetchStrategy = iota + 1
	// FetchToOneJoin — заказ вместе с участником и доставкой одним запросом.
	// Строки не размножаются, поэтому offset/limit допустимы.
	FetchToOneJoin
	// FetchCollectionJoin — заказ, участник, доставка, позиции и товары одним запросом.
	// Строки размножаются по позициям и схлопываются по идентификатору заказа.
	FetchCollectionJoin
	// FetchBatched — to-one join, затем позиции и товары пакетными IN-запросами.
	FetchBatched
)

var fetchStrategyNames = map[FetchStrategy]string{
	FetchLazy:           "lazy",
	FetchToOneJoin:      "to-one-join",
	FetchCollectionJoin: "collection-join",
	FetchBatched:        "batched",
}

func (s FetchStrategy) String() string {
	if name, ok := fetchStrategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("FetchStrategy(%d)", int(s))
}

// Validate возвращает ErrUnknownFetchStrategy для значений вне перечисления.
func (s FetchStrategy) Validate() error {
	if _, ok := fetchStrategyNames[s]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFetchStrategy, int(s))
	}
	return nil
}

// ParseFetchStrategy разбирает имя стратегии (lazy, to-one-join, collection-join, batched).
func ParseFetchStrategy(name string) (FetchStrategy, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for strategy, strategyName := range fetchStrategyNames {
		if strategyName == normalized {
			return strategy, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFetchStrategy, name)
}

// FetchStrategies возвращает все стратегии в порядке объявления.
func FetchStrategies() []FetchStrategy {
	return []FetchStrategy{FetchLazy, FetchToOneJoin, FetchCollectionJoin, FetchBatched}
}

// OrderSearch — динамический фильтр поиска заказов. Пустые поля не фильтруют.
type OrderSearch struct {
	MemberName  string
	OrderStatus OrderStatus
}

// Page — окно выборки по заказам. Limit <= 0 означает «без ограничения».
type Page struct {
	Offset int
	Limit  int
}

// IsZero сообщает, что окно не задано.
func (p Page) IsZero() bool {
	return p.Offset <= 0 && p.Limit <= 0
}

// MemberRepository описывает хранилище участников.
type MemberRepository interface {
	// Create сохраняет нового участника и назначает ему ID.
	Create(ctx context.Context, member *Member) error
	// Get возвращает участника или ErrMemberNotFound.
	Get(ctx context.Context, id int64) (*Member, error)
	// FindByName возвращает участников с точным совпадением имени.
	FindByName(ctx context.Context, name string) ([]*Member, error)
	// List возвращает всех участников в порядке ID.
	List(ctx context.Context) ([]*Member, error)
	// Save обновляет имя и адрес участника.
	Save(ctx context.Context, member *Member) error
}

// ItemRepository описывает хранилище товаров.
type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	// Get возвращает товар или ErrItemNotFound.
	Get(ctx context.Context, id int64) (*Item, error)
	List(ctx context.Context) ([]*Item, error)
	// Save перезаписывает название, цену и остаток.
	Save(ctx context.Context, item *Item) error
	// AdjustStock атомарно меняет остаток на delta.
	// Если остаток стал бы отрицательным, возвращает ErrInsufficientStock и ничего не меняет.
	AdjustStock(ctx context.Context, id int64, delta int) error
}

// CategoryRepository описывает хранилище категорий.
type CategoryRepository interface {
	// Create сохраняет категорию; ParentID == 0 — корневая категория.
	Create(ctx context.Context, category *Category) error
	Get(ctx context.Context, id int64) (*Category, error)
	// LinkItem связывает категорию и товар (многие-ко-многим).
	LinkItem(ctx context.Context, categoryID, itemID int64) error
	// ListByItem возвращает категории товара.
	ListByItem(ctx context.Context, itemID int64) ([]*Category, error)
}

// OrderRepository описывает хранилище заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с доставкой и позициями (каскад).
	// Остаток товаров сохраняется отдельно через ItemRepository.AdjustStock.
	Create(ctx context.Context, order *Order) error
	// Save сохраняет статус заказа и статус доставки с учётом optimistic locking.
	Save(ctx context.Context, order *Order) error
	// FindOne возвращает заказ, загруженный выбранной стратегией, или ErrOrderNotFound.
	FindOne(ctx context.Context, id int64, strategy FetchStrategy) (*Order, error)
	// FindAll возвращает заказы по фильтру в порядке ID.
	FindAll(ctx context.Context, search OrderSearch, strategy FetchStrategy, page Page) ([]*Order, error)
}
