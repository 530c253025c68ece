package domain

import "errors"

var (
	// ErrInsufficientStock — на складе меньше единиц товара, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidState — операция недопустима в текущем состоянии агрегата
	// (например, отмена заказа с завершённой доставкой).
	ErrInvalidState = errors.New("invalid state")
	// ErrDuplicateMember — участник с таким именем уже зарегистрирован.
	ErrDuplicateMember = errors.New("member already exists")
	// ErrInvalidQuantity — отрицательное количество в складской операции или позиции.
	ErrInvalidQuantity = errors.New("quantity must be non-negative")
	// ErrInvalidPrice — отрицательная цена товара или позиции.
	ErrInvalidPrice = errors.New("price must be non-negative")
	// ErrNameRequired — пустое имя участника, товара или категории.
	ErrNameRequired = errors.New("name is required")
	// ErrOrderItemsRequired — заказ без позиций.
	ErrOrderItemsRequired = errors.New("order must contain at least one item")
	// ErrAssociationNotLoaded — связь агрегата не загружена и загрузчик не задан.
	ErrAssociationNotLoaded = errors.New("association is not loaded")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrMemberNotFound возвращается, если участник не найден.
	ErrMemberNotFound = errors.New("member not found")
	// ErrItemNotFound возвращается, если товар не найден.
	ErrItemNotFound = errors.New("item not found")
	// ErrDeliveryNotFound возвращается, если доставка не найдена.
	ErrDeliveryNotFound = errors.New("delivery not found")
	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")

	// ErrUnknownFetchStrategy — стратегия выборки не из перечисления FetchStrategy.
	ErrUnknownFetchStrategy = errors.New("unknown fetch strategy")
	// ErrCollectionFetchPaging — join-выборка коллекции вместе с offset/limit.
	// Строки размножаются по позициям, поэтому пагинация по заказам теряет смысл.
	ErrCollectionFetchPaging = errors.New("collection fetch join cannot be paginated")
	// ErrMultipleCollectionFetch — попытка join-выборки двух коллекций в одном запросе.
	ErrMultipleCollectionFetch = errors.New("only one collection may be fetch-joined per query")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrDeliveryNotFound) ||
		errors.Is(err, ErrCategoryNotFound)
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой товара.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
