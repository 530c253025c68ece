// Package storage задаёт общий контракт хранилищ: единицу работы
// и набор репозиториев, привязанных к ней.
package storage

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/projection"
)

// Tx — репозитории одной единицы работы.
type Tx struct {
	Members    domain.MemberRepository
	Items      domain.ItemRepository
	Categories domain.CategoryRepository
	Orders     domain.OrderRepository
	Outbox     domain.OutboxRepository
	Queries    projection.QuerySource
}

// UnitOfWork выполняет fn атомарно: при ошибке fn все изменения откатываются.
// Репозитории из Tx нельзя использовать после возврата из fn.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store — хранилище приложения.
type Store interface {
	UnitOfWork
	// Outbox возвращает outbox-репозиторий вне единицы работы (для worker).
	Outbox() domain.OutboxRepository
	Ping(ctx context.Context) error
	Close() error
}
