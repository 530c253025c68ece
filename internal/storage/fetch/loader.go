package fetch

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// lazyLoader подгружает связи по одной на обращение (источник проблемы N+1).
type lazyLoader struct {
	repo *Repository
}

var _ domain.AssociationLoader = (*lazyLoader)(nil)

func (l *lazyLoader) LoadMember(ctx context.Context, memberID int64) (*domain.Member, error) {
	if member, ok := l.repo.session.members[memberID]; ok {
		return member, nil
	}
	l.repo.recorder.RecordRetrieval(domain.FetchLazy, QueryMembers)
	rows, err := l.repo.source.SelectMembers(ctx, []int64{memberID})
	if err != nil {
		return nil, fmt.Errorf("select member: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrMemberNotFound, memberID)
	}
	return l.repo.session.member(rows[0]), nil
}

func (l *lazyLoader) LoadDelivery(ctx context.Context, deliveryID int64) (*domain.Delivery, error) {
	if delivery, ok := l.repo.session.deliveries[deliveryID]; ok {
		return delivery, nil
	}
	l.repo.recorder.RecordRetrieval(domain.FetchLazy, QueryDeliveries)
	rows, err := l.repo.source.SelectDeliveries(ctx, []int64{deliveryID})
	if err != nil {
		return nil, fmt.Errorf("select delivery: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrDeliveryNotFound, deliveryID)
	}
	return l.repo.session.delivery(rows[0]), nil
}

func (l *lazyLoader) LoadOrderItems(ctx context.Context, orderID int64) ([]*domain.OrderItem, error) {
	l.repo.recorder.RecordRetrieval(domain.FetchLazy, QueryOrderItems)
	rows, err := l.repo.source.SelectOrderItems(ctx, []int64{orderID})
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	lines := make([]*domain.OrderItem, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, l.repo.session.line(row))
	}
	return lines, nil
}

func (l *lazyLoader) LoadItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	if item, ok := l.repo.session.items[itemID]; ok {
		return item, nil
	}
	l.repo.recorder.RecordRetrieval(domain.FetchLazy, QueryItems)
	rows, err := l.repo.source.SelectItems(ctx, []int64{itemID})
	if err != nil {
		return nil, fmt.Errorf("select item: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, itemID)
	}
	return l.repo.session.item(rows[0]), nil
}
