package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/fetch"
)

// rowStore — строки агрегата заказа для fetch.Repository.
type rowStore struct {
	q sqlx.ExtContext
}

var (
	_ fetch.Source = (*rowStore)(nil)
	_ fetch.Writer = (*rowStore)(nil)
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// filterExpressions переводит фильтр в условия по псевдонимам o и m.
func filterExpressions(filter fetch.Filter) []exp.Expression {
	var expressions []exp.Expression
	if filter.OrderID != 0 {
		expressions = append(expressions, goqu.T(aliasOrder).Col("id").Eq(filter.OrderID))
	}
	if filter.Status != "" {
		expressions = append(expressions, goqu.T(aliasOrder).Col("status").Eq(string(filter.Status)))
	}
	if filter.MemberName != "" {
		expressions = append(expressions, goqu.T(aliasMember).Col("name").Like("%"+likeEscaper.Replace(filter.MemberName)+"%"))
	}
	return expressions
}

func paged(ds *goqu.SelectDataset, page domain.Page) *goqu.SelectDataset {
	if page.Offset > 0 {
		ds = ds.Offset(uint(page.Offset))
	}
	if page.Limit > 0 {
		ds = ds.Limit(uint(page.Limit))
	}
	return ds
}

// ordersWithMember — orders o JOIN members m; участник нужен для фильтра по имени.
func ordersWithMember() *goqu.SelectDataset {
	return dialect.From(goqu.T("orders").As(aliasOrder)).
		Join(goqu.T("members").As(aliasMember), goqu.On(goqu.T(aliasMember).Col("id").Eq(goqu.T(aliasOrder).Col("member_id"))))
}

func (s *rowStore) SelectOrders(ctx context.Context, filter fetch.Filter, page domain.Page) ([]fetch.OrderRow, error) {
	rows := make([]fetch.OrderRow, 0)
	ds := ordersWithMember().
		Select(orderColumns(aliasOrder)...).
		Where(filterExpressions(filter)...).
		Order(goqu.T(aliasOrder).Col("id").Asc())
	if err := selectRows(ctx, s.q, &rows, paged(ds, page)); err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return rows, nil
}

func (s *rowStore) headers() *goqu.SelectDataset {
	return ordersWithMember().
		Join(goqu.T("deliveries").As(aliasDelivery), goqu.On(goqu.T(aliasDelivery).Col("id").Eq(goqu.T(aliasOrder).Col("delivery_id"))))
}

func (s *rowStore) SelectOrderHeaders(ctx context.Context, filter fetch.Filter, page domain.Page) ([]fetch.OrderHeaderRow, error) {
	rows := make([]fetch.OrderHeaderRow, 0)
	ds := s.headers().
		Select(columns(orderColumns(aliasOrder), memberColumns(aliasMember), deliveryColumns(aliasDelivery))...).
		Where(filterExpressions(filter)...).
		Order(goqu.T(aliasOrder).Col("id").Asc())
	if err := selectRows(ctx, s.q, &rows, paged(ds, page)); err != nil {
		return nil, fmt.Errorf("select order headers: %w", err)
	}
	return rows, nil
}

// SelectOrderGraph выбирает заголовки вместе с позициями и товарами.
// order_item_order_id не выбирается: в graph-строке заказ позиции берётся из заголовка.
func (s *rowStore) SelectOrderGraph(ctx context.Context, filter fetch.Filter) ([]fetch.OrderGraphRow, error) {
	rows := make([]fetch.OrderGraphRow, 0)
	ds := s.headers().
		LeftJoin(goqu.T("order_items").As(aliasOrderItem), goqu.On(goqu.T(aliasOrderItem).Col("order_id").Eq(goqu.T(aliasOrder).Col("id")))).
		LeftJoin(goqu.T("items").As(aliasItem), goqu.On(goqu.T(aliasItem).Col("id").Eq(goqu.T(aliasOrderItem).Col("item_id")))).
		Select(columns(
			orderColumns(aliasOrder),
			memberColumns(aliasMember),
			deliveryColumns(aliasDelivery),
			[]interface{}{
				goqu.T(aliasOrderItem).Col("id").As("order_item_id"),
				goqu.T(aliasOrderItem).Col("item_id").As("order_item_item_id"),
				goqu.T(aliasOrderItem).Col("order_price").As("order_item_order_price"),
				goqu.T(aliasOrderItem).Col("count").As("order_item_count"),
			},
			itemColumns(aliasItem),
		)...).
		Where(filterExpressions(filter)...).
		Order(goqu.T(aliasOrder).Col("id").Asc(), goqu.T(aliasOrderItem).Col("id").Asc().NullsLast())
	if err := selectRows(ctx, s.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select order graph: %w", err)
	}
	return rows, nil
}

func (s *rowStore) SelectOrderItems(ctx context.Context, orderIDs []int64) ([]fetch.OrderItemRow, error) {
	rows := make([]fetch.OrderItemRow, 0)
	if len(orderIDs) == 0 {
		return rows, nil
	}
	ds := dialect.From(goqu.T("order_items").As(aliasOrderItem)).
		Select(orderItemColumns(aliasOrderItem)...).
		Where(goqu.T(aliasOrderItem).Col("order_id").In(orderIDs)).
		Order(goqu.T(aliasOrderItem).Col("id").Asc())
	if err := selectRows(ctx, s.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	return rows, nil
}

func (s *rowStore) SelectItems(ctx context.Context, itemIDs []int64) ([]fetch.ItemRow, error) {
	rows := make([]fetch.ItemRow, 0)
	if len(itemIDs) == 0 {
		return rows, nil
	}
	ds := dialect.From(goqu.T("items").As(aliasItem)).
		Select(itemColumns(aliasItem)...).
		Where(goqu.T(aliasItem).Col("id").In(itemIDs)).
		Order(goqu.T(aliasItem).Col("id").Asc())
	if err := selectRows(ctx, s.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return rows, nil
}

func (s *rowStore) SelectMembers(ctx context.Context, memberIDs []int64) ([]fetch.MemberRow, error) {
	rows := make([]fetch.MemberRow, 0)
	if len(memberIDs) == 0 {
		return rows, nil
	}
	ds := dialect.From(goqu.T("members").As(aliasMember)).
		Select(memberColumns(aliasMember)...).
		Where(goqu.T(aliasMember).Col("id").In(memberIDs)).
		Order(goqu.T(aliasMember).Col("id").Asc())
	if err := selectRows(ctx, s.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	return rows, nil
}

func (s *rowStore) SelectDeliveries(ctx context.Context, deliveryIDs []int64) ([]fetch.DeliveryRow, error) {
	rows := make([]fetch.DeliveryRow, 0)
	if len(deliveryIDs) == 0 {
		return rows, nil
	}
	ds := dialect.From(goqu.T("deliveries").As(aliasDelivery)).
		Select(deliveryColumns(aliasDelivery)...).
		Where(goqu.T(aliasDelivery).Col("id").In(deliveryIDs)).
		Order(goqu.T(aliasDelivery).Col("id").Asc())
	if err := selectRows(ctx, s.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select deliveries: %w", err)
	}
	return rows, nil
}

func (s *rowStore) InsertDelivery(ctx context.Context, row fetch.DeliveryRow) (int64, error) {
	id, err := insertReturningID(ctx, s.q, dialect.Insert("deliveries").Rows(goqu.Record{
		"city":    row.City,
		"street":  row.Street,
		"zipcode": row.Zipcode,
		"status":  row.Status,
	}))
	if err != nil {
		return 0, fmt.Errorf("insert delivery: %w", err)
	}
	return id, nil
}

func (s *rowStore) InsertOrder(ctx context.Context, row fetch.OrderRow) (int64, error) {
	id, err := insertReturningID(ctx, s.q, dialect.Insert("orders").Rows(goqu.Record{
		"member_id":   row.MemberID,
		"delivery_id": row.DeliveryID,
		"order_date":  row.OrderDate,
		"status":      row.Status,
		"version":     row.Version,
	}))
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%w: %d", domain.ErrMemberNotFound, row.MemberID)
		}
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (s *rowStore) InsertOrderItem(ctx context.Context, row fetch.OrderItemRow) (int64, error) {
	id, err := insertReturningID(ctx, s.q, dialect.Insert("order_items").Rows(goqu.Record{
		"order_id":    row.OrderID,
		"item_id":     row.ItemID,
		"order_price": row.OrderPrice,
		"count":       row.Count,
	}))
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%w: %d", domain.ErrItemNotFound, row.ItemID)
		}
		return 0, fmt.Errorf("insert order item: %w", err)
	}
	return id, nil
}

// UpdateOrderStatus меняет статус, только если версия в базе равна expectedVersion.
func (s *rowStore) UpdateOrderStatus(ctx context.Context, id int64, status string, expectedVersion int64) error {
	affected, err := execUpdate(ctx, s.q, dialect.Update("orders").
		Set(goqu.Record{
			"status":  status,
			"version": goqu.L("version + 1"),
		}).
		Where(goqu.C("id").Eq(id), goqu.C("version").Eq(expectedVersion)))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected > 0 {
		return nil
	}

	ok, err := exists(ctx, s.q, "orders", id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	return fmt.Errorf("%w: order %d, expected version %d", domain.ErrOrderVersionConflict, id, expectedVersion)
}

func (s *rowStore) UpdateDeliveryStatus(ctx context.Context, id int64, status string) error {
	affected, err := execUpdate(ctx, s.q, dialect.Update("deliveries").
		Set(goqu.Record{"status": status}).
		Where(goqu.C("id").Eq(id)))
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", domain.ErrDeliveryNotFound, id)
	}
	return nil
}
