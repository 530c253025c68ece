package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/shop/internal/projection"
)

// querySource — выборки представлений заказов без загрузки агрегатов.
type querySource struct {
	q sqlx.ExtContext
}

var _ projection.QuerySource = (*querySource)(nil)

func headerColumns() []interface{} {
	return []interface{}{
		goqu.T(aliasOrder).Col("id").As("order_id"),
		goqu.T(aliasMember).Col("name").As("member_name"),
		goqu.T(aliasOrder).Col("order_date").As("order_date"),
		goqu.T(aliasOrder).Col("status").As("order_status"),
		goqu.T(aliasDelivery).Col("city").As("city"),
		goqu.T(aliasDelivery).Col("street").As("street"),
		goqu.T(aliasDelivery).Col("zipcode").As("zipcode"),
	}
}

func (s *querySource) headers() *goqu.SelectDataset {
	return (&rowStore{q: s.q}).headers()
}

func (s *querySource) SelectOrderHeaders(ctx context.Context) ([]projection.OrderHeader, error) {
	rows := make([]projection.OrderHeader, 0)
	ds := s.headers().
		Select(headerColumns()...).
		Order(goqu.T(aliasOrder).Col("id").Asc())
	if err := selectRows(ctx, s.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select order headers: %w", err)
	}
	return rows, nil
}

func (s *querySource) SelectLineItems(ctx context.Context, orderIDs []int64) ([]projection.LineItemRow, error) {
	rows := make([]projection.LineItemRow, 0)
	if len(orderIDs) == 0 {
		return rows, nil
	}
	ds := dialect.From(goqu.T("order_items").As(aliasOrderItem)).
		Join(goqu.T("items").As(aliasItem), goqu.On(goqu.T(aliasItem).Col("id").Eq(goqu.T(aliasOrderItem).Col("item_id")))).
		Select(
			goqu.T(aliasOrderItem).Col("order_id").As("order_id"),
			goqu.T(aliasItem).Col("name").As("item_name"),
			goqu.T(aliasOrderItem).Col("order_price").As("order_price"),
			goqu.T(aliasOrderItem).Col("count").As("count"),
		).
		Where(goqu.T(aliasOrderItem).Col("order_id").In(orderIDs)).
		Order(goqu.T(aliasOrderItem).Col("id").Asc())
	if err := selectRows(ctx, s.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select line items: %w", err)
	}
	return rows, nil
}

// flatRow — строка LEFT JOIN; у заказа без позиций поля позиции NULL.
type flatRow struct {
	projection.OrderHeader
	OrderItemID sql.NullInt64  `db:"order_item_id"`
	ItemName    sql.NullString `db:"item_name"`
	OrderPrice  sql.NullInt64  `db:"order_price"`
	Count       sql.NullInt64  `db:"count"`
}

func (s *querySource) SelectFlatRows(ctx context.Context) ([]projection.FlatRow, error) {
	var rows []flatRow
	ds := s.headers().
		LeftJoin(goqu.T("order_items").As(aliasOrderItem), goqu.On(goqu.T(aliasOrderItem).Col("order_id").Eq(goqu.T(aliasOrder).Col("id")))).
		LeftJoin(goqu.T("items").As(aliasItem), goqu.On(goqu.T(aliasItem).Col("id").Eq(goqu.T(aliasOrderItem).Col("item_id")))).
		Select(columns(headerColumns(), []interface{}{
			goqu.T(aliasOrderItem).Col("id").As("order_item_id"),
			goqu.T(aliasItem).Col("name").As("item_name"),
			goqu.T(aliasOrderItem).Col("order_price").As("order_price"),
			goqu.T(aliasOrderItem).Col("count").As("count"),
		})...).
		Order(goqu.T(aliasOrder).Col("id").Asc(), goqu.T(aliasOrderItem).Col("id").Asc().NullsLast())
	if err := selectRows(ctx, s.q, &rows, ds); err != nil {
		return nil, fmt.Errorf("select flat rows: %w", err)
	}

	result := make([]projection.FlatRow, 0, len(rows))
	for _, row := range rows {
		flat := projection.FlatRow{OrderHeader: row.OrderHeader}
		if row.OrderItemID.Valid {
			flat.HasLine = true
			flat.ItemName = row.ItemName.String
			flat.OrderPrice = row.OrderPrice.Int64
			flat.Count = int(row.Count.Int64)
		}
		result = append(result, flat)
	}
	return result, nil
}
