package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/projection"
	"github.com/vladislavdragonenkov/shop/internal/storage/fetch"
)

// querySource строит строки представлений прямо из таблиц.
type querySource struct {
	t *tables
}

var _ projection.QuerySource = (*querySource)(nil)

func (q *querySource) SelectOrderHeaders(context.Context) ([]projection.OrderHeader, error) {
	headers := make([]projection.OrderHeader, 0, len(q.t.orders))
	for _, order := range q.t.filteredOrders(fetch.Filter{}) {
		header, err := q.header(order)
		if err != nil {
			return nil, err
		}
		headers = append(headers, header)
	}
	return headers, nil
}

func (q *querySource) SelectLineItems(_ context.Context, orderIDs []int64) ([]projection.LineItemRow, error) {
	lines := q.t.linesOf(idSet(orderIDs))
	rows := make([]projection.LineItemRow, 0, len(lines))
	for _, line := range lines {
		item, ok := q.t.items[line.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, line.ItemID)
		}
		rows = append(rows, projection.LineItemRow{
			OrderID:    line.OrderID,
			ItemName:   item.Name,
			OrderPrice: line.OrderPrice,
			Count:      line.Count,
		})
	}
	return rows, nil
}

func (q *querySource) SelectFlatRows(ctx context.Context) ([]projection.FlatRow, error) {
	headers, err := q.SelectOrderHeaders(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]projection.FlatRow, 0, len(headers))
	for _, header := range headers {
		lines, err := q.SelectLineItems(ctx, []int64{header.OrderID})
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			rows = append(rows, projection.FlatRow{OrderHeader: header})
			continue
		}
		for _, line := range lines {
			rows = append(rows, projection.FlatRow{
				OrderHeader: header,
				HasLine:     true,
				ItemName:    line.ItemName,
				OrderPrice:  line.OrderPrice,
				Count:       line.Count,
			})
		}
	}
	return rows, nil
}

func (q *querySource) header(order fetch.OrderRow) (projection.OrderHeader, error) {
	row, err := q.t.header(order)
	if err != nil {
		return projection.OrderHeader{}, err
	}
	return projection.OrderHeader{
		OrderID:    row.OrderRow.ID,
		MemberName: row.MemberRow.Name,
		OrderDate:  row.OrderRow.OrderDate,
		Status:     domain.OrderStatus(row.OrderRow.Status),
		AddressView: projection.AddressView{
			City:    row.DeliveryRow.City,
			Street:  row.DeliveryRow.Street,
			Zipcode: row.DeliveryRow.Zipcode,
		},
	}, nil
}
