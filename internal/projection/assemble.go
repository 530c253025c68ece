package projection

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Group схлопывает плоские строки в представления по ID заказа.
// Порядок заказов — порядок первого появления, порядок позиций сохраняется.
func Group(rows []FlatRow) []OrderView {
	views := make([]OrderView, 0)
	index := make(map[int64]int)

	for _, row := range rows {
		pos, ok := index[row.OrderID]
		if !ok {
			pos = len(views)
			index[row.OrderID] = pos
			views = append(views, row.OrderHeader.view())
		}
		if row.HasLine {
			views[pos].LineItems = append(views[pos].LineItems, LineItemView{
				ItemName:   row.ItemName,
				OrderPrice: row.OrderPrice,
				Count:      row.Count,
			})
		}
	}
	return views
}

// Assemble собирает представления из заголовков и позиций (двухфазная сборка).
// Заказ без позиций получает пустой список; позиции чужих заказов отбрасываются.
func Assemble(headers []OrderHeader, lines []LineItemRow) []OrderView {
	views := make([]OrderView, len(headers))
	index := make(map[int64]int, len(headers))
	for i, header := range headers {
		views[i] = header.view()
		index[header.OrderID] = i
	}

	for _, line := range lines {
		pos, ok := index[line.OrderID]
		if !ok {
			continue
		}
		views[pos].LineItems = append(views[pos].LineItems, LineItemView{
			ItemName:   line.ItemName,
			OrderPrice: line.OrderPrice,
			Count:      line.Count,
		})
	}
	return views
}

// FromAggregates строит представления из загруженных агрегатов.
// Недостающие связи подгружаются через загрузчик агрегата.
func FromAggregates(ctx context.Context, orders []*domain.Order) ([]OrderView, error) {
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		member, err := order.LoadMember(ctx)
		if err != nil {
			return nil, err
		}
		delivery, err := order.LoadDelivery(ctx)
		if err != nil {
			return nil, err
		}
		items, err := order.LoadItems(ctx)
		if err != nil {
			return nil, err
		}

		view := OrderView{
			OrderID:    order.ID,
			MemberName: member.Name,
			OrderDate:  order.OrderDate,
			Status:     order.Status,
			Address: AddressView{
				City:    delivery.Address.City,
				Street:  delivery.Address.Street,
				Zipcode: delivery.Address.Zipcode,
			},
			LineItems: make([]LineItemView, 0, len(items)),
		}
		for _, line := range items {
			item, err := line.LoadItem(ctx)
			if err != nil {
				return nil, err
			}
			view.LineItems = append(view.LineItems, LineItemView{
				ItemName:   item.Name,
				OrderPrice: line.OrderPrice,
				Count:      line.Count,
			})
		}
		views = append(views, view)
	}
	return views, nil
}
