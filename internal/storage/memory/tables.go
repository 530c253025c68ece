package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/fetch"
)

type categoryRow struct {
	ID       int64
	Name     string
	ParentID int64
}

// tables — строки всех таблиц. Доступ только под мьютексом Store.
type tables struct {
	seq           map[string]int64
	members       map[int64]fetch.MemberRow
	items         map[int64]fetch.ItemRow
	categories    map[int64]categoryRow
	categoryItems map[int64]map[int64]bool
	deliveries    map[int64]fetch.DeliveryRow
	orders        map[int64]fetch.OrderRow
	orderItems    map[int64]fetch.OrderItemRow
	outbox        map[string]outboxRecord
}

func newTables() *tables {
	return &tables{
		seq:           make(map[string]int64),
		members:       make(map[int64]fetch.MemberRow),
		items:         make(map[int64]fetch.ItemRow),
		categories:    make(map[int64]categoryRow),
		categoryItems: make(map[int64]map[int64]bool),
		deliveries:    make(map[int64]fetch.DeliveryRow),
		orders:        make(map[int64]fetch.OrderRow),
		orderItems:    make(map[int64]fetch.OrderItemRow),
		outbox:        make(map[string]outboxRecord),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	copyMap(c.seq, t.seq)
	copyMap(c.members, t.members)
	copyMap(c.items, t.items)
	copyMap(c.categories, t.categories)
	copyMap(c.deliveries, t.deliveries)
	copyMap(c.orders, t.orders)
	copyMap(c.orderItems, t.orderItems)
	copyMap(c.outbox, t.outbox)
	for id, links := range t.categoryItems {
		c.categoryItems[id] = make(map[int64]bool, len(links))
		copyMap(c.categoryItems[id], links)
	}
	return c
}

func copyMap[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

func (t *tables) next(table string) int64 {
	t.seq[table]++
	return t.seq[table]
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func paginate[T any](rows []T, page domain.Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(rows) {
			return rows[:0]
		}
		rows = rows[page.Offset:]
	}
	if page.Limit > 0 && len(rows) > page.Limit {
		rows = rows[:page.Limit]
	}
	return rows
}

func (t *tables) match(order fetch.OrderRow, filter fetch.Filter) bool {
	if filter.OrderID != 0 && order.ID != filter.OrderID {
		return false
	}
	if filter.Status != "" && order.Status != string(filter.Status) {
		return false
	}
	if filter.MemberName != "" {
		member, ok := t.members[order.MemberID]
		if !ok || !strings.Contains(member.Name, filter.MemberName) {
			return false
		}
	}
	return true
}

func (t *tables) filteredOrders(filter fetch.Filter) []fetch.OrderRow {
	rows := make([]fetch.OrderRow, 0)
	for _, id := range sortedKeys(t.orders) {
		order := t.orders[id]
		if t.match(order, filter) {
			rows = append(rows, order)
		}
	}
	return rows
}

func (t *tables) header(order fetch.OrderRow) (fetch.OrderHeaderRow, error) {
	member, ok := t.members[order.MemberID]
	if !ok {
		return fetch.OrderHeaderRow{}, fmt.Errorf("%w: %d", domain.ErrMemberNotFound, order.MemberID)
	}
	delivery, ok := t.deliveries[order.DeliveryID]
	if !ok {
		return fetch.OrderHeaderRow{}, fmt.Errorf("%w: %d", domain.ErrDeliveryNotFound, order.DeliveryID)
	}
	return fetch.OrderHeaderRow{OrderRow: order, MemberRow: member, DeliveryRow: delivery}, nil
}

func (t *tables) linesOf(orderIDs map[int64]bool) []fetch.OrderItemRow {
	rows := make([]fetch.OrderItemRow, 0)
	for _, id := range sortedKeys(t.orderItems) {
		line := t.orderItems[id]
		if orderIDs[line.OrderID] {
			rows = append(rows, line)
		}
	}
	return rows
}

// fetch.Source

func (t *tables) SelectOrders(_ context.Context, filter fetch.Filter, page domain.Page) ([]fetch.OrderRow, error) {
	return paginate(t.filteredOrders(filter), page), nil
}

func (t *tables) SelectOrderHeaders(_ context.Context, filter fetch.Filter, page domain.Page) ([]fetch.OrderHeaderRow, error) {
	orders := paginate(t.filteredOrders(filter), page)
	rows := make([]fetch.OrderHeaderRow, 0, len(orders))
	for _, order := range orders {
		header, err := t.header(order)
		if err != nil {
			return nil, err
		}
		rows = append(rows, header)
	}
	return rows, nil
}

func (t *tables) SelectOrderGraph(_ context.Context, filter fetch.Filter) ([]fetch.OrderGraphRow, error) {
	rows := make([]fetch.OrderGraphRow, 0)
	for _, order := range t.filteredOrders(filter) {
		header, err := t.header(order)
		if err != nil {
			return nil, err
		}
		lines := t.linesOf(map[int64]bool{order.ID: true})
		if len(lines) == 0 {
			rows = append(rows, fetch.NewOrderGraphRow(header, nil, nil))
			continue
		}
		for _, line := range lines {
			item, ok := t.items[line.ItemID]
			if !ok {
				return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, line.ItemID)
			}
			rows = append(rows, fetch.NewOrderGraphRow(header, &line, &item))
		}
	}
	return rows, nil
}

func (t *tables) SelectOrderItems(_ context.Context, orderIDs []int64) ([]fetch.OrderItemRow, error) {
	return t.linesOf(idSet(orderIDs)), nil
}

func (t *tables) SelectItems(_ context.Context, itemIDs []int64) ([]fetch.ItemRow, error) {
	wanted := idSet(itemIDs)
	rows := make([]fetch.ItemRow, 0, len(itemIDs))
	for _, id := range sortedKeys(t.items) {
		if wanted[id] {
			rows = append(rows, t.items[id])
		}
	}
	return rows, nil
}

func (t *tables) SelectMembers(_ context.Context, memberIDs []int64) ([]fetch.MemberRow, error) {
	wanted := idSet(memberIDs)
	rows := make([]fetch.MemberRow, 0, len(memberIDs))
	for _, id := range sortedKeys(t.members) {
		if wanted[id] {
			rows = append(rows, t.members[id])
		}
	}
	return rows, nil
}

func (t *tables) SelectDeliveries(_ context.Context, deliveryIDs []int64) ([]fetch.DeliveryRow, error) {
	wanted := idSet(deliveryIDs)
	rows := make([]fetch.DeliveryRow, 0, len(deliveryIDs))
	for _, id := range sortedKeys(t.deliveries) {
		if wanted[id] {
			rows = append(rows, t.deliveries[id])
		}
	}
	return rows, nil
}

// fetch.Writer

func (t *tables) InsertDelivery(_ context.Context, row fetch.DeliveryRow) (int64, error) {
	row.ID = t.next("deliveries")
	t.deliveries[row.ID] = row
	return row.ID, nil
}

func (t *tables) InsertOrder(_ context.Context, row fetch.OrderRow) (int64, error) {
	if _, ok := t.members[row.MemberID]; !ok {
		return 0, fmt.Errorf("%w: %d", domain.ErrMemberNotFound, row.MemberID)
	}
	if _, ok := t.deliveries[row.DeliveryID]; !ok {
		return 0, fmt.Errorf("%w: %d", domain.ErrDeliveryNotFound, row.DeliveryID)
	}
	row.ID = t.next("orders")
	t.orders[row.ID] = row
	return row.ID, nil
}

func (t *tables) InsertOrderItem(_ context.Context, row fetch.OrderItemRow) (int64, error) {
	if _, ok := t.orders[row.OrderID]; !ok {
		return 0, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, row.OrderID)
	}
	if _, ok := t.items[row.ItemID]; !ok {
		return 0, fmt.Errorf("%w: %d", domain.ErrItemNotFound, row.ItemID)
	}
	row.ID = t.next("order_items")
	t.orderItems[row.ID] = row
	return row.ID, nil
}

func (t *tables) UpdateOrderStatus(_ context.Context, id int64, status string, expectedVersion int64) error {
	row, ok := t.orders[id]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	if row.Version != expectedVersion {
		return fmt.Errorf("%w: order %d has version %d, expected %d", domain.ErrOrderVersionConflict, id, row.Version, expectedVersion)
	}
	row.Status = status
	row.Version++
	t.orders[id] = row
	return nil
}

func (t *tables) UpdateDeliveryStatus(_ context.Context, id int64, status string) error {
	row, ok := t.deliveries[id]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrDeliveryNotFound, id)
	}
	row.Status = status
	t.deliveries[id] = row
	return nil
}

var (
	_ fetch.Source = (*tables)(nil)
	_ fetch.Writer = (*tables)(nil)
)
