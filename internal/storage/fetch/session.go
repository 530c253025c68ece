package fetch

import "github.com/vladislavdragonenkov/shop/internal/domain"

// session — identity map репозитория: в пределах одной единицы работы
// одному идентификатору соответствует один объект в памяти.
type session struct {
	orders     map[int64]*domain.Order
	members    map[int64]*domain.Member
	deliveries map[int64]*domain.Delivery
	lines      map[int64]*domain.OrderItem
	items      map[int64]*domain.Item
}

func newSession() *session {
	return &session{
		orders:     make(map[int64]*domain.Order),
		members:    make(map[int64]*domain.Member),
		deliveries: make(map[int64]*domain.Delivery),
		lines:      make(map[int64]*domain.OrderItem),
		items:      make(map[int64]*domain.Item),
	}
}

func (s *session) order(row OrderRow, loader domain.AssociationLoader) *domain.Order {
	if existing, ok := s.orders[row.ID]; ok {
		return existing
	}
	order := row.Order()
	order.BindLoader(loader)
	s.orders[row.ID] = order
	return order
}

func (s *session) member(row MemberRow) *domain.Member {
	if existing, ok := s.members[row.ID]; ok {
		return existing
	}
	member := row.Member()
	s.members[row.ID] = member
	return member
}

func (s *session) delivery(row DeliveryRow) *domain.Delivery {
	if existing, ok := s.deliveries[row.ID]; ok {
		return existing
	}
	delivery := row.Delivery()
	s.deliveries[row.ID] = delivery
	return delivery
}

func (s *session) line(row OrderItemRow) *domain.OrderItem {
	if existing, ok := s.lines[row.ID]; ok {
		return existing
	}
	line := row.OrderItem()
	s.lines[row.ID] = line
	return line
}

func (s *session) item(row ItemRow) *domain.Item {
	if existing, ok := s.items[row.ID]; ok {
		return existing
	}
	item := row.Item()
	s.items[row.ID] = item
	return item
}

// header подключает к заказу участника и доставку из to-one строки.
func (s *session) header(row OrderHeaderRow, loader domain.AssociationLoader) *domain.Order {
	order := s.order(row.OrderRow, loader)
	if order.Member() == nil {
		order.ConnectMember(s.member(row.MemberRow))
	}
	if order.Delivery() == nil {
		order.ConnectDelivery(s.delivery(row.DeliveryRow))
	}
	return order
}

// register добавляет в identity map только что сохранённый граф.
func (s *session) register(order *domain.Order) {
	s.orders[order.ID] = order
	if member := order.Member(); member != nil {
		s.members[member.ID] = member
	}
	if delivery := order.Delivery(); delivery != nil {
		s.deliveries[delivery.ID] = delivery
	}
	for _, line := range order.Items() {
		s.lines[line.ID] = line
		if item := line.Item(); item != nil {
			s.items[item.ID] = item
		}
	}
}
