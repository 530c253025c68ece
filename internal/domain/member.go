package domain

import "strings"

// Address — встраиваемое значение адреса участника и доставки.
type Address struct {
	City    string
	Street  string
	Zipcode string
}

// Member — участник магазина.
//
// Список заказов — только обратная ссылка: участник не владеет заказами
// и не сохраняет их каскадно. Пополняется через Order.ConnectMember.
type Member struct {
	ID      int64
	Name    string
	Address Address

	orders []*Order
}

// NewMember создаёт участника без идентификатора (его назначает репозиторий).
func NewMember(name string, address Address) (*Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return &Member{Name: name, Address: address}, nil
}

// Orders возвращает заказы участника, известные в текущем графе объектов.
func (m *Member) Orders() []*Order {
	result := make([]*Order, len(m.orders))
	copy(result, m.orders)
	return result
}

// Rename меняет имя участника.
func (m *Member) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	m.Name = name
	return nil
}

func (m *Member) attachOrder(o *Order) {
	for _, existing := range m.orders {
		if existing == o {
			return
		}
	}
	m.orders = append(m.orders, o)
}

func (m *Member) detachOrder(o *Order) {
	for i, existing := range m.orders {
		if existing == o {
			m.orders = append(m.orders[:i], m.orders[i+1:]...)
			return
		}
	}
}
