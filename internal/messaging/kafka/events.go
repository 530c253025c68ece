package kafka

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderPlaced       EventType = domain.EventTypeOrderPlaced
	EventTypeOrderCanceled     EventType = domain.EventTypeOrderCanceled
	EventTypeDeliveryCompleted EventType = domain.EventTypeDeliveryCompleted
)

// Topics для Kafka
const (
	TopicOrderEvents     = "shop.order.events"
	TopicDeadLetterQueue = "shop.dlq"
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEventLine — позиция заказа в событии.
type OrderEventLine struct {
	ItemID     int64 `json:"item_id"`
	OrderPrice int64 `json:"order_price"`
	Count      int   `json:"count"`
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType      EventType        `json:"event_type"`
	OrderID        int64            `json:"order_id"`
	MemberID       int64            `json:"member_id"`
	Status         string           `json:"status"`
	DeliveryStatus string           `json:"delivery_status,omitempty"`
	TotalPrice     int64            `json:"total_price"`
	Lines          []OrderEventLine `json:"lines,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// NewOrderEvent создаёт событие по загруженному агрегату.
func NewOrderEvent(eventType EventType, order *domain.Order) *OrderEvent {
	event := &OrderEvent{
		EventType:  eventType,
		OrderID:    order.ID,
		MemberID:   order.MemberID(),
		Status:     string(order.Status),
		TotalPrice: order.TotalPrice(),
		Timestamp:  time.Now().UTC(),
	}
	if delivery := order.Delivery(); delivery != nil {
		event.DeliveryStatus = string(delivery.Status)
	}
	for _, line := range order.Items() {
		event.Lines = append(event.Lines, OrderEventLine{
			ItemID:     line.ItemID(),
			OrderPrice: line.OrderPrice,
			Count:      line.Count,
		})
	}
	return event
}

// Marshal сериализует событие в JSON.
func (e *OrderEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeOrderEvent разбирает событие из JSON.
func DecodeOrderEvent(data []byte) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
