package kafka

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// OutboxEnvelope — конверт outbox-сообщения в Kafka.
type OutboxEnvelope struct {
	ID            string              `json:"id"`
	AggregateType string              `json:"aggregate_type"`
	AggregateID   string              `json:"aggregate_id"`
	EventType     string              `json:"event_type"`
	Payload       jsoniter.RawMessage `json:"payload"`
	PublishedAt   time.Time           `json:"published_at"`
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := OutboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       jsoniter.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.topic, key, envelope)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
