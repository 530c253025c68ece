package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func newTestOrder(t *testing.T) *domain.Order {
	t.Helper()

	member, err := domain.NewMember("userA", domain.Address{City: "Seoul", Street: "1", Zipcode: "1111"})
	require.NoError(t, err)
	member.ID = 1

	book1, err := domain.NewBook("JPA1 BOOK", 10000, 100, domain.Book{})
	require.NoError(t, err)
	book1.ID = 10
	book2, err := domain.NewBook("JPA2 BOOK", 20000, 100, domain.Book{})
	require.NoError(t, err)
	book2.ID = 11

	line1, err := domain.CreateOrderItem(book1, book1.Price, 1)
	require.NoError(t, err)
	line2, err := domain.CreateOrderItem(book2, book2.Price, 2)
	require.NoError(t, err)

	order, err := domain.CreateOrder(member, domain.NewDelivery(member.Address), line1, line2)
	require.NoError(t, err)
	order.ID = 7
	return order
}

func TestProducer_PublishEvent(t *testing.T) {
	// Создаем mock producer
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer)

	// Проверяем содержимое сообщения
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		event, err := DecodeOrderEvent(val)
		if err != nil {
			return err
		}
		if event.OrderID != 7 {
			t.Errorf("expected order id 7, got %d", event.OrderID)
		}
		return nil
	})

	event := NewOrderEvent(EventTypeOrderPlaced, newTestOrder(t))

	err := producer.PublishEvent(TopicOrderEvents, "7", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидание ошибки
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(TopicOrderEvents, "7", NewOrderEvent(EventTypeOrderCanceled, newTestOrder(t)))
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	order := newTestOrder(t)

	event := NewOrderEvent(EventTypeOrderPlaced, order)

	assert.Equal(t, EventTypeOrderPlaced, event.EventType)
	assert.Equal(t, int64(7), event.OrderID)
	assert.Equal(t, int64(1), event.MemberID)
	assert.Equal(t, "ORDER", event.Status)
	assert.Equal(t, "READY", event.DeliveryStatus)
	assert.Equal(t, int64(50000), event.TotalPrice)
	require.Len(t, event.Lines, 2)
	assert.Equal(t, OrderEventLine{ItemID: 11, OrderPrice: 20000, Count: 2}, event.Lines[1])

	// Проверяем, что timestamp близок к текущему времени
	assert.False(t, event.Timestamp.IsZero())
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Second)
}

func TestOrderEventMarshalDecode(t *testing.T) {
	event := NewOrderEvent(EventTypeDeliveryCompleted, newTestOrder(t))

	data, err := event.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_type":"order.delivery_completed"`)

	decoded, err := DecodeOrderEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event.OrderID, decoded.OrderID)
	assert.Equal(t, event.Lines, decoded.Lines)

	_, err = DecodeOrderEvent([]byte("{"))
	assert.Error(t, err)
}
