package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// MessageHandler обрабатывает сообщение из Kafka.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// OrderEventHandler обрабатывает разобранное событие заказа.
type OrderEventHandler func(ctx context.Context, event *OrderEvent) error

// ConsumerConfig — параметры consumer group.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	// FromOldest читает топик с начала, иначе только новые сообщения.
	FromOldest bool
	// MaxRetries — общее число попыток с учётом x-retry-count.
	MaxRetries int
	RetryDelay time.Duration
	// DLQ получает сообщения, исчерпавшие попытки. nil — сообщение остаётся непомеченным.
	DLQ *Producer
}

// Consumer читает события заказов из consumer group.
type Consumer struct {
	group      sarama.ConsumerGroup
	topics     []string
	handler    MessageHandler
	logger     *log.Entry
	wg         sync.WaitGroup
	dlq        *Producer
	maxRetries int
	retryDelay time.Duration
}

// NewConsumer создаёт consumer без DLQ, читающий новые сообщения.
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler) (*Consumer, error) {
	return NewConsumerWithConfig(ConsumerConfig{Brokers: brokers, GroupID: groupID, Topics: topics}, handler)
}

// NewConsumerWithDLQ создаёт consumer, перекладывающий необработанные сообщения в TopicDeadLetterQueue.
func NewConsumerWithDLQ(brokers []string, groupID string, topics []string, handler MessageHandler, dlqProducer *Producer, maxRetries int) (*Consumer, error) {
	return NewConsumerWithConfig(ConsumerConfig{
		Brokers:    brokers,
		GroupID:    groupID,
		Topics:     topics,
		MaxRetries: maxRetries,
		DLQ:        dlqProducer,
	}, handler)
}

// NewConsumerWithConfig создаёт consumer по ConsumerConfig.
func NewConsumerWithConfig(cfg ConsumerConfig, handler MessageHandler) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.FromOldest {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return newConsumer(group, cfg, handler), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg ConsumerConfig, handler MessageHandler) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &Consumer{
		group:      group,
		topics:     cfg.Topics,
		handler:    handler,
		logger:     log.WithFields(log.Fields{"component": "kafka-consumer", "group": cfg.GroupID}),
		dlq:        cfg.DLQ,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// OrderEvents превращает OrderEventHandler в MessageHandler.
// Сообщения, которые не удаётся разобрать, считаются ошибкой обработки.
func OrderEvents(handle OrderEventHandler) MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		event, err := ParseOrderEvent(message)
		if err != nil {
			return err
		}
		return handle(ctx, event)
	}
}

// Start запускает чтение в фоне до отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			// Consume завершается при каждом rebalance
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("error from consumer")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop закрывает группу и ждёт фоновые горутины.
func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim обрабатывает сообщения партиции и помечает успешно обработанные.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			fields := log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}
			if err := c.process(session.Context(), message); err != nil {
				c.logger.WithError(err).WithFields(fields).Error("message processing failed after all retries")
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// process вызывает handler с повторами. Попытки, уже сделанные до
// переотправки (x-retry-count), вычитаются из maxRetries.
func (c *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) error {
	previous := retryCount(message)
	attempts := max(c.maxRetries-previous, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = c.handler(ctx, message); err == nil {
			return nil
		}
		c.logger.WithError(err).WithFields(log.Fields{
			"topic":       message.Topic,
			"retry_count": previous,
			"attempt":     attempt,
		}).Warn("message processing failed")

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	if c.dlq == nil {
		return err
	}
	if dlqErr := c.sendToDLQ(message, err, previous+attempts); dlqErr != nil {
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}
	c.logger.WithFields(log.Fields{
		"topic":  message.Topic,
		"offset": message.Offset,
	}).Info("message sent to DLQ after max retries")
	return nil
}

func retryCount(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if header != nil && string(header.Key) == HeaderRetryCount {
			if count, err := strconv.Atoi(string(header.Value)); err == nil {
				return count
			}
		}
	}
	return 0
}

// DeadLetter — сообщение в TopicDeadLetterQueue.
type DeadLetter struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	RetryCount        int       `json:"retry_count"`
}

func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingErr error, attempts int) error {
	letter := DeadLetter{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      processingErr.Error(),
		FailedAt:          time.Now().UTC(),
		RetryCount:        attempts,
	}
	return c.dlq.PublishEvent(TopicDeadLetterQueue, string(message.Key), letter)
}

// ParseOutboxEnvelope разбирает конверт outbox-сообщения.
func ParseOutboxEnvelope(message *sarama.ConsumerMessage) (*OutboxEnvelope, error) {
	var envelope OutboxEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbox envelope: %w", err)
	}
	return &envelope, nil
}

// ParseOrderEvent разбирает OrderEvent как из конверта outbox, так и без него.
func ParseOrderEvent(message *sarama.ConsumerMessage) (*OrderEvent, error) {
	envelope, err := ParseOutboxEnvelope(message)
	if err != nil {
		return nil, err
	}
	data := message.Value
	if len(envelope.Payload) > 0 && string(envelope.Payload) != "null" {
		data = envelope.Payload
	}
	event, err := DecodeOrderEvent(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return event, nil
}
