package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
)

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

func splitBrokers(brokers string) []string {
	var result []string
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			result = append(result, broker)
		}
	}
	return result
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// logPublisher пишет события в лог, когда Kafka не настроена.
type logPublisher struct {
	logger *log.Entry
}

func (p logPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_id":     event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}).Info("outbox event")
	return nil
}

// NewOutboxWorker собирает worker: Kafka с DLQ при наличии producer, иначе лог.
func NewOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, logger *log.Entry) *outbox.Worker {
	options := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}

	if producer == nil {
		return outbox.NewWorker(repo, logPublisher{logger: logger.WithField("component", "outbox-log")}, options...)
	}

	options = append(options, outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)))
	return outbox.NewWorker(repo, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic), options...)
}
