package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

// initPublishers поднимает Kafka producer и publishers поверх него.
// При пустом списке брокеров или ошибке подключения сервис продолжает
// работу на noop publisher: события копятся в outbox и будут отправлены
// после переключения на живой брокер.
func initPublishers(brokers []string, logger *log.Entry) (*kafka.Producer, domain.OutboxPublisher, domain.OutboxPublisher) {
	if len(brokers) == 0 {
		return nil, kafka.NewNoopPublisher(logger), nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, kafka.NewNoopPublisher(logger), nil
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	publisher := kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
	dlq := kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
	return producer, publisher, dlq
}

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
