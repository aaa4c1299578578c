package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OutboxKafkaPublisher адаптирует Producer к domain.OutboxPublisher.
// Ключом партиционирования служит aggregate_id, чтобы события одного заказа
// сохраняли порядок.
type OutboxKafkaPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт адаптер для публикации outbox-сообщений в Kafka.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxKafkaPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxKafkaPublisher{producer: producer, topic: topic}
}

// Publish переводит outbox-сообщение в событие топика и отправляет его.
func (p *OutboxKafkaPublisher) Publish(msg domain.OutboxMessage) error {
	event, err := buildOrderEvent(msg)
	if err != nil {
		return err
	}
	return p.producer.PublishEvent(p.topic, msg.AggregateID, event)
}

// buildOrderEvent разворачивает payload outbox-сообщения в OrderEvent.
// Момент события берётся из поля ts payload'а, если оно есть.
func buildOrderEvent(msg domain.OutboxMessage) (*OrderEvent, error) {
	metadata := make(map[string]interface{})
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &metadata); err != nil {
			return nil, fmt.Errorf("decode outbox payload %s: %w", msg.ID, err)
		}
	}

	var status string
	for _, key := range []string{"status", "payment_status"} {
		if v, ok := metadata[key].(string); ok {
			status = v
			break
		}
	}

	event := NewOrderEvent(wireEventType(msg.EventType), msg.AggregateID, "", status, metadata)
	event.EventID = msg.ID
	if ts, ok := metadata["ts"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			event.Timestamp = parsed
		}
	}
	return event, nil
}

// wireEventType переводит внутреннее имя события outbox в тип события топика.
// Неизвестные имена пропускаются как есть, чтобы событие не потерялось.
func wireEventType(outboxType string) EventType {
	switch outboxType {
	case "OrderCreated":
		return EventTypeOrderCreated
	case "OrderCancelled":
		return EventTypeOrderCancelled
	case "OrderStatusChanged":
		return EventTypeOrderStatusSet
	case "PaymentCompleted":
		return EventTypePaymentCompleted
	case "RefundFlagged":
		return EventTypePaymentRefunded
	case "PaymentStatusSet":
		return EventTypePaymentStatusSet
	default:
		return EventType(outboxType)
	}
}

// NoopPublisher логирует событие вместо отправки. Используется, когда Kafka
// не сконфигурирована.
type NoopPublisher struct {
	logger *log.Entry
}

// NewNoopPublisher создаёт publisher-заглушку.
func NewNoopPublisher(logger *log.Entry) *NoopPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-noop")
	}
	return &NoopPublisher{logger: logger}
}

// Publish пишет событие в лог и считает его доставленным.
func (p *NoopPublisher) Publish(msg domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_type":   msg.EventType,
		"aggregate_id": msg.AggregateID,
	}).Info("outbox event dropped (kafka disabled)")
	return nil
}

var _ domain.OutboxPublisher = (*OutboxKafkaPublisher)(nil)
var _ domain.OutboxPublisher = (*NoopPublisher)(nil)
