package kafka

import "time"

// EventType определяет тип события заказа.
type EventType string

const (
	EventTypeOrderCreated     EventType = "order.created"
	EventTypeOrderCancelled   EventType = "order.cancelled"
	EventTypeOrderStatusSet   EventType = "order.status_set"
	EventTypePaymentCompleted EventType = "payment.completed"
	EventTypePaymentRefunded  EventType = "payment.refund_flagged"
	EventTypePaymentStatusSet EventType = "payment.status_set"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "shop.order.events"
	TopicDeadLetterQueue = "shop.dlq"
)

// OrderEvent представляет событие жизненного цикла заказа.
type OrderEvent struct {
	// EventID — идентификатор outbox-записи; потребители дедуплицируют по нему.
	EventID   string                 `json:"event_id,omitempty"`
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	UserID    string                 `json:"user_id,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создаёт событие заказа с текущей меткой времени.
func NewOrderEvent(eventType EventType, orderID, userID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}
