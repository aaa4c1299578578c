package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestBuildOrderEventMapsOutboxTypes(t *testing.T) {
	tests := []struct {
		outboxType string
		want       EventType
	}{
		{"OrderCreated", EventTypeOrderCreated},
		{"OrderCancelled", EventTypeOrderCancelled},
		{"OrderStatusChanged", EventTypeOrderStatusSet},
		{"PaymentCompleted", EventTypePaymentCompleted},
		{"RefundFlagged", EventTypePaymentRefunded},
		{"PaymentStatusSet", EventTypePaymentStatusSet},
	}

	for _, tc := range tests {
		t.Run(tc.outboxType, func(t *testing.T) {
			event, err := buildOrderEvent(domain.OutboxMessage{
				ID:          "msg-1",
				AggregateID: "order-1",
				EventType:   tc.outboxType,
				Payload:     []byte(`{"order_id":"order-1"}`),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, event.EventType)
			assert.Equal(t, "order-1", event.OrderID)
			assert.Equal(t, "msg-1", event.EventID)
		})
	}
}

func TestBuildOrderEventExtractsStatusAndTimestamp(t *testing.T) {
	occurred := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	payload := []byte(`{"order_id":"order-1","status":"shipped","ts":"` + occurred.Format(time.RFC3339Nano) + `"}`)

	event, err := buildOrderEvent(domain.OutboxMessage{
		ID:          "msg-2",
		AggregateID: "order-1",
		EventType:   "OrderStatusChanged",
		Payload:     payload,
	})
	require.NoError(t, err)

	assert.Equal(t, "shipped", event.Status)
	assert.True(t, event.Timestamp.Equal(occurred))
	assert.Equal(t, "shipped", event.Metadata["status"])
}

func TestBuildOrderEventPaymentStatus(t *testing.T) {
	event, err := buildOrderEvent(domain.OutboxMessage{
		ID:          "msg-3",
		AggregateID: "order-1",
		EventType:   "PaymentCompleted",
		Payload:     []byte(`{"order_id":"order-1","payment_status":"completed","transaction_id":"txn-1"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "completed", event.Status)
	assert.Equal(t, "txn-1", event.Metadata["transaction_id"])
}

func TestBuildOrderEventUnknownTypePassesThrough(t *testing.T) {
	event, err := buildOrderEvent(domain.OutboxMessage{
		ID:          "msg-4",
		AggregateID: "order-1",
		EventType:   "SomethingNew",
	})
	require.NoError(t, err)
	assert.Equal(t, EventType("SomethingNew"), event.EventType)
}

func TestBuildOrderEventRejectsBrokenPayload(t *testing.T) {
	_, err := buildOrderEvent(domain.OutboxMessage{
		ID:          "msg-5",
		AggregateID: "order-1",
		EventType:   "OrderCreated",
		Payload:     []byte(`{broken`),
	})
	assert.Error(t, err)
}
