package payment

import (
	"fmt"
	"sync/atomic"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов и
// локальной разработки без внешнего провайдера.
type MockGateway struct {
	IntentErr   error
	RetrieveErr error
	// Verdict возвращается из Retrieve; по умолчанию успешный.
	Verdict domain.PaymentVerdict

	IntentCalls   atomic.Int64
	RetrieveCalls atomic.Int64
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Verdict: domain.PaymentVerdict{Succeeded: true, Reference: "txn-mock-1"},
	}
}

// CreateIntent возвращает детерминированную платёжную сессию.
func (m *MockGateway) CreateIntent(orderID string, amountMinor int64, currency string) (domain.PaymentIntent, error) {
	n := m.IntentCalls.Add(1)
	if m.IntentErr != nil {
		return domain.PaymentIntent{}, m.IntentErr
	}
	return domain.PaymentIntent{
		PaymentID:    fmt.Sprintf("pi_mock_%s_%d", orderID, n),
		ClientSecret: fmt.Sprintf("secret_mock_%d", n),
		AmountMinor:  amountMinor,
		Currency:     currency,
	}, nil
}

// Retrieve возвращает заранее настроенный вердикт.
func (m *MockGateway) Retrieve(paymentID string) (domain.PaymentVerdict, error) {
	m.RetrieveCalls.Add(1)
	if m.RetrieveErr != nil {
		return domain.PaymentVerdict{}, m.RetrieveErr
	}
	verdict := m.Verdict
	if verdict.Reference == "" {
		verdict.Reference = paymentID
	}
	return verdict, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
