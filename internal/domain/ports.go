package domain

import "time"

// StockItem — пара (товар, количество) для операций резервирования.
type StockItem struct {
	ProductID string
	Qty       int32
}

// InventoryLedger описывает атомарные операции со складским остатком.
type InventoryLedger interface {
	// Reserve выполняет батч условных декрементов по принципу "всё или ничего".
	// Декремент позиции проходит только при stock >= qty; при первом отказе
	// уже применённые декременты батча компенсируются и возвращается
	// *OutOfStockError с отказавшим товаром.
	Reserve(items []StockItem) error
	// Restore безусловно инкрементирует остатки. Вызывающая сторона обязана
	// гарантировать не более одного вызова на заказ.
	Restore(items []StockItem) error
}

// PaymentIntent — платёжная сессия, созданная внешним шлюзом.
type PaymentIntent struct {
	PaymentID    string
	ClientSecret string
	AmountMinor  int64
	Currency     string
}

// PaymentVerdict — терминальный вердикт шлюза по платежу.
type PaymentVerdict struct {
	Succeeded   bool
	Reference   string
	AmountMinor int64
}

// PaymentGateway описывает взаимодействие с внешним платёжным провайдером.
// Сервис не инициирует повторные попытки: вердикт потребляется как есть.
type PaymentGateway interface {
	// CreateIntent запрашивает платёжную сессию под заказ.
	CreateIntent(orderID string, amountMinor int64, currency string) (PaymentIntent, error)
	// Retrieve возвращает текущий вердикт по платёжной сессии.
	Retrieve(paymentID string) (PaymentVerdict, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
