package domain

import "time"

// OrderFilter ограничивает выборку заказов. Пустые поля означают "без фильтра".
type OrderFilter struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Limit         int
}

// OrderRepository описывает требования к хранилищу заказов.
// Заказы никогда не удаляются — история только пополняется.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// GetByNumber ищет заказ по публичному номеру (трекинг).
	GetByNumber(number string) (Order, error)
	// ListByUser возвращает заказы пользователя с учётом фильтра.
	ListByUser(userID UserID, filter OrderFilter) ([]Order, error)
	// ListAll возвращает заказы всех пользователей (административная выборка).
	ListAll(filter OrderFilter) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// CartRepository хранит корзины пользователей.
type CartRepository interface {
	// GetByUser возвращает корзину пользователя или ErrCartNotFound.
	GetByUser(userID UserID) (Cart, error)
	// Save перезаписывает корзину целиком (upsert).
	Save(cart Cart) error
}

// ProductRepository даёт движку заказов доступ к срезу каталога.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
	// Put сохраняет товар (наполнение каталога внешним компонентом).
	Put(product Product) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
