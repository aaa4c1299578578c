package domain

import "time"

// UserID — типизированный идентификатор пользователя. Сравнение владельца
// заказа с действующим пользователем выполняется только через Equals.
type UserID string

// Equals сравнивает идентификаторы как типизированные значения.
func (u UserID) Equals(other UserID) bool { return u == other }

// Role описывает роль действующего пользователя, полученную от внешнего
// провайдера авторизации. Сервис доверяет этому значению.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// IsAdmin сообщает, имеет ли роль административные права.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата подтверждена, заказ готовится к отправке.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен (терминальный статус).
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён, сток возвращён (терминальный статус).
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusReturned — доставленный заказ возвращён (терминальный статус).
	OrderStatusReturned OrderStatus = "returned"
)

// Valid проверяет, что статус относится к шести поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	// PaymentStatusPending — оплата не подтверждена.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted — шлюз подтвердил списание.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — шлюз отклонил платёж.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded — зафиксировано намерение возврата средств.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid проверяет, что статус оплаты поддерживается.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentMethod — способ оплаты, выбранный при оформлении.
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodPayPal     PaymentMethod = "paypal"
	PaymentMethodWallet     PaymentMethod = "wallet"
)

// Valid проверяет, что способ оплаты поддерживается.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodUPI,
		PaymentMethodPayPal, PaymentMethodWallet:
		return true
	default:
		return false
	}
}

// Address — структурированный почтовый адрес доставки или оплаты.
type Address struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Empty сообщает, что адрес не заполнен.
func (a Address) Empty() bool { return a == Address{} }

// Attributes — выбранные покупателем атрибуты товара.
type Attributes struct {
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// OrderItem представляет одну позицию заказа. Название и цена денормализованы
// на момент покупки, поздние правки каталога на них не влияют.
type OrderItem struct {
	ID          string
	ProductID   string
	ProductName string
	Qty         int32
	// PriceMinor — цена за единицу в минимальных денежных единицах (центах).
	PriceMinor int64
	Attributes Attributes
	CreatedAt  time.Time
}

// Order агрегирует состояние заказа. Список позиций после создания неизменяем.
type Order struct {
	ID     string
	Number string
	UserID UserID

	Items []OrderItem

	SubtotalMinor int64
	TaxMinor      int64
	ShippingMinor int64
	DiscountMinor int64
	TotalMinor    int64
	Currency      string

	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   PaymentMethod

	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentID     string
	TransactionID string

	TrackingNumber string
	Notes          string

	CancelledAt       *time.Time
	CancelReason      string
	RefundAmountMinor int64

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cancellable сообщает, допускает ли текущий статус отмену.
// delivered, cancelled и returned терминальны для операции отмены.
func (o *Order) Cancellable() bool {
	switch o.Status {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return false
	default:
		return true
	}
}

// StockItems возвращает пары (товар, количество) для операций со складом.
func (o *Order) StockItems() []StockItem {
	items := make([]StockItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, StockItem{ProductID: item.ProductID, Qty: item.Qty})
	}
	return items
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.PaymentMethod.Valid() {
		errs = append(errs, ErrInvalidPaymentMethod)
	}
	if o.SubtotalMinor < 0 || o.TaxMinor < 0 || o.ShippingMinor < 0 || o.DiscountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}

	// total обязан сходиться с формулой на любом сохранённом заказе.
	if o.TotalMinor != o.SubtotalMinor+o.TaxMinor+o.ShippingMinor-o.DiscountMinor {
		errs = append(errs, ErrTotalMismatch)
	}
	if calc != o.SubtotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
