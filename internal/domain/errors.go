package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка оформления заказа из пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка несоответствия суммы заказа формуле subtotal+tax+shipping-discount.
	ErrTotalMismatch = errors.New("order total does not match pricing formula")
	// Ошибка отрицательной денежной суммы в заказе.
	ErrAmountNegative = errors.New("order amounts must be non-negative")
	// Ошибка нераспознанного статуса заказа.
	ErrInvalidOrderStatus = errors.New("invalid order status")
	// Ошибка нераспознанного статуса оплаты.
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	// Ошибка нераспознанного способа оплаты.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	// Ошибка отсутствующего адреса доставки.
	ErrShippingAddressRequired = errors.New("shipping address is required")

	// ErrCartNotFound возвращается, если корзина пользователя не найдена.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartItemNotFound возвращается, если позиции нет в корзине.
	ErrCartItemNotFound = errors.New("item not found in cart")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductInactive — товар снят с продажи и не может попасть в заказ.
	ErrProductInactive = errors.New("product is not active")

	// ErrAccessDenied — попытка доступа к чужому заказу без административной роли.
	ErrAccessDenied = errors.New("access denied")
	// ErrOrderNotCancellable — заказ в терминальном статусе, отмена запрещена.
	ErrOrderNotCancellable = errors.New("order cannot be cancelled in its current status")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")

	// ErrPaymentNotSuccessful — шлюз вернул неуспешный вердикт по платежу.
	ErrPaymentNotSuccessful = errors.New("payment not successful")
	// ErrGatewayUnavailable — платёжный шлюз недоступен или вернул ошибку транспорта.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — ключ идемпотентности пустой.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — hash запроса пустой.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key used with different request")
	// ErrIdempotencyKeyNotFound — записи с таким ключом нет.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// OutOfStockError возвращается складом, когда стока не хватает на весь батч.
// Содержит первый отказавший товар и доступный остаток, чтобы вызывающая
// сторона могла решить, повторять ли запрос.
type OutOfStockError struct {
	ProductID   string
	ProductName string
	Requested   int32
	Available   int32
}

func (e *OutOfStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

// IsOutOfStock проверяет, является ли ошибка нехваткой стока.
func IsOutOfStock(err error) bool {
	var target *OutOfStockError
	return errors.As(err, &target)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
