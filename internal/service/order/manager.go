package order

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/pricing"
)

const (
	maxSaveAttempts    = 3
	saveRetryBaseDelay = 10 * time.Millisecond

	timelineEventOrderCreated       = "OrderCreated"
	timelineEventOrderCancelled     = "OrderCancelled"
	timelineEventOrderStatusChanged = "OrderStatusChanged"
	timelineEventPaymentStatusSet   = "PaymentStatusSet"
)

// CheckoutRequest — входные данные оформления заказа из корзины.
type CheckoutRequest struct {
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	PaymentMethod   domain.PaymentMethod
	Notes           string
}

// Manager управляет жизненным циклом заказа: оформление из корзины,
// отмена с возвратом стока и административные смены статусов.
type Manager struct {
	orders   domain.OrderRepository
	carts    domain.CartRepository
	products domain.ProductRepository
	ledger   domain.InventoryLedger
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	numbers  *NumberGenerator
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewManager создаёт рабочий экземпляр менеджера заказов.
func NewManager(
	orders domain.OrderRepository,
	carts domain.CartRepository,
	products domain.ProductRepository,
	ledger domain.InventoryLedger,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Manager {
	m := newManager(orders, carts, products, ledger, outbox, timeline, logger)
	m.metrics = metrics.NewOrderMetrics()
	return m
}

// NewManagerWithoutMetrics создаёт менеджер без метрик (для тестов).
func NewManagerWithoutMetrics(
	orders domain.OrderRepository,
	carts domain.CartRepository,
	products domain.ProductRepository,
	ledger domain.InventoryLedger,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Manager {
	return newManager(orders, carts, products, ledger, outbox, timeline, logger)
}

func newManager(
	orders domain.OrderRepository,
	carts domain.CartRepository,
	products domain.ProductRepository,
	ledger domain.InventoryLedger,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "order-manager")
	}
	return &Manager{
		orders:   orders,
		carts:    carts,
		products: products,
		ledger:   ledger,
		outbox:   outbox,
		timeline: timeline,
		numbers:  NewNumberGenerator(),
		logger:   logger,
	}
}

// CreateOrder превращает корзину пользователя в заказ: резервирует сток,
// считает цену, сохраняет заказ и очищает корзину. Резерв, запись и очистка
// составляют одну логическую транзакцию — при ошибке записи резерв
// компенсируется, корзина очищается только после надёжного сохранения.
func (m *Manager) CreateOrder(userID domain.UserID, req CheckoutRequest) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	if userID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	if req.ShippingAddress.Empty() {
		return domain.Order{}, domain.ErrShippingAddressRequired
	}
	if !req.PaymentMethod.Valid() {
		return domain.Order{}, domain.ErrInvalidPaymentMethod
	}

	cart, err := m.carts.GetByUser(userID)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			return domain.Order{}, domain.ErrEmptyCart
		}
		return domain.Order{}, err
	}
	if cart.IsEmpty() {
		return domain.Order{}, domain.ErrEmptyCart
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, cartItem := range cart.Items {
		product, err := m.products.Get(cartItem.ProductID)
		if err != nil {
			m.recordCheckoutFailure("product_missing")
			return domain.Order{}, err
		}
		if !product.Active {
			m.recordCheckoutFailure("product_inactive")
			return domain.Order{}, domain.ErrProductInactive
		}

		// Название берём из каталога на момент покупки, цену — из снапшота
		// корзины. Дальнейшие правки каталога заказ не затрагивают.
		items = append(items, domain.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   cartItem.ProductID,
			ProductName: product.Name,
			Qty:         cartItem.Qty,
			PriceMinor:  cartItem.PriceMinor,
			Attributes:  cartItem.Attributes,
			CreatedAt:   now,
		})
	}

	quote := pricing.Calculate(cart.Items, cart.DiscountMinor)

	billing := req.BillingAddress
	if billing.Empty() {
		billing = req.ShippingAddress
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		Number:          m.numbers.Next(),
		UserID:          userID,
		Items:           items,
		SubtotalMinor:   quote.SubtotalMinor,
		TaxMinor:        quote.TaxMinor,
		ShippingMinor:   quote.ShippingMinor,
		DiscountMinor:   quote.DiscountMinor,
		TotalMinor:      quote.TotalMinor,
		Currency:        defaultCurrency,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   req.PaymentMethod,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Notes:           req.Notes,
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		m.recordCheckoutFailure("validation")
		return domain.Order{}, errs[0]
	}

	// Резервирование атомарно на весь батч: либо все позиции списаны,
	// либо сток не тронут вовсе.
	stockItems := order.StockItems()
	if err := m.ledger.Reserve(stockItems); err != nil {
		if domain.IsOutOfStock(err) {
			if m.metrics != nil {
				m.metrics.RecordStockConflict()
			}
			m.recordCheckoutFailure("out_of_stock")
		}
		return domain.Order{}, err
	}

	if err := m.orders.Create(order); err != nil {
		// Запись не удалась — возвращаем резерв до того, как ошибку увидит
		// вызывающая сторона.
		if restoreErr := m.restoreWithRetry(stockItems); restoreErr != nil {
			m.logger.WithError(restoreErr).WithField("order_id", order.ID).
				Error("failed to roll back reservation after persist failure")
		}
		m.recordCheckoutFailure("persist")
		m.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		return domain.Order{}, err
	}

	// Заказ сохранён — только теперь можно очищать корзину. Ошибка очистки
	// не отменяет оформление.
	cart.Items = nil
	cart.SubtotalMinor = 0
	cart.DiscountMinor = 0
	cart.CouponCode = ""
	cart.CouponDiscountMinor = 0
	cart.UpdatedAt = now
	if err := m.carts.Save(cart); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"user_id":  string(userID),
		}).Warn("order persisted but cart was not cleared")
	}

	if m.metrics != nil {
		m.metrics.RecordOrderCreated()
	}
	m.emitEvent(&order, timelineEventOrderCreated, map[string]interface{}{
		"number":      order.Number,
		"total_minor": order.TotalMinor,
		"ts":          now.Format(time.RFC3339Nano),
	})

	return order, nil
}

// Cancel отменяет заказ и возвращает сток. Возврат выполняется строго после
// победы в условной записи статуса, поэтому происходит не более одного раза
// на заказ даже при конкурентных отменах.
func (m *Manager) Cancel(orderID string, actorID domain.UserID, role domain.Role, reason string) (domain.Order, error) {
	current, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !current.UserID.Equals(actorID) && !role.IsAdmin() {
		return domain.Order{}, domain.ErrAccessDenied
	}

	updated, err := m.applyWithRetry(orderID, func(order *domain.Order) error {
		if !order.Cancellable() {
			return domain.ErrOrderNotCancellable
		}
		now := time.Now().UTC()
		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelReason = reason
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			// Фиксируем намерение возврата; сам возврат исполняет внешний
			// компонент по полю refund_amount.
			order.PaymentStatus = domain.PaymentStatusRefunded
			order.RefundAmountMinor = order.TotalMinor
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	// Отмена уже записана, поэтому возврат обязан пройти: повторяем с
	// backoff, прежде чем признать сток утёкшим.
	if err := m.restoreWithRetry(updated.StockItems()); err != nil {
		m.logger.WithError(err).WithField("order_id", updated.ID).Error("stock restore failed after retries")
	}

	if m.metrics != nil {
		m.metrics.RecordOrderCancelled()
	}
	payload := map[string]interface{}{
		"reason": reason,
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if reason == "" {
		delete(payload, "reason")
	}
	m.emitEvent(&updated, timelineEventOrderCancelled, payload)

	return updated, nil
}

// UpdateStatus — административная смена статуса. Проверяется только
// принадлежность значения к шести известным статусам; граф переходов
// намеренно не ограничивается.
func (m *Manager) UpdateStatus(orderID string, newStatus domain.OrderStatus) (domain.Order, error) {
	if !newStatus.Valid() {
		return domain.Order{}, domain.ErrInvalidOrderStatus
	}

	updated, err := m.applyWithRetry(orderID, func(order *domain.Order) error {
		order.Status = newStatus
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	m.emitEvent(&updated, timelineEventOrderStatusChanged, map[string]interface{}{
		"status": string(updated.Status),
		"ts":     updated.UpdatedAt.Format(time.RFC3339Nano),
	})
	return updated, nil
}

// UpdatePaymentStatus — административная смена статуса оплаты с опциональной
// ссылкой на транзакцию.
func (m *Manager) UpdatePaymentStatus(orderID string, newStatus domain.PaymentStatus, transactionID string) (domain.Order, error) {
	if !newStatus.Valid() {
		return domain.Order{}, domain.ErrInvalidPaymentStatus
	}

	updated, err := m.applyWithRetry(orderID, func(order *domain.Order) error {
		order.PaymentStatus = newStatus
		if transactionID != "" {
			order.TransactionID = transactionID
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	m.emitEvent(&updated, timelineEventPaymentStatusSet, map[string]interface{}{
		"payment_status": string(updated.PaymentStatus),
		"ts":             updated.UpdatedAt.Format(time.RFC3339Nano),
	})
	return updated, nil
}

// GetOrder возвращает заказ, проверяя право доступа.
func (m *Manager) GetOrder(orderID string, actorID domain.UserID, role domain.Role) (domain.Order, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.UserID.Equals(actorID) && !role.IsAdmin() {
		return domain.Order{}, domain.ErrAccessDenied
	}
	return order, nil
}

// ListUserOrders возвращает заказы пользователя.
func (m *Manager) ListUserOrders(userID domain.UserID, filter domain.OrderFilter) ([]domain.Order, error) {
	return m.orders.ListByUser(userID, filter)
}

// ListAllOrders возвращает заказы всех пользователей (для администратора).
func (m *Manager) ListAllOrders(filter domain.OrderFilter) ([]domain.Order, error) {
	return m.orders.ListAll(filter)
}

// TrackOrder возвращает заказ по публичному номеру вместе с таймлайном.
func (m *Manager) TrackOrder(number string) (domain.Order, []domain.TimelineEvent, error) {
	order, err := m.orders.GetByNumber(number)
	if err != nil {
		return domain.Order{}, nil, err
	}
	events, err := m.timeline.List(order.ID)
	if err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to load timeline")
		events = nil
	}
	return order, events, nil
}

// Timeline возвращает события жизненного цикла заказа.
func (m *Manager) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	return m.timeline.List(orderID)
}

// applyWithRetry выполняет mutate над свежей копией заказа и сохраняет её с
// optimistic locking. Конфликт версий приводит к перезагрузке и повтору с
// exponential backoff; после исчерпания попыток возвращается конфликт.
func (m *Manager) applyWithRetry(orderID string, mutate func(*domain.Order) error) (domain.Order, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		order, err := m.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}

		if err := mutate(&order); err != nil {
			return domain.Order{}, err
		}
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := m.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxSaveAttempts-1 {
				m.logger.WithFields(log.Fields{
					"order_id": orderID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")
				time.Sleep(saveRetryBaseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return domain.Order{}, err
		}

		order.Version = prevVersion + 1
		return order, nil
	}

	return domain.Order{}, domain.ErrOrderVersionConflict
}

// restoreWithRetry повторяет возврат стока с exponential backoff. Вызывается
// после необратимого шага (победившая отмена или сбой записи заказа), когда
// пропущенный возврат означал бы утечку зарезервированного остатка.
func (m *Manager) restoreWithRetry(items []domain.StockItem) error {
	var err error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		if err = m.ledger.Restore(items); err == nil {
			return nil
		}
		if attempt < maxSaveAttempts-1 {
			time.Sleep(saveRetryBaseDelay * time.Duration(1<<uint(attempt)))
		}
	}
	return err
}

func (m *Manager) recordCheckoutFailure(reason string) {
	if m.metrics != nil {
		m.metrics.RecordCheckoutFailed(reason)
	}
}

func (m *Manager) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	if m.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     eventType,
			Payload:       data,
		}
		if _, err := m.outbox.Enqueue(msg); err != nil {
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Error("enqueue event failed")
		} else if m.metrics != nil {
			m.metrics.RecordOutboxEvent()
		}
	}

	if m.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		occurred := time.Now().UTC()
		if ts, ok := payload["ts"].(string); ok {
			if parsed, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
				occurred = parsed
			}
		}
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Reason:   reason,
			Occurred: occurred,
		}
		if err := m.timeline.Append(event); err != nil {
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if m.metrics != nil {
			m.metrics.RecordTimelineEvent()
		}
	}
}

const defaultCurrency = "USD"
