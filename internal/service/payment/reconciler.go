package payment

import (
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

const (
	maxSaveAttempts    = 3
	saveRetryBaseDelay = 10 * time.Millisecond

	timelineEventPaymentCompleted = "PaymentCompleted"
	timelineEventRefundFlagged    = "RefundFlagged"
)

// errOrderUnchanged сообщает applyWithRetry, что mutate ничего не изменил и
// запись (с инкрементом версии) не нужна.
var errOrderUnchanged = errors.New("order unchanged")

// Reconciler применяет терминальные вердикты внешнего платёжного шлюза к
// состоянию оплаты заказа. Склад и цены не затрагиваются никогда.
type Reconciler struct {
	orders   domain.OrderRepository
	gateway  domain.PaymentGateway
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewReconciler создаёт рабочий экземпляр с метриками.
func NewReconciler(
	orders domain.OrderRepository,
	gateway domain.PaymentGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Reconciler {
	r := newReconciler(orders, gateway, outbox, timeline, logger)
	r.metrics = metrics.NewOrderMetrics()
	return r
}

// NewReconcilerWithoutMetrics создаёт reconciler без метрик (для тестов).
func NewReconcilerWithoutMetrics(
	orders domain.OrderRepository,
	gateway domain.PaymentGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Reconciler {
	return newReconciler(orders, gateway, outbox, timeline, logger)
}

func newReconciler(
	orders domain.OrderRepository,
	gateway domain.PaymentGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Reconciler {
	if logger == nil {
		logger = log.New().WithField("component", "payment-reconciler")
	}
	return &Reconciler{
		orders:   orders,
		gateway:  gateway,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
	}
}

// CreateIntent запрашивает у шлюза платёжную сессию под заказ. Доступно
// только владельцу заказа.
func (r *Reconciler) CreateIntent(orderID string, actorID domain.UserID) (domain.PaymentIntent, error) {
	order, err := r.orders.Get(orderID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if !order.UserID.Equals(actorID) {
		return domain.PaymentIntent{}, domain.ErrAccessDenied
	}

	intent, err := r.gateway.CreateIntent(order.ID, order.TotalMinor, order.Currency)
	if err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Warn("gateway intent failed")
		return domain.PaymentIntent{}, domain.ErrGatewayUnavailable
	}

	// Привязываем платёжную сессию к заказу, чтобы подтверждение могло
	// сверить ссылку.
	if _, err := r.applyWithRetry(orderID, func(o *domain.Order) error {
		o.PaymentID = intent.PaymentID
		return nil
	}); err != nil {
		return domain.PaymentIntent{}, err
	}

	return intent, nil
}

// RetrieveVerdict запрашивает у шлюза текущий вердикт по платёжной сессии.
func (r *Reconciler) RetrieveVerdict(paymentID string) (domain.PaymentVerdict, error) {
	verdict, err := r.gateway.Retrieve(paymentID)
	if err != nil {
		r.logger.WithError(err).WithField("payment_id", paymentID).Warn("gateway retrieve failed")
		return domain.PaymentVerdict{}, domain.ErrGatewayUnavailable
	}
	return verdict, nil
}

// ConfirmPayment применяет терминальный вердикт шлюза к заказу. Операция
// идемпотентна: повтор того же успешного вердикта оставляет заказ в тех же
// значениях и не производит побочных эффектов. Если отмена выиграла гонку,
// статус заказа не трогается — применяется только бухгалтерия оплаты.
func (r *Reconciler) ConfirmPayment(orderID string, verdict domain.PaymentVerdict) (domain.Order, error) {
	if !verdict.Succeeded {
		return domain.Order{}, domain.ErrPaymentNotSuccessful
	}

	replayed := false
	refundFlagged := false

	updated, err := r.applyWithRetry(orderID, func(order *domain.Order) error {
		replayed = false
		refundFlagged = false

		// Повтор того же вердикта: поля уже в терминальных значениях,
		// запись пропускается, чтобы версия заказа не сдвигалась.
		if order.TransactionID == verdict.Reference &&
			(order.PaymentStatus == domain.PaymentStatusCompleted ||
				order.PaymentStatus == domain.PaymentStatusRefunded) {
			replayed = true
			return errOrderUnchanged
		}

		order.TransactionID = verdict.Reference
		if order.Status == domain.OrderStatusCancelled {
			// Отмена победила гонку: деньги списаны по уже отменённому
			// заказу, фиксируем намерение возврата и не трогаем статус.
			order.PaymentStatus = domain.PaymentStatusRefunded
			order.RefundAmountMinor = order.TotalMinor
			refundFlagged = true
			return nil
		}

		order.PaymentStatus = domain.PaymentStatusCompleted
		order.Status = domain.OrderStatusProcessing
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if replayed {
		if r.metrics != nil {
			r.metrics.RecordPaymentReplayed()
		}
		return updated, nil
	}

	if r.metrics != nil {
		r.metrics.RecordPaymentConfirmed()
	}
	eventType := timelineEventPaymentCompleted
	if refundFlagged {
		eventType = timelineEventRefundFlagged
	}
	r.emitEvent(&updated, eventType, map[string]interface{}{
		"transaction_id": verdict.Reference,
		"amount_minor":   verdict.AmountMinor,
		"ts":             updated.UpdatedAt.Format(time.RFC3339Nano),
	})

	return updated, nil
}

// applyWithRetry повторяет условную запись при конфликте версий, каждый раз
// перечитывая свежую копию заказа.
func (r *Reconciler) applyWithRetry(orderID string, mutate func(*domain.Order) error) (domain.Order, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		order, err := r.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}

		if err := mutate(&order); err != nil {
			if errors.Is(err, errOrderUnchanged) {
				return order, nil
			}
			return domain.Order{}, err
		}
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := r.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxSaveAttempts-1 {
				r.logger.WithFields(log.Fields{
					"order_id": orderID,
					"attempt":  attempt + 1,
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

func (r *Reconciler) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	payload["order_id"] = order.ID
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.WithError(err).WithField("order_id", order.ID).Error("marshal event failed")
		return
	}

	if r.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     eventType,
			Payload:       data,
		}
		if _, err := r.outbox.Enqueue(msg); err != nil {
			r.logger.WithError(err).WithField("order_id", order.ID).Error("enqueue event failed")
		}
	}

	if r.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Occurred: order.UpdatedAt,
		}
		if err := r.timeline.Append(event); err != nil {
			r.logger.WithError(err).WithField("order_id", order.ID).Warn("append timeline event failed")
		}
	}
}
