package order_test

import (
	"errors"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

type fixture struct {
	manager  *order.Manager
	orders   domain.OrderRepository
	carts    domain.CartRepository
	products *memory.ProductRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.ErrorLevel)

	f := &fixture{
		orders:   memory.NewOrderRepository(),
		carts:    memory.NewCartRepository(),
		products: memory.NewProductRepository(),
		outbox:   memory.NewOutboxRepository(),
		timeline: memory.NewTimelineRepository(),
	}
	f.manager = order.NewManagerWithoutMetrics(
		f.orders, f.carts, f.products, f.products, f.outbox, f.timeline,
		logger.WithField("test", t.Name()),
	)
	return f
}

func (f *fixture) seedProduct(t *testing.T, id string, priceMinor int64, stock int32) {
	t.Helper()
	require.NoError(t, f.products.Put(domain.Product{
		ID:         id,
		Name:       "product " + id,
		PriceMinor: priceMinor,
		StockQty:   stock,
		Active:     true,
	}))
}

func (f *fixture) seedCart(t *testing.T, userID domain.UserID, items ...domain.CartItem) {
	t.Helper()
	cart := domain.Cart{ID: "cart-" + string(userID), UserID: userID, Items: items}
	cart.RecalculateTotals()
	require.NoError(t, f.carts.Save(cart))
}

func (f *fixture) stockOf(t *testing.T, productID string) int32 {
	t.Helper()
	product, err := f.products.Get(productID)
	require.NoError(t, err)
	return product.StockQty
}

func shippingTo(city string) domain.Address {
	return domain.Address{
		FirstName:  "Ivan",
		LastName:   "Petrov",
		Street:     "Lenina 1",
		City:       city,
		State:      "MO",
		PostalCode: "101000",
		Country:    "RU",
	}
}

func checkoutReq() order.CheckoutRequest {
	return order.CheckoutRequest{
		ShippingAddress: shippingTo("Moscow"),
		PaymentMethod:   domain.PaymentMethodCreditCard,
	}
}

func TestCreateOrderValidations(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.CreateOrder("", checkoutReq())
	assert.ErrorIs(t, err, domain.ErrUserRequired)

	_, err = f.manager.CreateOrder("user-1", order.CheckoutRequest{PaymentMethod: domain.PaymentMethodCreditCard})
	assert.ErrorIs(t, err, domain.ErrShippingAddressRequired)

	_, err = f.manager.CreateOrder("user-1", order.CheckoutRequest{
		ShippingAddress: shippingTo("Moscow"),
		PaymentMethod:   "barter",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	// Корзины нет вовсе.
	_, err = f.manager.CreateOrder("user-1", checkoutReq())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	f.seedCart(t, "user-1")
	_, err = f.manager.CreateOrder("user-1", checkoutReq())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCreateOrderComputesTotals(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 50_000, 10)

	// Subtotal ровно на пороге бесплатной доставки всё ещё платит за неё.
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 2, PriceMinor: 50_000})
	created, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)

	assert.Equal(t, int64(100_000), created.SubtotalMinor)
	assert.Equal(t, int64(10_000), created.TaxMinor)
	assert.Equal(t, int64(10_000), created.ShippingMinor)
	assert.Equal(t, int64(120_000), created.TotalMinor)
	assert.Equal(t, "USD", created.Currency)

	// Выше порога доставка бесплатна.
	f.seedCart(t, "user-2", domain.CartItem{ProductID: "p1", Qty: 3, PriceMinor: 50_000})
	created, err = f.manager.CreateOrder("user-2", checkoutReq())
	require.NoError(t, err)

	assert.Equal(t, int64(150_000), created.SubtotalMinor)
	assert.Zero(t, created.ShippingMinor)
	assert.Equal(t, int64(165_000), created.TotalMinor)
}

func TestCreateOrderReservesStockAndClearsCart(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 5)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 3, PriceMinor: 2_000})

	created, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, created.Status)
	assert.Equal(t, domain.PaymentStatusPending, created.PaymentStatus)
	assert.NotEmpty(t, created.Number)
	assert.Equal(t, int32(2), f.stockOf(t, "p1"))

	cart, err := f.carts.GetByUser("user-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	pending, err := f.outbox.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "OrderCreated", pending[0].EventType)

	events, err := f.timeline.List(created.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "OrderCreated", events[0].Type)
}

func TestCreateOrderBillingDefaultsToShipping(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 5)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 1, PriceMinor: 2_000})

	created, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)

	assert.Equal(t, created.ShippingAddress, created.BillingAddress)
}

func TestCreateOrderOutOfStockLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 2)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 3, PriceMinor: 2_000})

	_, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.True(t, domain.IsOutOfStock(err))

	assert.Equal(t, int32(2), f.stockOf(t, "p1"))

	cart, err := f.carts.GetByUser("user-1")
	require.NoError(t, err)
	assert.False(t, cart.IsEmpty())

	pending, err := f.outbox.PullPending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCreateOrderReserveIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 1_000, 10)
	f.seedProduct(t, "p2", 1_000, 1)
	f.seedCart(t, "user-1",
		domain.CartItem{ProductID: "p1", Qty: 5, PriceMinor: 1_000},
		domain.CartItem{ProductID: "p2", Qty: 2, PriceMinor: 1_000},
	)

	_, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.True(t, domain.IsOutOfStock(err))

	// Частично применённый декремент первой позиции компенсирован.
	assert.Equal(t, int32(10), f.stockOf(t, "p1"))
	assert.Equal(t, int32(1), f.stockOf(t, "p2"))
}

func TestCreateOrderRejectsInactiveProduct(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.products.Put(domain.Product{
		ID: "p1", Name: "off", PriceMinor: 1_000, StockQty: 5, Active: false,
	}))
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 1, PriceMinor: 1_000})

	_, err := f.manager.CreateOrder("user-1", checkoutReq())
	assert.ErrorIs(t, err, domain.ErrProductInactive)
	assert.Equal(t, int32(5), f.stockOf(t, "p1"))
}

func TestConcurrentCheckoutOverSharedStock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 1)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 1, PriceMinor: 2_000})
	f.seedCart(t, "user-2", domain.CartItem{ProductID: "p1", Qty: 1, PriceMinor: 2_000})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []domain.UserID{"user-1", "user-2"} {
		wg.Add(1)
		go func(i int, userID domain.UserID) {
			defer wg.Done()
			_, errs[i] = f.manager.CreateOrder(userID, checkoutReq())
		}(i, userID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, domain.IsOutOfStock(err))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int32(0), f.stockOf(t, "p1"))
}

func TestCancelRestoresStockExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 5)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 3, PriceMinor: 2_000})

	created, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)
	require.Equal(t, int32(2), f.stockOf(t, "p1"))

	cancelled, err := f.manager.Cancel(created.ID, "user-1", domain.RoleCustomer, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)
	assert.Equal(t, int32(5), f.stockOf(t, "p1"))

	// Повторная отмена отклоняется и сток не возвращается второй раз.
	_, err = f.manager.Cancel(created.ID, "user-1", domain.RoleCustomer, "")
	assert.ErrorIs(t, err, domain.ErrOrderNotCancellable)
	assert.Equal(t, int32(5), f.stockOf(t, "p1"))
}

// flakyLedger имитирует временно недоступное хранилище при возврате стока.
type flakyLedger struct {
	domain.InventoryLedger
	restoreFailures int
	restoreCalls    int
}

func (l *flakyLedger) Restore(items []domain.StockItem) error {
	l.restoreCalls++
	if l.restoreCalls <= l.restoreFailures {
		return errors.New("storage unavailable")
	}
	return l.InventoryLedger.Restore(items)
}

func TestCancelRetriesStockRestore(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyLedger{InventoryLedger: f.products, restoreFailures: 2}

	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	manager := order.NewManagerWithoutMetrics(
		f.orders, f.carts, f.products, flaky, f.outbox, f.timeline,
		logger.WithField("test", t.Name()),
	)

	f.seedProduct(t, "p1", 2_000, 5)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 3, PriceMinor: 2_000})

	created, err := manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)
	require.Equal(t, int32(2), f.stockOf(t, "p1"))

	// Две первые попытки возврата падают, третья возвращает сток.
	_, err = manager.Cancel(created.ID, "user-1", domain.RoleCustomer, "")
	require.NoError(t, err)

	assert.Equal(t, 3, flaky.restoreCalls)
	assert.Equal(t, int32(5), f.stockOf(t, "p1"))
}

func TestCancelAccessControl(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 5)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 1, PriceMinor: 2_000})

	created, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)

	_, err = f.manager.Cancel(created.ID, "user-2", domain.RoleCustomer, "")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	// Администратор может отменить чужой заказ.
	_, err = f.manager.Cancel(created.ID, "admin-1", domain.RoleAdmin, "fraud review")
	assert.NoError(t, err)
}

func TestCancelPaidOrderFlagsRefund(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 5)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 2, PriceMinor: 2_000})

	created, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)

	_, err = f.manager.UpdatePaymentStatus(created.ID, domain.PaymentStatusCompleted, "txn-1")
	require.NoError(t, err)

	cancelled, err := f.manager.Cancel(created.ID, "user-1", domain.RoleCustomer, "")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, cancelled.TotalMinor, cancelled.RefundAmountMinor)
}

func TestUpdateStatusValidatesValue(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 5)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 1, PriceMinor: 2_000})

	created, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)

	_, err = f.manager.UpdateStatus(created.ID, "misplaced")
	assert.ErrorIs(t, err, domain.ErrInvalidOrderStatus)

	updated, err := f.manager.UpdateStatus(created.ID, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
	assert.Equal(t, created.Version+1, updated.Version)
}

func TestGetOrderAccessControl(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 5)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 1, PriceMinor: 2_000})

	created, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)

	_, err = f.manager.GetOrder(created.ID, "user-2", domain.RoleCustomer)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	got, err := f.manager.GetOrder(created.ID, "user-1", domain.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.manager.GetOrder("missing", "user-1", domain.RoleCustomer)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestTrackOrderByPublicNumber(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 2_000, 5)
	f.seedCart(t, "user-1", domain.CartItem{ProductID: "p1", Qty: 1, PriceMinor: 2_000})

	created, err := f.manager.CreateOrder("user-1", checkoutReq())
	require.NoError(t, err)

	got, events, err := f.manager.TrackOrder(created.Number)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.Len(t, events, 1)
	assert.Equal(t, "OrderCreated", events[0].Type)

	_, _, err = f.manager.TrackOrder("ORD-0000-MISSING")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
