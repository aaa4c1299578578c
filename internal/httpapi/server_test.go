package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/httpapi"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

type env struct {
	handler  http.Handler
	products *memory.ProductRepository
	gateway  *payment.MockGateway
}

func newEnv(t *testing.T) *env {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	entry := logger.WithField("test", t.Name())

	products := memory.NewProductRepository()
	carts := memory.NewCartRepository()
	orders := memory.NewOrderRepository()
	outboxRepo := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()
	idem := memory.NewIdempotencyRepository()

	cartSvc := cart.NewService(carts, products, entry)
	manager := order.NewManagerWithoutMetrics(orders, carts, products, products, outboxRepo, timeline, entry)
	gateway := payment.NewMockGateway()
	reconciler := payment.NewReconcilerWithoutMetrics(orders, gateway, outboxRepo, timeline, entry)

	server := httpapi.NewServer(cartSvc, manager, reconciler, idem, entry)
	return &env{handler: server.Router(), products: products, gateway: gateway}
}

func (e *env) seedProduct(t *testing.T, id string, priceMinor int64, stock int32) {
	t.Helper()
	require.NoError(t, e.products.Put(domain.Product{
		ID: id, Name: "product " + id, PriceMinor: priceMinor, StockQty: stock, Active: true,
	}))
}

func (e *env) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func asUser(userID string) map[string]string {
	return map[string]string{"X-User-Id": userID}
}

func asAdmin(userID string) map[string]string {
	return map[string]string{"X-User-Id": userID, "X-User-Role": "admin"}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, rec, &resp)
	return resp.Error.Code
}

func checkoutBody() map[string]any {
	return map[string]any{
		"shipping_address": map[string]any{
			"first_name":  "Ivan",
			"last_name":   "Petrov",
			"street":      "Lenina 1",
			"city":        "Moscow",
			"state":       "MO",
			"postal_code": "101000",
			"country":     "RU",
		},
		"payment_method": "credit_card",
	}
}

func (e *env) addToCart(t *testing.T, userID, productID string, qty int32) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"product_id": productID, "qty": qty}, asUser(userID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (e *env) checkout(t *testing.T, userID string) map[string]any {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/orders/", checkoutBody(), asUser(userID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view map[string]any
	decode(t, rec, &view)
	return view
}

func TestCartEndpoints(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "p1", 2_500, 10)

	rec := e.do(t, http.MethodGet, "/api/v1/cart/", nil, asUser("user-1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"product_id": "p1", "qty": 2}, asUser("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		SubtotalMinor int64 `json:"subtotal_minor"`
		Items         []any `json:"items"`
	}
	decode(t, rec, &got)
	assert.Equal(t, int64(5_000), got.SubtotalMinor)
	assert.Len(t, got.Items, 1)

	// Без X-User-Id запрос отклоняется валидацией.
	rec = e.do(t, http.MethodGet, "/api/v1/cart/", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", errorCode(t, rec))

	rec = e.do(t, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"product_id": "p1", "qty": 0}, asUser("user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"product_id": "p1", "qty": 100}, asUser("user-1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OUT_OF_STOCK", errorCode(t, rec))
}

func TestCheckoutAndErrorMapping(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "p1", 2_000, 5)

	// Пустая корзина.
	rec := e.do(t, http.MethodPost, "/api/v1/orders/", checkoutBody(), asUser("user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMPTY_CART", errorCode(t, rec))

	e.addToCart(t, "user-1", "p1", 3)
	view := e.checkout(t, "user-1")

	assert.Equal(t, "pending", view["status"])
	assert.Equal(t, "pending", view["payment_status"])
	assert.NotEmpty(t, view["number"])

	// Заказ виден владельцу вместе с таймлайном.
	rec = e.do(t, http.MethodGet, "/api/v1/orders/"+view["id"].(string), nil, asUser("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Чужой заказ недоступен обычному пользователю.
	rec = e.do(t, http.MethodGet, "/api/v1/orders/"+view["id"].(string), nil, asUser("user-2"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCESS_DENIED", errorCode(t, rec))

	rec = e.do(t, http.MethodGet, "/api/v1/orders/missing", nil, asUser("user-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestCheckoutIdempotencyReplay(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "p1", 2_000, 5)
	e.addToCart(t, "user-1", "p1", 2)

	headers := asUser("user-1")
	headers["Idempotency-Key"] = "checkout-1"

	first := e.do(t, http.MethodPost, "/api/v1/orders/", checkoutBody(), headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	// Повтор с тем же ключом и телом возвращает кешированный ответ,
	// второй заказ не создаётся и сток не списывается повторно.
	second := e.do(t, http.MethodPost, "/api/v1/orders/", checkoutBody(), headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	product, err := e.products.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), product.StockQty)

	var listing struct {
		Orders []any `json:"orders"`
	}
	rec := e.do(t, http.MethodGet, "/api/v1/orders/", nil, asUser("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Len(t, listing.Orders, 1)

	// Тот же ключ с другим телом — конфликт.
	other := checkoutBody()
	other["notes"] = "leave at the door"
	rec = e.do(t, http.MethodPost, "/api/v1/orders/", other, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, rec))
}

func TestCancelOrderEndpoint(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "p1", 2_000, 5)
	e.addToCart(t, "user-1", "p1", 2)
	view := e.checkout(t, "user-1")

	rec := e.do(t, http.MethodPost, "/api/v1/orders/"+view["id"].(string)+"/cancel",
		map[string]any{"reason": "changed my mind"}, asUser("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var cancelled map[string]any
	decode(t, rec, &cancelled)
	assert.Equal(t, "cancelled", cancelled["status"])
	assert.Equal(t, "changed my mind", cancelled["cancel_reason"])

	product, err := e.products.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, int32(5), product.StockQty)

	// Повторная отмена — конфликт состояния.
	rec = e.do(t, http.MethodPost, "/api/v1/orders/"+view["id"].(string)+"/cancel", nil, asUser("user-1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", errorCode(t, rec))
}

func TestTrackOrderIsPublic(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "p1", 2_000, 5)
	e.addToCart(t, "user-1", "p1", 1)
	view := e.checkout(t, "user-1")

	rec := e.do(t, http.MethodGet, "/api/v1/orders/track/"+view["number"].(string), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tracked struct {
		Order    map[string]any `json:"order"`
		Timeline []any          `json:"timeline"`
	}
	decode(t, rec, &tracked)
	assert.Equal(t, view["id"], tracked.Order["id"])
	assert.NotEmpty(t, tracked.Timeline)
}

func TestPaymentEndpoints(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "p1", 2_000, 5)
	e.addToCart(t, "user-1", "p1", 2)
	view := e.checkout(t, "user-1")
	orderID := view["id"].(string)

	rec := e.do(t, http.MethodPost, "/api/v1/payments/intent",
		map[string]any{"order_id": orderID}, asUser("user-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var intent struct {
		PaymentID   string `json:"payment_id"`
		AmountMinor int64  `json:"amount_minor"`
	}
	decode(t, rec, &intent)
	assert.NotEmpty(t, intent.PaymentID)

	// Неуспешный вердикт callback'а.
	rec = e.do(t, http.MethodPost, "/api/v1/payments/confirm",
		map[string]any{"order_id": orderID, "succeeded": false}, asUser("user-1"))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "PAYMENT_NOT_SUCCESSFUL", errorCode(t, rec))

	rec = e.do(t, http.MethodPost, "/api/v1/payments/confirm",
		map[string]any{"order_id": orderID, "succeeded": true, "transaction_id": "txn-1", "amount_minor": intent.AmountMinor},
		asUser("user-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var confirmed map[string]any
	decode(t, rec, &confirmed)
	assert.Equal(t, "processing", confirmed["status"])
	assert.Equal(t, "completed", confirmed["payment_status"])
	assert.Equal(t, "txn-1", confirmed["transaction_id"])
}

func TestAdminEndpointsRequireRole(t *testing.T) {
	e := newEnv(t)
	e.seedProduct(t, "p1", 2_000, 5)
	e.addToCart(t, "user-1", "p1", 1)
	view := e.checkout(t, "user-1")

	rec := e.do(t, http.MethodGet, "/api/v1/admin/orders", nil, asUser("user-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/admin/orders", nil, asAdmin("admin-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Orders []any `json:"orders"`
	}
	decode(t, rec, &listing)
	assert.Len(t, listing.Orders, 1)

	rec = e.do(t, http.MethodPut, "/api/v1/admin/orders/"+view["id"].(string)+"/status",
		map[string]any{"status": "misplaced"}, asAdmin("admin-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", errorCode(t, rec))

	rec = e.do(t, http.MethodPut, "/api/v1/admin/orders/"+view["id"].(string)+"/status",
		map[string]any{"status": "shipped"}, asAdmin("admin-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated map[string]any
	decode(t, rec, &updated)
	assert.Equal(t, "shipped", updated["status"])
}
