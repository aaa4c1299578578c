// Package httpapi реализует внешний REST API сервиса поверх chi.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
)

// Server связывает доменные сервисы с HTTP-маршрутами.
type Server struct {
	carts    *cart.Service
	orders   *order.Manager
	payments *payment.Reconciler
	idem     domain.IdempotencyRepository
	logger   *log.Entry
}

// NewServer создаёт HTTP-слой. idem может быть nil — тогда заголовок
// Idempotency-Key игнорируется.
func NewServer(
	carts *cart.Service,
	orders *order.Manager,
	payments *payment.Reconciler,
	idem domain.IdempotencyRepository,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "http-api")
	}
	return &Server{
		carts:    carts,
		orders:   orders,
		payments: payments,
		idem:     idem,
		logger:   logger,
	}
}

// Router собирает дерево маршрутов API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(withIdentity)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.getCart)
			r.Post("/items", s.addCartItem)
			r.Put("/items/{productID}", s.updateCartItem)
			r.Delete("/items/{productID}", s.removeCartItem)
			r.Delete("/", s.clearCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.createOrder)
			r.Get("/", s.listOrders)
			r.Get("/track/{number}", s.trackOrder)
			r.Get("/{orderID}", s.getOrder)
			r.Post("/{orderID}/cancel", s.cancelOrder)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/intent", s.createPaymentIntent)
			r.Post("/confirm", s.confirmPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/orders", s.adminListOrders)
			r.Put("/orders/{orderID}/status", s.adminUpdateStatus)
			r.Put("/orders/{orderID}/payment-status", s.adminUpdatePaymentStatus)
		})
	})

	return r
}
