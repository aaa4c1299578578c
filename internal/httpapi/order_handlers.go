package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

const maxRequestBodyBytes = 1 << 20

type checkoutRequest struct {
	ShippingAddress domain.Address `json:"shipping_address"`
	BillingAddress  domain.Address `json:"billing_address"`
	PaymentMethod   string         `json:"payment_method"`
	Notes           string         `json:"notes"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type trackOrderResponse struct {
	Order    orderView           `json:"order"`
	Timeline []timelineEventView `json:"timeline"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		s.writeValidation(w, "failed to read request body")
		return
	}

	s.withIdempotency(w, r, body, func() (int, any) {
		var req checkoutRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return http.StatusBadRequest, errorResponse{Error: errorPayload{
				Code:    codeValidation,
				Message: "invalid json body",
			}}
		}

		created, err := s.orders.CreateOrder(id.userID, order.CheckoutRequest{
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
			Notes:           req.Notes,
		})
		if err != nil {
			status, resp := mapError(err)
			return status, resp
		}
		return http.StatusCreated, toOrderView(created)
	})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if id.userID == "" {
		s.writeError(w, domain.ErrUserRequired)
		return
	}

	orders, err := s.orders.ListUserOrders(id.userID, filterFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderViews(orders)})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	orderID := chi.URLParam(r, "orderID")

	found, err := s.orders.GetOrder(orderID, id.userID, id.role)
	if err != nil {
		s.writeError(w, err)
		return
	}

	events, err := s.orders.Timeline(found.ID)
	if err != nil {
		events = nil
	}

	writeJSON(w, http.StatusOK, trackOrderResponse{
		Order:    toOrderView(found),
		Timeline: toTimelineViews(events),
	})
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	orderID := chi.URLParam(r, "orderID")

	var req cancelOrderRequest
	if r.Body != nil {
		// Тело опционально: отмена без причины допустима.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cancelled, err := s.orders.Cancel(orderID, id.userID, id.role, req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(cancelled))
}

func (s *Server) trackOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	found, events, err := s.orders.TrackOrder(number)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trackOrderResponse{
		Order:    toOrderView(found),
		Timeline: toTimelineViews(events),
	})
}

func filterFromQuery(r *http.Request) domain.OrderFilter {
	filter := domain.OrderFilter{
		Status:        domain.OrderStatus(r.URL.Query().Get("status")),
		PaymentStatus: domain.PaymentStatus(r.URL.Query().Get("payment_status")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	return filter
}
