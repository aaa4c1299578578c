package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
	TransactionID string `json:"transaction_id"`
}

func (s *Server) adminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListAllOrders(filterFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderViews(orders)})
}

func (s *Server) adminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeValidation(w, "invalid json body")
		return
	}

	updated, err := s.orders.UpdateStatus(orderID, domain.OrderStatus(req.Status))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(updated))
}

func (s *Server) adminUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req updatePaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeValidation(w, "invalid json body")
		return
	}

	updated, err := s.orders.UpdatePaymentStatus(orderID, domain.PaymentStatus(req.PaymentStatus), req.TransactionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(updated))
}
