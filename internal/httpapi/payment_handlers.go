package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type createIntentRequest struct {
	OrderID string `json:"order_id"`
}

type createIntentResponse struct {
	PaymentID    string `json:"payment_id"`
	ClientSecret string `json:"client_secret"`
	AmountMinor  int64  `json:"amount_minor"`
	Currency     string `json:"currency"`
}

type confirmPaymentRequest struct {
	OrderID string `json:"order_id"`
	// PaymentID опционален: при его наличии вердикт запрашивается у шлюза,
	// иначе используется тело callback'а как есть.
	PaymentID     string `json:"payment_id"`
	Succeeded     bool   `json:"succeeded"`
	TransactionID string `json:"transaction_id"`
	AmountMinor   int64  `json:"amount_minor"`
}

func (s *Server) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		s.writeValidation(w, "order_id is required")
		return
	}

	intent, err := s.payments.CreateIntent(req.OrderID, id.userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createIntentResponse{
		PaymentID:    intent.PaymentID,
		ClientSecret: intent.ClientSecret,
		AmountMinor:  intent.AmountMinor,
		Currency:     intent.Currency,
	})
}

func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		s.writeValidation(w, "order_id is required")
		return
	}

	verdict := domain.PaymentVerdict{
		Succeeded:   req.Succeeded,
		Reference:   req.TransactionID,
		AmountMinor: req.AmountMinor,
	}
	if req.PaymentID != "" {
		fetched, err := s.payments.RetrieveVerdict(req.PaymentID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		verdict = fetched
	}

	confirmed, err := s.payments.ConfirmPayment(req.OrderID, verdict)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(confirmed))
}
