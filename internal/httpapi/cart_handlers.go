package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type addCartItemRequest struct {
	ProductID  string            `json:"product_id"`
	Qty        int32             `json:"qty"`
	Attributes domain.Attributes `json:"attributes"`
}

type updateCartItemRequest struct {
	Qty int32 `json:"qty"`
	// Attributes указывают конкретную позицию, когда товар лежит в корзине
	// в нескольких вариантах.
	Attributes domain.Attributes `json:"attributes"`
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	cart, err := s.carts.Get(id.userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeValidation(w, "invalid json body")
		return
	}

	cart, err := s.carts.AddItem(id.userID, req.ProductID, req.Qty, req.Attributes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	productID := chi.URLParam(r, "productID")

	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeValidation(w, "invalid json body")
		return
	}

	cart, err := s.carts.UpdateItem(id.userID, productID, req.Qty, req.Attributes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	productID := chi.URLParam(r, "productID")

	cart, err := s.carts.RemoveItem(id.userID, productID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	cart, err := s.carts.Clear(id.userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
