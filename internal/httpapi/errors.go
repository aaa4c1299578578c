package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Коды ошибок внешнего API. Транспортный статус выводится из кода, а не
// наоборот, поэтому клиенты могут матчиться по коду.
const (
	codeValidation           = "VALIDATION"
	codeEmptyCart            = "EMPTY_CART"
	codeNotFound             = "NOT_FOUND"
	codeAccessDenied         = "ACCESS_DENIED"
	codeOutOfStock           = "OUT_OF_STOCK"
	codeConflict             = "CONFLICT"
	codeInvalidState         = "INVALID_STATE"
	codePaymentNotSuccessful = "PAYMENT_NOT_SUCCESSFUL"
	codeUpstreamFailure      = "UPSTREAM_FAILURE"
	codeInternal             = "INTERNAL"
)

type errorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// mapError переводит доменную ошибку в HTTP-статус и тело ответа.
func mapError(err error) (int, errorResponse) {
	var outOfStock *domain.OutOfStockError
	if errors.As(err, &outOfStock) {
		return http.StatusConflict, errorResponse{Error: errorPayload{
			Code:    codeOutOfStock,
			Message: outOfStock.Error(),
			Details: map[string]any{
				"product_id": outOfStock.ProductID,
				"requested":  outOfStock.Requested,
				"available":  outOfStock.Available,
			},
		}}
	}

	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest, newErrorResponse(codeEmptyCart, err)

	case errors.Is(err, domain.ErrUserRequired),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrItemPriceInvalid),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrTotalMismatch),
		errors.Is(err, domain.ErrAmountNegative),
		errors.Is(err, domain.ErrInvalidOrderStatus),
		errors.Is(err, domain.ErrInvalidPaymentStatus),
		errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrShippingAddressRequired),
		errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, newErrorResponse(codeValidation, err)

	case errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrCartItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, newErrorResponse(codeNotFound, err)

	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden, newErrorResponse(codeAccessDenied, err)

	case errors.Is(err, domain.ErrOrderNotCancellable),
		errors.Is(err, domain.ErrProductInactive):
		return http.StatusConflict, newErrorResponse(codeInvalidState, err)

	case errors.Is(err, domain.ErrOrderVersionConflict),
		errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict, newErrorResponse(codeConflict, err)

	case errors.Is(err, domain.ErrPaymentNotSuccessful):
		return http.StatusPaymentRequired, newErrorResponse(codePaymentNotSuccessful, err)

	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway, newErrorResponse(codeUpstreamFailure, err)

	default:
		return http.StatusInternalServerError, errorResponse{Error: errorPayload{
			Code:    codeInternal,
			Message: "internal error",
		}}
	}
}

func newErrorResponse(code string, err error) errorResponse {
	return errorResponse{Error: errorPayload{Code: code, Message: err.Error()}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeValidation(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorPayload{
		Code:    codeValidation,
		Message: message,
	}})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, resp := mapError(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	writeJSON(w, status, resp)
}
