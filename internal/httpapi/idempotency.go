package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

// withIdempotency выполняет run с учётом заголовка Idempotency-Key: повторный
// запрос с тем же ключом и телом получает сохранённый ответ, не запуская
// оформление второй раз. Без заголовка (или без репозитория) запрос проходит
// напрямую.
func (s *Server) withIdempotency(w http.ResponseWriter, r *http.Request, body []byte, run func() (int, any)) {
	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" || s.idem == nil {
		status, payload := run()
		writeJSON(w, status, payload)
		return
	}

	hash := requestHash(r.Method, r.URL.Path, body)
	record, err := s.idem.CreateProcessing(key, hash, time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		s.replayIdempotency(w, err, record)
		return
	}

	status, payload := run()
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		s.logger.WithError(marshalErr).WithField("idempotency_key", key).Error("marshal idempotent response failed")
		s.writeError(w, marshalErr)
		return
	}

	if status < http.StatusBadRequest {
		if cacheErr := s.idem.MarkDone(key, data, status); cacheErr != nil {
			s.logger.WithError(cacheErr).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
		}
	} else {
		if cacheErr := s.idem.MarkFailed(key, data, status); cacheErr != nil {
			s.logger.WithError(cacheErr).WithField("idempotency_key", key).Warn("failed to store idempotent failure response")
		}
	}

	writeRawJSON(w, status, data)
}

func (s *Server) replayIdempotency(w http.ResponseWriter, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		writeJSON(w, http.StatusConflict, errorResponse{Error: errorPayload{
			Code:    codeConflict,
			Message: "idempotency key is already used with different request payload",
		}})

	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if len(record.ResponseBody) == 0 || record.HTTPStatus == 0 {
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorPayload{
					Code:    codeInternal,
					Message: "idempotency cache is empty",
				}})
				return
			}
			writeRawJSON(w, record.HTTPStatus, record.ResponseBody)
		case domain.IdempotencyStatusProcessing:
			writeJSON(w, http.StatusConflict, errorResponse{Error: errorPayload{
				Code:    codeConflict,
				Message: "request with the same idempotency key is already processing",
			}})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorPayload{
				Code:    codeInternal,
				Message: "unknown idempotency record status",
			}})
		}

	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorPayload{
			Code:    codeInternal,
			Message: "failed to initialize idempotency request",
		}})
	}
}

func requestHash(method, path string, body []byte) string {
	payload := make([]byte, 0, len(method)+len(path)+len(body)+2)
	payload = append(payload, method...)
	payload = append(payload, ':')
	payload = append(payload, path...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func writeRawJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
