package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Идентичность приходит от доверенного фронт-прокси в заголовках.
// Аутентификацию выполняет внешний компонент, сервис доверяет значениям.
const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

type ctxKey int

const identityCtxKey ctxKey = iota

type identity struct {
	userID domain.UserID
	role   domain.Role
}

// withIdentity извлекает пользователя и роль из заголовков прокси.
// Пустая роль трактуется как customer.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity{
			userID: domain.UserID(strings.TrimSpace(r.Header.Get(headerUserID))),
			role:   domain.Role(strings.TrimSpace(r.Header.Get(headerUserRole))),
		}
		if id.role == "" {
			id.role = domain.RoleCustomer
		}

		ctx := context.WithValue(r.Context(), identityCtxKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) identity {
	id, _ := ctx.Value(identityCtxKey).(identity)
	return id
}

// requireAdmin пропускает только административную роль.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r.Context()).role.IsAdmin() {
			s.writeError(w, domain.ErrAccessDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger пишет одну строку на запрос в стиле остальных компонентов.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("http request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
