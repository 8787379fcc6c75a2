package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

// CurrentUser returns the user set by AuthMiddleware
func CurrentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

func currentToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// WithUser returns a context carrying user and its token
func WithUser(ctx context.Context, user *models.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, tokenKey, token)
}

// BearerToken extracts the token of an "Authorization: Bearer" header
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// AuthMiddleware rejects requests without a valid session token
type AuthMiddleware struct {
	auth   *services.AuthService
	logger *zap.Logger
}

func NewAuthMiddleware(auth *services.AuthService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, logger: logger.Named("http")}
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			WriteError(w, http.StatusUnauthorized, "authorization token is not provided")
			return
		}
		user, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeServiceError(w, m.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, token)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MetricsMiddleware records request latency by route template
func MetricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			if m != nil {
				m.RequestDuration.
					WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
					Observe(time.Since(start).Seconds())
			}
		})
	}
}
