package middleware

import (
	"net/http"
	"time"

	"guildhall-backend/pkg/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Logger writes an access log line after each request. 5xx responses are
// logged at Error so they surface next to the handler's own error line.
func Logger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			rec := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rec, r)

			status := rec.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := append(make([]zap.Field, 0, 10),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", rec.BytesWritten()),
				zap.Duration("duration", time.Since(began)),
				zap.String("request_id", GetRequestIDFromRequest(r)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			)
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					fields = append(fields, zap.String("route", pattern))
				}
			}
			if userID := auth.UserIDFromContext(r.Context()); userID != "" {
				fields = append(fields, zap.String("user_id", userID))
			}

			if status >= http.StatusInternalServerError {
				logger.Error("Request completed", fields...)
			} else {
				logger.Info("Request completed", fields...)
			}
		})
	}
}
