package middleware

import (
	"net/http"
	"runtime/debug"

	appErrors "guildhall-backend/pkg/errors"

	"go.uber.org/zap"
)

// Recovery turns a panic into a 500 response and logs it with its stack.
func Recovery(logger *zap.Logger, errorHandler *appErrors.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Panic while serving request",
					zap.Any("panic", rec),
					zap.String("request_id", GetRequestIDFromRequest(r)),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)

				// A handler that already wrote its headers cannot be answered again.
				if w.Header().Get("Content-Type") == "" {
					errorHandler.Handle(w, r, appErrors.NewInternalError("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
