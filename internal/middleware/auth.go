package middleware

import (
	"errors"
	"net/http"
	"strings"

	"guildhall-backend/pkg/auth"
	appErrors "guildhall-backend/pkg/errors"

	"go.uber.org/zap"
)

// Headers set by the Lambda entry point once API Gateway's JWT authorizer
// has accepted the request.
const (
	HeaderGatewayAuthorized = "X-API-Gateway-Authorized"
	HeaderUserID            = "X-User-ID"
	HeaderUserEmail         = "X-User-Email"
	HeaderUserName          = "X-User-Name"
	HeaderUserRoles         = "X-User-Roles"
)

// TokenValidator validates bearer tokens. *auth.JWTValidator implements it.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// AuthConfig controls how callers are identified.
type AuthConfig struct {
	// Validator checks bearer tokens. Nil disables token authentication.
	Validator TokenValidator
	// TrustGatewayHeaders accepts the X-User-* headers. Enable it only
	// behind API Gateway, which strips client supplied copies.
	TrustGatewayHeaders bool
}

// Authenticate attaches the caller to the request context. Requests without
// credentials pass through anonymously so that read endpoints can still
// compute per-viewer flags; RequireUser guards the mutating routes. A
// credential that is present but invalid is rejected with 401.
func Authenticate(config AuthConfig, logger *zap.Logger, errorHandler *appErrors.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.TrustGatewayHeaders && r.Header.Get(HeaderGatewayAuthorized) == "true" {
				user := userFromGatewayHeaders(r)
				if user == nil {
					errorHandler.Handle(w, r, appErrors.NewUnauthorizedError("missing user context from API Gateway"))
					return
				}
				next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
				return
			}

			token := extractToken(r)
			if token == "" || config.Validator == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := config.Validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("ip", clientIP(r)),
					zap.String("path", r.URL.Path),
				)
				errorHandler.Handle(w, r, appErrors.NewUnauthorizedError(tokenErrorMessage(err)))
				return
			}

			user := &auth.UserContext{
				UserID: claims.UserID,
				Name:   claims.Name,
				Email:  claims.Email,
				Roles:  claims.Roles,
			}
			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(errorHandler *appErrors.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.UserIDFromContext(r.Context()) == "" {
				errorHandler.Handle(w, r, appErrors.NewUnauthorizedError(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userFromGatewayHeaders(r *http.Request) *auth.UserContext {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return nil
	}
	roles := []string{"authenticated"}
	if raw := r.Header.Get(HeaderUserRoles); raw != "" {
		roles = strings.Split(raw, ",")
	}
	return &auth.UserContext{
		UserID: userID,
		Name:   r.Header.Get(HeaderUserName),
		Email:  r.Header.Get(HeaderUserEmail),
		Roles:  roles,
	}
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid token signature"
	default:
		return "invalid token"
	}
}

// extractToken reads a bearer token from the Authorization header or the
// auth_token cookie.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return header
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// clientIP extracts the client IP address
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
