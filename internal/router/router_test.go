package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"guildhall-backend/internal/handlers"
	"guildhall-backend/internal/middleware"
	"guildhall-backend/internal/observability"
	"guildhall-backend/internal/repository/mocks"
	"guildhall-backend/internal/service/guild"
	"guildhall-backend/pkg/auth"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "router-test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := mocks.NewMockStore()
	logger := zap.NewNop()
	svc := guild.NewService(guild.Dependencies{
		Guilds:      store.Guilds(),
		Memberships: store.Memberships(),
		Posts:       store.Posts(),
		Likes:       store.Likes(),
		Reconciler:  store.Reconciler(),
		Logger:      logger,
	}, guild.DefaultConfig())

	validator, err := auth.NewJWTValidator(auth.JWTConfig{SigningMethod: "HS256", SecretKey: secret})
	require.NoError(t, err)

	errorHandler := appErrors.NewErrorHandler(logger, false)
	return New(Config{
		RequestTimeout: 5 * time.Second,
		CircuitBreaker: middleware.DefaultCircuitBreakerConfig("test"),
		Auth:           middleware.AuthConfig{Validator: validator},
	}, Dependencies{
		Guilds:       handlers.NewGuildHandler(svc, errorHandler, logger),
		Admin:        handlers.NewAdminHandler(svc, errorHandler, logger),
		Health:       handlers.NewHealthHandler("test", map[string]handlers.ReadinessCheck{"store": func(context.Context) error { return nil }}, logger),
		Metrics:      observability.NewCollector("guildhall_test"),
		RateLimiter:  middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerSecond: 100, Burst: 100}),
		ErrorHandler: errorHandler,
		Logger:       logger,
	})
}

func TestRouter(t *testing.T) {
	r := newTestRouter(t)
	token, err := auth.NewJWTGenerator(secret, "", nil, time.Hour).GenerateToken("user-a", "Ash", nil)
	require.NoError(t, err)

	serve := func(method, path, bearer, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("Probes", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/health", "", "").Code)
		assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/ready", "", "").Code)
		assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/swagger.yaml", "", "").Code)
	})

	t.Run("AnonymousRead", func(t *testing.T) {
		w := serve(http.MethodGet, "/api/v1/guilds", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("WriteNeedsToken", func(t *testing.T) {
		body := `{"name":"Pokemon Traders","description":"Cards","category":"TCG"}`
		assert.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, "/api/v1/guilds", "", body).Code)
		assert.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, "/api/v1/guilds", "not-a-jwt", body).Code)

		w := serve(http.MethodPost, "/api/v1/guilds", token, body)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("MetricsExposeRoutes", func(t *testing.T) {
		w := serve(http.MethodGet, "/metrics", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `route="/api/v1/guilds`)
	})
}
