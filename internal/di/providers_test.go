package di

import (
	"context"
	"testing"
	"time"

	"guildhall-backend/internal/cache"
	"guildhall-backend/internal/config"
	"guildhall-backend/internal/events"
	"guildhall-backend/internal/middleware"
	"guildhall-backend/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return config.Default(config.Development)
}

func TestProvideLogger(t *testing.T) {
	for _, env := range []config.Environment{config.Development, config.Production} {
		cfg := config.Default(env)
		logger, cleanup, err := ProvideLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
		cleanup()
	}
}

func TestProvideRepositoryConfig(t *testing.T) {
	cfg := testConfig()
	cfg.AWS.StoreTimeout = 1500 * time.Millisecond
	cfg.Reconcile.PageSize = 50

	repoCfg, err := ProvideRepositoryConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "guildhall-dev", repoCfg.TableName)
	assert.Equal(t, "GSI1", repoCfg.IndexName)
	assert.Equal(t, 1500, repoCfg.TimeoutMs)
	assert.Equal(t, 50, repoCfg.PageSize)
	assert.Equal(t, 25, repoCfg.BatchSize)

	cfg.AWS.TableName = ""
	_, err = ProvideRepositoryConfig(cfg)
	assert.Error(t, err)
}

func TestProvideMetrics(t *testing.T) {
	cfg := testConfig()
	assert.NotNil(t, ProvideMetrics(cfg))

	cfg.Metrics.Enabled = false
	assert.Nil(t, ProvideMetrics(cfg))
}

func TestProvideTracerProviderDisabled(t *testing.T) {
	tp, cleanup, err := ProvideTracerProvider(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, tp)
	cleanup()
}

func TestProvideCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	c, cleanup, err := ProvideCache(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)
	cleanup()

	cfg.Cache.Provider = "none"
	c, cleanup, err = ProvideCache(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, cache.Noop{}, c)
	cleanup()

	cfg.Cache.Provider = "redis"
	cfg.Cache.RedisAddr = "127.0.0.1:1"
	_, _, err = ProvideCache(ctx, cfg, zap.NewNop())
	assert.Error(t, err, "an unreachable redis fails startup")
}

func TestProvidePublisher(t *testing.T) {
	cfg := testConfig()
	assert.IsType(t, &events.LogPublisher{}, ProvidePublisher(nil, cfg, zap.NewNop()))

	cfg.AWS.EventBusName = "guild-events"
	assert.IsType(t, &events.EventBridgePublisher{}, ProvidePublisher(nil, cfg, zap.NewNop()))
}

func TestProvidePolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Access.Moderators = []string{"mod-1"}

	holder, err := ProvidePolicyHolder(cfg)
	require.NoError(t, err)
	assert.True(t, holder.CanReconcile("mod-1"))

	w, cleanup, err := ProvidePolicyWatcher(cfg, holder, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, w, "no policy file means nothing to watch")
	cleanup()

	cfg.Access.PolicyFile = "/does/not/exist.yaml"
	_, err = ProvidePolicyHolder(cfg)
	assert.Error(t, err)
}

func TestProvideAuthConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.TrustGatewayHeaders = true

	authCfg, err := ProvideAuthConfig(cfg)
	require.NoError(t, err)
	assert.Nil(t, authCfg.Validator)
	assert.True(t, authCfg.TrustGatewayHeaders)

	cfg.Auth.Secret = "test-secret"
	authCfg, err = ProvideAuthConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, authCfg.Validator)

	token, err := auth.NewJWTGenerator("test-secret", "", nil, time.Hour).GenerateToken("user-1", "Ash", nil)
	require.NoError(t, err)
	claims, err := authCfg.Validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	cfg.Auth.SigningMethod = "RS256"
	cfg.Auth.PublicKey = "not a pem"
	_, err = ProvideAuthConfig(cfg)
	assert.Error(t, err)
}

func TestProvideRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	assert.Nil(t, ProvideRateLimiter(ctx, cfg))

	cfg.RateLimit.Enabled = true
	limiter := ProvideRateLimiter(ctx, cfg)
	require.NotNil(t, limiter)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestProvideRouterConfig(t *testing.T) {
	cfg := testConfig()
	rc := ProvideRouterConfig(cfg, mustAuthConfig(t, cfg))
	assert.Empty(t, rc.CircuitBreaker.Name, "breaker disabled in development")
	assert.Equal(t, cfg.Server.RequestTimeout, rc.RequestTimeout)

	cfg.CircuitBreaker.Enabled = true
	cfg.CircuitBreaker.FailureThreshold = 0.5
	rc = ProvideRouterConfig(cfg, mustAuthConfig(t, cfg))
	assert.Equal(t, "api-routes", rc.CircuitBreaker.Name)
	assert.Equal(t, 0.5, rc.CircuitBreaker.FailureThreshold)
}

func mustAuthConfig(t *testing.T, cfg *config.Config) middleware.AuthConfig {
	t.Helper()
	authCfg, err := ProvideAuthConfig(cfg)
	require.NoError(t, err)
	return authCfg
}
