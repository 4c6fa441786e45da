package di

import (
	"context"
	"fmt"
	"time"

	"guildhall-backend/internal/access"
	"guildhall-backend/internal/cache"
	"guildhall-backend/internal/config"
	"guildhall-backend/internal/events"
	"guildhall-backend/internal/handlers"
	"guildhall-backend/internal/middleware"
	"guildhall-backend/internal/observability"
	"guildhall-backend/internal/repository"
	"guildhall-backend/internal/repository/ddb"
	"guildhall-backend/internal/router"
	"guildhall-backend/internal/service/guild"
	"guildhall-backend/pkg/auth"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProvideLogger creates the process logger. The cleanup flushes it.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	var logger *zap.Logger
	var err error

	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, nil, err
	}

	logger = logger.With(
		zap.String("service", "guildhall"),
		zap.String("environment", string(cfg.Environment)),
	)
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at DynamoDB Local
// when an endpoint is configured.
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.AWS.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

func ProvideRepositoryConfig(cfg *config.Config) (repository.Config, error) {
	repoCfg := repository.Config{
		TableName: cfg.AWS.TableName,
		IndexName: cfg.AWS.IndexName,
		TimeoutMs: int(cfg.AWS.StoreTimeout / time.Millisecond),
		PageSize:  cfg.Reconcile.PageSize,
	}.WithDefaults()
	if err := repoCfg.Validate(); err != nil {
		return repository.Config{}, fmt.Errorf("invalid repository config: %w", err)
	}
	return repoCfg, nil
}

func ProvideRepositories(client *awsdynamodb.Client, repoCfg repository.Config, logger *zap.Logger) *ddb.Repositories {
	return ddb.NewRepositories(client, repoCfg, logger)
}

// ProvidePublisher publishes to EventBridge when a bus is configured and
// only logs events otherwise.
func ProvidePublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) events.Publisher {
	if cfg.AWS.EventBusName == "" {
		return events.NewLogPublisher(logger)
	}
	return events.NewEventBridgePublisher(client, cfg.AWS.EventBusName, logger)
}

// ProvideMetrics returns nil when metrics are disabled. Every Collector
// method accepts a nil receiver.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func ProvideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.Tracing.Enabled {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: "guildhall-backend",
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideCache builds the guild list cache. The memory cache sweeps expired
// entries until ctx is done.
func ProvideCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Cache, func(), error) {
	switch cfg.Cache.Provider {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return rc, func() {
			if err := rc.Close(); err != nil {
				logger.Warn("Redis close failed", zap.Error(err))
			}
		}, nil
	case "memory":
		mc := cache.NewMemoryCache(cfg.Cache.MaxItems, logger)
		mc.StartCleanup(ctx, time.Minute)
		return mc, func() {}, nil
	default:
		return cache.Noop{}, func() {}, nil
	}
}

func ProvidePolicyHolder(cfg *config.Config) (*access.Holder, error) {
	policy, err := cfg.InitialPolicy()
	if err != nil {
		return nil, err
	}
	return access.NewHolder(policy), nil
}

// ProvidePolicyWatcher returns nil unless a policy file is configured and
// watching is enabled.
func ProvidePolicyWatcher(cfg *config.Config, holder *access.Holder, logger *zap.Logger) (*config.PolicyWatcher, func(), error) {
	if cfg.Access.PolicyFile == "" || !cfg.Access.WatchPolicy {
		return nil, func() {}, nil
	}
	w, err := config.NewPolicyWatcher(cfg.Access.PolicyFile, holder, logger)
	if err != nil {
		return nil, nil, err
	}
	return w, w.Stop, nil
}

func ProvideGuildService(
	cfg *config.Config,
	repos *ddb.Repositories,
	holder *access.Holder,
	publisher events.Publisher,
	c cache.Cache,
	metrics *observability.Collector,
	logger *zap.Logger,
) guild.Service {
	listTTL := cfg.Cache.ListTTL
	if cfg.Cache.Provider == "none" {
		listTTL = 0
	}
	return guild.NewService(guild.Dependencies{
		Guilds:      repos.Guilds,
		Memberships: repos.Memberships,
		Posts:       repos.Posts,
		Likes:       repos.Likes,
		Reconciler:  repos.Reconciler,
		Idempotency: repos.Idempotency,
		Access:      holder,
		Events:      publisher,
		Cache:       c,
		Metrics:     metrics,
		Logger:      logger,
	}, guild.Config{
		DefaultListLimit: cfg.Service.DefaultListLimit,
		MaxListLimit:     cfg.Service.MaxListLimit,
		ListCacheTTL:     listTTL,
		IdempotencyTTL:   cfg.Service.IdempotencyTTL,
	})
}

func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *appErrors.ErrorHandler {
	return appErrors.NewErrorHandler(logger, cfg.Server.Debug)
}

// ProvideAuthConfig leaves the validator unset when no key material is
// configured. Requests are then identified by gateway headers only.
func ProvideAuthConfig(cfg *config.Config) (middleware.AuthConfig, error) {
	authCfg := middleware.AuthConfig{TrustGatewayHeaders: cfg.Auth.TrustGatewayHeaders}
	if cfg.Auth.Secret == "" && cfg.Auth.PublicKey == "" {
		return authCfg, nil
	}

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: cfg.Auth.SigningMethod,
		SecretKey:     cfg.Auth.Secret,
		PublicKey:     cfg.Auth.PublicKey,
		Issuer:        cfg.Auth.Issuer,
		Audience:      cfg.Auth.Audience,
	})
	if err != nil {
		return middleware.AuthConfig{}, fmt.Errorf("failed to create JWT validator: %w", err)
	}
	authCfg.Validator = validator
	return authCfg, nil
}

// ProvideRateLimiter returns nil when rate limiting is disabled. Idle
// buckets are swept until ctx is done.
func ProvideRateLimiter(ctx context.Context, cfg *config.Config) *middleware.RateLimiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})
	limiter.StartCleanup(ctx, time.Minute)
	return limiter
}

func ProvideHealthHandler(cfg *config.Config, repos *ddb.Repositories, logger *zap.Logger) *handlers.HealthHandler {
	return handlers.NewHealthHandler(cfg.Version, map[string]handlers.ReadinessCheck{
		"dynamodb": repos.Ping,
	}, logger)
}

func ProvideGuildHandler(svc guild.Service, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *handlers.GuildHandler {
	return handlers.NewGuildHandler(svc, errorHandler, logger)
}

func ProvideAdminHandler(svc guild.Service, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *handlers.AdminHandler {
	return handlers.NewAdminHandler(svc, errorHandler, logger)
}

// ProvideRouterConfig maps the server settings onto the HTTP layer.
func ProvideRouterConfig(cfg *config.Config, authCfg middleware.AuthConfig) router.Config {
	rc := router.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Auth:           authCfg,
	}
	if cfg.CircuitBreaker.Enabled {
		cb := middleware.DefaultCircuitBreakerConfig("api-routes")
		if cfg.CircuitBreaker.FailureThreshold > 0 {
			cb.FailureThreshold = cfg.CircuitBreaker.FailureThreshold
		}
		if cfg.CircuitBreaker.MinRequests > 0 {
			cb.MinRequests = cfg.CircuitBreaker.MinRequests
		}
		if cfg.CircuitBreaker.Timeout > 0 {
			cb.Timeout = cfg.CircuitBreaker.Timeout
		}
		rc.CircuitBreaker = cb
	}
	return rc
}

func ProvideRouter(
	rc router.Config,
	guildHandler *handlers.GuildHandler,
	adminHandler *handlers.AdminHandler,
	healthHandler *handlers.HealthHandler,
	metrics *observability.Collector,
	limiter *middleware.RateLimiter,
	errorHandler *appErrors.ErrorHandler,
	logger *zap.Logger,
) *chi.Mux {
	return router.New(rc, router.Dependencies{
		Guilds:       guildHandler,
		Admin:        adminHandler,
		Health:       healthHandler,
		Metrics:      metrics,
		RateLimiter:  limiter,
		ErrorHandler: errorHandler,
		Logger:       logger,
	})
}
