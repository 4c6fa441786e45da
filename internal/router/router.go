// Package router assembles the HTTP surface.
package router

import (
	"net/http"
	"time"

	"guildhall-backend/internal/handlers"
	"guildhall-backend/internal/middleware"
	"guildhall-backend/internal/observability"
	"guildhall-backend/pkg/api"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config holds the HTTP layer settings.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	CircuitBreaker middleware.CircuitBreakerConfig
	Auth           middleware.AuthConfig
}

// Dependencies are the handlers and collaborators mounted by New.
type Dependencies struct {
	Guilds       *handlers.GuildHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
	Metrics      *observability.Collector
	RateLimiter  *middleware.RateLimiter
	ErrorHandler *appErrors.ErrorHandler
	Logger       *zap.Logger
}

// New builds the router:
//
//	/health, /ready, /metrics, /swagger.yaml   probes and docs
//	/api/v1/guilds/...                          guild, membership and post routes
//	/api/v1/admin/reconcile/guilds/{guildID}    moderator reconciliation
func New(config Config, deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	allowed := config.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader, handlers.IdempotencyKeyHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.Recovery(deps.Logger, deps.ErrorHandler))

	r.Get("/health", deps.Health.Health)
	r.Get("/ready", deps.Health.Ready)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	r.Get("/swagger.yaml", api.SwaggerHandler())

	requireUser := middleware.RequireUser(deps.ErrorHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(middleware.RateLimit(deps.RateLimiter, deps.Metrics, deps.ErrorHandler))
		}
		r.Use(middleware.Authenticate(config.Auth, deps.Logger, deps.ErrorHandler))
		r.Use(middleware.Logger(deps.Logger))
		if config.RequestTimeout > 0 {
			r.Use(middleware.Timeout(config.RequestTimeout, deps.Logger, deps.ErrorHandler))
		}
		if config.CircuitBreaker.Name != "" {
			r.Use(middleware.CircuitBreaker(config.CircuitBreaker, deps.Logger, deps.ErrorHandler))
		}

		r.Mount("/guilds", deps.Guilds.Routes(requireUser))
		r.With(requireUser).Post("/admin/reconcile/guilds/{guildID}", deps.Admin.ReconcileGuild)
	})

	return r
}
