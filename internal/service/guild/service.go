// Package guild orchestrates the guild repositories. Each operation writes
// the row that carries the truth first and then adjusts the denormalized
// counter on the parent entity. The two writes are not transactional: when
// the counter write fails the operation still succeeds, and the counter is
// flagged for reconciliation.
package guild

import (
	"context"
	"time"

	"guildhall-backend/internal/access"
	"guildhall-backend/internal/cache"
	"guildhall-backend/internal/domain"
	"guildhall-backend/internal/events"
	"guildhall-backend/internal/observability"
	"guildhall-backend/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("guildhall/service/guild")

// Service defines the guild operations exposed to transports.
type Service interface {
	// ListGuilds returns up to limit guilds with per-viewer membership.
	ListGuilds(ctx context.Context, viewerID string, limit int) ([]GuildView, error)
	// CreateGuild creates a guild owned by callerID and joins the caller to it.
	// A non-empty idempotencyKey makes retries return the first result.
	CreateGuild(ctx context.Context, callerID string, input domain.NewGuild, idempotencyKey string) (*GuildView, error)
	GetGuild(ctx context.Context, viewerID, guildID string) (*GuildView, error)
	UpdateGuildPrivacy(ctx context.Context, callerID, guildID string, isPrivate bool) (*GuildView, error)

	// JoinGuild is idempotent: a second join changes nothing.
	JoinGuild(ctx context.Context, callerID, guildID string) (bool, error)
	// LeaveGuild reports whether a membership was removed.
	LeaveGuild(ctx context.Context, callerID, guildID string) (bool, error)
	ListMembers(ctx context.Context, guildID string) ([]MemberView, error)

	// ListPosts returns pinned posts first, then newest first.
	ListPosts(ctx context.Context, viewerID, guildID string) ([]PostView, error)
	CreatePost(ctx context.Context, callerID, guildID string, input domain.NewPost) (*PostView, error)
	DeletePost(ctx context.Context, callerID, guildID, postID string) error
	ToggleLike(ctx context.Context, callerID, guildID, postID string) (*LikeResult, error)
	TogglePin(ctx context.Context, callerID, guildID, postID string) (*PinResult, error)

	// AuthorizeReconcile returns nil if callerID may trigger reconciliation.
	AuthorizeReconcile(callerID string) error
	ReconcileGuild(ctx context.Context, guildID string, includePosts bool) (*ReconcileReport, error)
	ReconcilePost(ctx context.Context, guildID, postID string) (*ReconcileReport, error)
	ReconcileAll(ctx context.Context) (*ReconcileReport, error)
}

// Dependencies are the collaborators of the service. Idempotency, Events,
// Cache and Metrics are optional.
type Dependencies struct {
	Guilds      repository.GuildRepository
	Memberships repository.MembershipRepository
	Posts       repository.PostRepository
	Likes       repository.LikeRepository
	Reconciler  repository.CounterReconciler
	Idempotency repository.IdempotencyStore
	Access      access.Checker
	Events      events.Publisher
	Cache       cache.Cache
	Metrics     *observability.Collector
	Logger      *zap.Logger
}

// Config tunes the service.
type Config struct {
	DefaultListLimit int
	MaxListLimit     int
	ListCacheTTL     time.Duration
	IdempotencyTTL   time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultListLimit: 50,
		MaxListLimit:     100,
		ListCacheTTL:     30 * time.Second,
		IdempotencyTTL:   24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultListLimit <= 0 {
		c.DefaultListLimit = d.DefaultListLimit
	}
	if c.MaxListLimit <= 0 {
		c.MaxListLimit = d.MaxListLimit
	}
	if c.DefaultListLimit > c.MaxListLimit {
		c.DefaultListLimit = c.MaxListLimit
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = d.IdempotencyTTL
	}
	return c
}

// service implements Service.
type service struct {
	guilds      repository.GuildRepository
	memberships repository.MembershipRepository
	posts       repository.PostRepository
	likes       repository.LikeRepository
	reconciler  repository.CounterReconciler
	idempotency repository.IdempotencyStore
	access      access.Checker
	events      events.Publisher
	cache       cache.Cache
	metrics     *observability.Collector
	logger      *zap.Logger
	config      Config
}

// NewService creates a guild service.
func NewService(deps Dependencies, config Config) Service {
	s := &service{
		guilds:      deps.Guilds,
		memberships: deps.Memberships,
		posts:       deps.Posts,
		likes:       deps.Likes,
		reconciler:  deps.Reconciler,
		idempotency: deps.Idempotency,
		access:      deps.Access,
		events:      deps.Events,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		config:      config.withDefaults(),
	}
	if s.access == nil {
		s.access = access.Policy{}
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GuildService."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it. Use with a named error result.
func endSpan(span trace.Span, err *error) {
	if err != nil && *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}

// publish sends events without failing the caller.
func (s *service) publish(ctx context.Context, evts ...domain.Event) {
	if s.events == nil || len(evts) == 0 {
		return
	}
	if err := s.events.Publish(ctx, evts...); err != nil {
		s.logger.Warn("Failed to publish events",
			zap.String("event_type", evts[0].Type),
			zap.Error(err),
		)
	}
}

func newEvent(eventType, guildID, postID, userID string) domain.Event {
	return domain.Event{
		Type:       eventType,
		GuildID:    guildID,
		PostID:     postID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}
