package guild

import (
	"context"
	"encoding/json"

	"guildhall-backend/internal/domain"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	guildListCacheKey = "guilds:list"
	opCreateGuild     = "create_guild"
)

func requireCaller(callerID string) error {
	if callerID == "" {
		return appErrors.NewUnauthorizedError("")
	}
	return nil
}

func (s *service) ListGuilds(ctx context.Context, viewerID string, limit int) (views []GuildView, err error) {
	ctx, span := startSpan(ctx, "ListGuilds", attribute.Int("limit", limit))
	defer endSpan(span, &err)

	if limit <= 0 {
		limit = s.config.DefaultListLimit
	}
	if limit > s.config.MaxListLimit {
		limit = s.config.MaxListLimit
	}

	guilds, err := s.listGuildsCached(ctx)
	if err != nil {
		return nil, err
	}
	if len(guilds) > limit {
		guilds = guilds[:limit]
	}

	joined := make(map[string]bool)
	if viewerID != "" {
		ids, err := s.memberships.GuildIDsForUser(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			joined[id] = true
		}
	}

	views = make([]GuildView, 0, len(guilds))
	for _, g := range guilds {
		views = append(views, newGuildView(g, joined[g.ID]))
	}
	return views, nil
}

// listGuildsCached reads the first MaxListLimit guilds through the cache.
// Counters in a cached list may lag writes by up to ListCacheTTL.
func (s *service) listGuildsCached(ctx context.Context) ([]domain.Guild, error) {
	if s.config.ListCacheTTL > 0 {
		data, found, err := s.cache.Get(ctx, guildListCacheKey)
		if err != nil {
			s.logger.Warn("Guild list cache read failed", zap.Error(err))
		}
		if found {
			var guilds []domain.Guild
			if err := json.Unmarshal(data, &guilds); err == nil {
				s.metrics.RecordCacheHit()
				return guilds, nil
			}
		}
		s.metrics.RecordCacheMiss()
	}

	guilds, err := s.guilds.List(ctx, s.config.MaxListLimit)
	if err != nil {
		return nil, err
	}

	if s.config.ListCacheTTL > 0 {
		if data, err := json.Marshal(guilds); err == nil {
			if err := s.cache.Set(ctx, guildListCacheKey, data, s.config.ListCacheTTL); err != nil {
				s.logger.Warn("Guild list cache write failed", zap.Error(err))
			}
		}
	}
	return guilds, nil
}

func (s *service) invalidateGuildList(ctx context.Context) {
	if err := s.cache.Delete(ctx, guildListCacheKey); err != nil {
		s.logger.Warn("Guild list cache invalidation failed", zap.Error(err))
	}
}

func (s *service) CreateGuild(ctx context.Context, callerID string, input domain.NewGuild, idempotencyKey string) (view *GuildView, err error) {
	ctx, span := startSpan(ctx, "CreateGuild", attribute.Bool("idempotent", idempotencyKey != ""))
	defer endSpan(span, &err)

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	input.OwnerID = callerID
	input.ID = ""
	input.Normalize()
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		id, err := s.reserveGuildID(ctx, callerID, idempotencyKey)
		if err != nil {
			return nil, err
		}
		input.ID = id
	}

	guild, err := s.guilds.Create(ctx, input)
	created := true
	if err != nil {
		if !appErrors.IsConflict(err) || input.ID == "" {
			return nil, err
		}
		// A retry of a keyed request whose guild row already exists.
		guild, err = s.guilds.GetByID(ctx, input.ID)
		if err != nil {
			return nil, err
		}
		if guild == nil {
			return nil, appErrors.NewConflictError("guild id reserved by another request")
		}
		if guild.CreatedBy != callerID {
			return nil, appErrors.NewForbiddenError("idempotency key belongs to another caller")
		}
		created = false
	}
	span.SetAttributes(attribute.String("guild.id", guild.ID))

	joined, err := s.memberships.Add(ctx, guild.ID, callerID, domain.RoleOwner)
	if err != nil {
		return nil, err
	}
	if joined {
		if s.adjustCounter(ctx, counterAdjustment{
			counter: counterMemberCount,
			guildID: guild.ID,
			userID:  callerID,
			delta:   1,
			apply: func(ctx context.Context) error {
				return s.guilds.IncrementMemberCount(ctx, guild.ID, 1)
			},
		}) {
			guild.MemberCount++
		}
	}

	if created {
		s.metrics.RecordGuildCreated()
		s.publish(ctx, newEvent(domain.EventGuildCreated, guild.ID, "", callerID))
		s.logger.Info("Guild created",
			zap.String("guild_id", guild.ID),
			zap.String("owner_id", callerID),
			zap.String("category", guild.Category),
		)
	}
	s.invalidateGuildList(ctx)

	v := newGuildView(*guild, true)
	return &v, nil
}

// reserveGuildID returns the guild id bound to the key, binding a fresh one
// if the key is unused.
func (s *service) reserveGuildID(ctx context.Context, callerID, key string) (string, error) {
	id, found, err := s.idempotency.Get(ctx, callerID, opCreateGuild, key)
	if err != nil {
		return "", err
	}
	if found {
		return id, nil
	}

	candidate := uuid.NewString()
	stored, err := s.idempotency.Store(ctx, callerID, opCreateGuild, key, candidate, s.config.IdempotencyTTL)
	if err != nil {
		return "", err
	}
	if stored {
		return candidate, nil
	}

	// Another request claimed the key between our read and write.
	id, found, err = s.idempotency.Get(ctx, callerID, opCreateGuild, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", appErrors.NewConflictError("idempotency key is being reused")
	}
	return id, nil
}

func (s *service) GetGuild(ctx context.Context, viewerID, guildID string) (view *GuildView, err error) {
	ctx, span := startSpan(ctx, "GetGuild", attribute.String("guild.id", guildID))
	defer endSpan(span, &err)

	guild, err := s.requireGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	joined := false
	if viewerID != "" {
		joined, err = s.memberships.Check(ctx, guildID, viewerID)
		if err != nil {
			return nil, err
		}
	}
	v := newGuildView(*guild, joined)
	return &v, nil
}

func (s *service) requireGuild(ctx context.Context, guildID string) (*domain.Guild, error) {
	guild, err := s.guilds.GetByID(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if guild == nil {
		return nil, appErrors.NewNotFoundError("guild")
	}
	return guild, nil
}

func (s *service) UpdateGuildPrivacy(ctx context.Context, callerID, guildID string, isPrivate bool) (view *GuildView, err error) {
	ctx, span := startSpan(ctx, "UpdateGuildPrivacy", attribute.String("guild.id", guildID))
	defer endSpan(span, &err)

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	guild, err := s.requireGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanModifyGuild(guild, callerID) {
		return nil, appErrors.NewForbiddenError("only the guild owner can change its settings")
	}

	updated, err := s.guilds.Update(ctx, guildID, domain.GuildUpdate{IsPrivate: &isPrivate})
	if err != nil {
		return nil, err
	}
	s.invalidateGuildList(ctx)

	joined, err := s.memberships.Check(ctx, guildID, callerID)
	if err != nil {
		return nil, err
	}
	v := newGuildView(*updated, joined)
	return &v, nil
}

func (s *service) JoinGuild(ctx context.Context, callerID, guildID string) (joined bool, err error) {
	ctx, span := startSpan(ctx, "JoinGuild", attribute.String("guild.id", guildID))
	defer endSpan(span, &err)

	if err := requireCaller(callerID); err != nil {
		return false, err
	}
	if _, err := s.requireGuild(ctx, guildID); err != nil {
		return false, err
	}

	created, err := s.memberships.Add(ctx, guildID, callerID, domain.RoleMember)
	if err != nil {
		return false, err
	}
	if !created {
		return true, nil
	}

	s.adjustCounter(ctx, counterAdjustment{
		counter: counterMemberCount,
		guildID: guildID,
		userID:  callerID,
		delta:   1,
		apply: func(ctx context.Context) error {
			return s.guilds.IncrementMemberCount(ctx, guildID, 1)
		},
	})
	s.metrics.RecordMembership("join")
	s.publish(ctx, newEvent(domain.EventMemberJoined, guildID, "", callerID))
	s.invalidateGuildList(ctx)
	return true, nil
}

func (s *service) LeaveGuild(ctx context.Context, callerID, guildID string) (left bool, err error) {
	ctx, span := startSpan(ctx, "LeaveGuild", attribute.String("guild.id", guildID))
	defer endSpan(span, &err)

	if err := requireCaller(callerID); err != nil {
		return false, err
	}

	removed, err := s.memberships.Remove(ctx, guildID, callerID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	s.adjustCounter(ctx, counterAdjustment{
		counter: counterMemberCount,
		guildID: guildID,
		userID:  callerID,
		delta:   -1,
		apply: func(ctx context.Context) error {
			return s.guilds.IncrementMemberCount(ctx, guildID, -1)
		},
	})
	s.metrics.RecordMembership("leave")
	s.publish(ctx, newEvent(domain.EventMemberLeft, guildID, "", callerID))
	s.invalidateGuildList(ctx)
	return true, nil
}

func (s *service) ListMembers(ctx context.Context, guildID string) (views []MemberView, err error) {
	ctx, span := startSpan(ctx, "ListMembers", attribute.String("guild.id", guildID))
	defer endSpan(span, &err)

	members, err := s.memberships.GetByGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	views = make([]MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, MemberView{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt})
	}
	return views, nil
}
