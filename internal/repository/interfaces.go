// Package repository defines the persistence contracts for guild data. The
// repositories are simple primitives: none of them adjusts a counter on
// another entity. Pairing row writes with counter writes is the caller's job.
package repository

import (
	"context"
	"time"

	"guildhall-backend/internal/domain"
)

// GuildRepository stores guild metadata and its denormalized counters.
type GuildRepository interface {
	// Create fails with a conflict error when input.ID is set and already taken.
	Create(ctx context.Context, input domain.NewGuild) (*domain.Guild, error)
	// GetByID returns nil, nil when the guild does not exist.
	GetByID(ctx context.Context, id string) (*domain.Guild, error)
	List(ctx context.Context, maxCount int) ([]domain.Guild, error)
	Update(ctx context.Context, id string, update domain.GuildUpdate) (*domain.Guild, error)
	// IncrementMemberCount and IncrementPostCount are atomic. A negative delta
	// that would take the counter below zero leaves it unchanged and returns
	// ErrCounterUnderflow.
	IncrementMemberCount(ctx context.Context, id string, delta int64) error
	IncrementPostCount(ctx context.Context, id string, delta int64) error
}

// MembershipRepository stores (guild, user) membership rows.
type MembershipRepository interface {
	Check(ctx context.Context, guildID, userID string) (bool, error)
	// Add reports whether a new row was created. A second Add is a no-op.
	Add(ctx context.Context, guildID, userID, role string) (bool, error)
	// Remove reports whether a row was actually deleted.
	Remove(ctx context.Context, guildID, userID string) (bool, error)
	GetByGuild(ctx context.Context, guildID string) ([]domain.Membership, error)
	// GuildIDsForUser lists the guilds userID belongs to.
	GuildIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// PostRepository stores posts, their like counter and their pin state.
type PostRepository interface {
	Create(ctx context.Context, input domain.NewPost) (*domain.Post, error)
	// GetByID returns nil, nil when the post does not exist.
	GetByID(ctx context.Context, guildID, postID string) (*domain.Post, error)
	GetByGuild(ctx context.Context, guildID string) ([]domain.Post, error)
	// Delete removes the post and sweeps its likes. It reports whether the
	// post row existed.
	Delete(ctx context.Context, guildID, postID string) (bool, error)
	IncrementLikes(ctx context.Context, guildID, postID string) error
	// DecrementLikes returns ErrCounterUnderflow instead of going below zero.
	DecrementLikes(ctx context.Context, guildID, postID string) error
	// TogglePin flips isPinned only if it still equals current. A lost race
	// returns a conflict error.
	TogglePin(ctx context.Context, guildID, postID string, current bool) (bool, error)
}

// LikeRepository stores per-(post, user) like presence rows.
type LikeRepository interface {
	Check(ctx context.Context, guildID, postID, userID string) (bool, error)
	// Toggle flips presence and reports the resulting liked state.
	Toggle(ctx context.Context, guildID, postID, userID string) (bool, error)
	// LikedPostIDs returns the subset of postIDs that userID has liked.
	LikedPostIDs(ctx context.Context, guildID, userID string, postIDs []string) (map[string]bool, error)
}

// GuildCounters are the denormalized counters stored on a guild.
type GuildCounters struct {
	MemberCount int64
	PostCount   int64
}

// CounterReconciler recomputes counters from the rows they summarise. The
// Set methods are compare-and-set: they only write when the stored value
// still equals the one the caller read, so a concurrent increment is never
// overwritten by a stale count.
type CounterReconciler interface {
	CountMembers(ctx context.Context, guildID string) (int64, error)
	CountPosts(ctx context.Context, guildID string) (int64, error)
	CountLikes(ctx context.Context, guildID, postID string) (int64, error)
	SetGuildCounters(ctx context.Context, guildID string, stored, actual GuildCounters) (bool, error)
	SetPostLikes(ctx context.Context, guildID, postID string, stored, actual int64) (bool, error)
	// ListGuildIDs pages through every guild id, calling fn once per page.
	ListGuildIDs(ctx context.Context, fn func(ids []string) error) error
}

// IdempotencyStore remembers the result of a non-idempotent request keyed by
// a client supplied key.
type IdempotencyStore interface {
	// Get returns "", false when nothing is stored under the key.
	Get(ctx context.Context, userID, operation, key string) (string, bool, error)
	// Store saves result. It returns false, nil when another request
	// already stored a result under the same key.
	Store(ctx context.Context, userID, operation, key, result string, ttl time.Duration) (bool, error)
}
