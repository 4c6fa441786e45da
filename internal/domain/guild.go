// Package domain holds the guild entities and the rules that depend only on
// their own fields.
package domain

import "time"

// Thresholds above which a guild counts as trending.
const (
	TrendingMemberThreshold = 5
	TrendingPostThreshold   = 3
)

// Guild is a community aggregating members and posts. MemberCount and
// PostCount are denormalized and may drift until reconciled.
type Guild struct {
	ID          string
	Name        string
	Description string
	Category    string
	Image       string
	MemberCount int64
	PostCount   int64
	IsPrivate   bool
	Rules       string
	CreatedBy   string
	CreatedAt   time.Time
	// Trending is the stored flag. Use IsTrending for the effective value.
	Trending bool
}

// IsTrending derives the trending state at read time.
func (g Guild) IsTrending() bool {
	return g.MemberCount >= TrendingMemberThreshold ||
		g.PostCount >= TrendingPostThreshold ||
		g.Trending
}

// NewGuild is the input for creating a guild.
type NewGuild struct {
	// ID is normally empty and assigned on create. Idempotent creates
	// reserve it up front.
	ID          string
	Name        string `validate:"required,max=100"`
	Description string `validate:"required,max=2000"`
	Category    string `validate:"required,max=50"`
	Image       string `validate:"omitempty,max=2048"`
	IsPrivate   bool
	Rules       string `validate:"max=5000"`
	OwnerID     string `validate:"required"`
}

// GuildUpdate lists the mutable guild fields. Nil means unchanged.
type GuildUpdate struct {
	IsPrivate *bool
}

// Empty reports whether the update changes nothing.
func (u GuildUpdate) Empty() bool {
	return u.IsPrivate == nil
}
