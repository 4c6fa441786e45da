package domain

import "time"

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Membership joins a user to a guild. At most one exists per (GuildID, UserID).
type Membership struct {
	GuildID  string
	UserID   string
	Role     string
	JoinedAt time.Time
}
