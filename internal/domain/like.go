package domain

import "time"

// Like is a presence record: its existence is the liked state.
type Like struct {
	GuildID   string
	PostID    string
	UserID    string
	CreatedAt time.Time
}
