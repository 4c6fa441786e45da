package domain

import "time"

// Event types published after successful writes.
const (
	EventGuildCreated          = "GuildCreated"
	EventMemberJoined          = "MemberJoined"
	EventMemberLeft            = "MemberLeft"
	EventPostCreated           = "PostCreated"
	EventPostDeleted           = "PostDeleted"
	EventCounterDriftSuspected = "CounterDriftSuspected"
)

// Event is a fact about the guild data set. CounterDriftSuspected events
// carry the counter that could not be adjusted so the reconciler can repair it.
type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"event_type"`
	GuildID    string    `json:"guild_id"`
	PostID     string    `json:"post_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Counter    string    `json:"counter,omitempty"`
	Delta      int64     `json:"delta,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
