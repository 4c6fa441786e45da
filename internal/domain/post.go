package domain

import "time"

// Card is an optional trading card reference on a post.
type Card struct {
	Game  string  `validate:"required,max=100"`
	Price float64 `validate:"gte=0"`
}

// Post belongs to a guild. Likes is denormalized from Like rows.
type Post struct {
	GuildID    string
	ID         string
	AuthorID   string
	AuthorName string
	Content    string
	PostType   string
	Card       *Card
	Likes      int64
	Comments   int64
	IsPinned   bool
	CreatedAt  time.Time
}

// NewPost is the input for creating a post.
type NewPost struct {
	GuildID    string `validate:"required"`
	AuthorID   string `validate:"required"`
	AuthorName string `validate:"max=100"`
	Content    string `validate:"required,max=5000"`
	PostType   string `validate:"required,max=30"`
	Card       *Card  `validate:"omitempty"`
}
