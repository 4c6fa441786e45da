package api

// CreateGuildRequest is the body of POST /guilds.
type CreateGuildRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Image       string `json:"image,omitempty"`
	IsPrivate   bool   `json:"isPrivate"`
	Rules       string `json:"rules,omitempty"`
}

// UpdateGuildRequest is the body of PATCH /guilds/{guildID}. Only privacy is mutable.
type UpdateGuildRequest struct {
	IsPrivate *bool `json:"isPrivate"`
}

// GuildResponse is a guild as seen by a particular viewer.
type GuildResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Image       string `json:"image,omitempty"`
	MemberCount int64  `json:"memberCount"`
	PostCount   int64  `json:"postCount"`
	IsPrivate   bool   `json:"isPrivate"`
	Rules       string `json:"rules,omitempty"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   string `json:"createdAt"`
	Trending    bool   `json:"trending"`
	IsJoined    bool   `json:"isJoined"`
}

// MemberResponse is a single guild member.
type MemberResponse struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	JoinedAt string `json:"joinedAt"`
}

// CardRequest references a trading card attached to a post.
type CardRequest struct {
	Game  string  `json:"game"`
	Price float64 `json:"price"`
}

// CreatePostRequest is the body of POST /guilds/{guildID}/posts.
type CreatePostRequest struct {
	Content    string       `json:"content"`
	PostType   string       `json:"postType"`
	AuthorName string       `json:"authorName,omitempty"`
	Card       *CardRequest `json:"card,omitempty"`
}

// PostResponse is a post as seen by a particular viewer.
type PostResponse struct {
	ID         string       `json:"id"`
	GuildID    string       `json:"guildId"`
	AuthorID   string       `json:"authorId"`
	AuthorName string       `json:"authorName"`
	Content    string       `json:"content"`
	PostType   string       `json:"postType"`
	Card       *CardRequest `json:"card,omitempty"`
	Likes      int64        `json:"likes"`
	Comments   int64        `json:"comments"`
	IsPinned   bool         `json:"isPinned"`
	IsLiked    bool         `json:"isLiked"`
	CreatedAt  string       `json:"createdAt"`
}

type JoinResponse struct {
	Joined bool `json:"joined"`
}

type LeaveResponse struct {
	Left bool `json:"left"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// LikeResponse is returned by the like toggle.
type LikeResponse struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}

// PinResponse is returned by the pin toggle.
type PinResponse struct {
	IsPinned bool `json:"isPinned"`
}

// CounterDrift describes one corrected counter.
type CounterDrift struct {
	Entity   string `json:"entity"`
	ID       string `json:"id"`
	Counter  string `json:"counter"`
	Stored   int64  `json:"stored"`
	Actual   int64  `json:"actual"`
	Repaired bool   `json:"repaired"`
}

// ReconcileResponse summarises a reconciliation run.
type ReconcileResponse struct {
	GuildsChecked int            `json:"guildsChecked"`
	PostsChecked  int            `json:"postsChecked"`
	Drifts        []CounterDrift `json:"drifts"`
}
