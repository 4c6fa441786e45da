package guild

import (
	"time"

	"guildhall-backend/internal/domain"
)

// GuildView is a guild as seen by one viewer.
type GuildView struct {
	domain.Guild
	IsJoined   bool
	IsTrending bool
}

func newGuildView(g domain.Guild, joined bool) GuildView {
	return GuildView{Guild: g, IsJoined: joined, IsTrending: g.IsTrending()}
}

type MemberView struct {
	UserID   string
	Role     string
	JoinedAt time.Time
}

// PostView is a post as seen by one viewer.
type PostView struct {
	domain.Post
	IsLiked bool
}

type LikeResult struct {
	Liked bool
	Likes int64
}

type PinResult struct {
	IsPinned bool
}

// CounterDrift is one counter whose stored value differed from its rows.
// Repaired is false when the stored value moved between read and write; the
// next pass picks it up.
type CounterDrift struct {
	Entity   string
	ID       string
	Counter  string
	Stored   int64
	Actual   int64
	Repaired bool
}

// ReconcileReport summarises a reconciliation pass.
type ReconcileReport struct {
	GuildsChecked int
	PostsChecked  int
	Drifts        []CounterDrift
}

func (r *ReconcileReport) merge(other *ReconcileReport) {
	if other == nil {
		return
	}
	r.GuildsChecked += other.GuildsChecked
	r.PostsChecked += other.PostsChecked
	r.Drifts = append(r.Drifts, other.Drifts...)
}
