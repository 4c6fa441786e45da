package guild

import (
	"context"
	"errors"
	"sync"
	"testing"

	"guildhall-backend/internal/access"
	"guildhall-backend/internal/cache"
	"guildhall-backend/internal/domain"
	"guildhall-backend/internal/observability"
	"guildhall-backend/internal/repository/mocks"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	userA     = "user-a"
	userB     = "user-b"
	moderator = "mod-1"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store     *mocks.MockStore
	service   Service
	publisher *recordingPublisher
	metrics   *observability.Collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := mocks.NewMockStore()
	publisher := &recordingPublisher{}
	metrics := observability.NewCollector("guildhall_test")

	svc := NewService(Dependencies{
		Guilds:      store.Guilds(),
		Memberships: store.Memberships(),
		Posts:       store.Posts(),
		Likes:       store.Likes(),
		Reconciler:  store.Reconciler(),
		Idempotency: store.Idempotency(),
		Access:      access.Policy{Moderators: []string{moderator}},
		Events:      publisher,
		Cache:       cache.NewMemoryCache(100, zap.NewNop()),
		Metrics:     metrics,
		Logger:      zap.NewNop(),
	}, DefaultConfig())

	return &fixture{store: store, service: svc, publisher: publisher, metrics: metrics}
}

func (f *fixture) createGuild(t *testing.T, owner, name string) *GuildView {
	t.Helper()
	g, err := f.service.CreateGuild(context.Background(), owner, domain.NewGuild{
		Name:        name,
		Description: "Trade and discuss cards",
		Category:    "TCG",
	}, "")
	require.NoError(t, err)
	return g
}

func (f *fixture) createPost(t *testing.T, author, guildID, content string) *PostView {
	t.Helper()
	p, err := f.service.CreatePost(context.Background(), author, guildID, domain.NewPost{
		Content:  content,
		PostType: "sale",
	})
	require.NoError(t, err)
	return p
}

func TestGuildScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g := f.createGuild(t, userA, "Pokemon Traders")
	assert.Equal(t, int64(1), g.MemberCount)
	assert.True(t, g.IsJoined)
	assert.Equal(t, userA, g.CreatedBy)

	viewB, err := f.service.GetGuild(ctx, userB, g.ID)
	require.NoError(t, err)
	assert.False(t, viewB.IsJoined)

	joined, err := f.service.JoinGuild(ctx, userB, g.ID)
	require.NoError(t, err)
	assert.True(t, joined)
	viewB, err = f.service.GetGuild(ctx, userB, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), viewB.MemberCount)
	assert.True(t, viewB.IsJoined)

	left, err := f.service.LeaveGuild(ctx, userB, g.ID)
	require.NoError(t, err)
	assert.True(t, left)
	viewA, err := f.service.GetGuild(ctx, userA, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), viewA.MemberCount)

	post := f.createPost(t, userA, g.ID, "WTS Charizard")
	viewA, err = f.service.GetGuild(ctx, userA, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), viewA.PostCount)

	like, err := f.service.ToggleLike(ctx, userB, g.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, like.Liked)
	assert.Equal(t, int64(1), like.Likes)

	posts, err := f.service.ListPosts(ctx, userB, g.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.True(t, posts[0].IsLiked)
	assert.Equal(t, int64(1), posts[0].Likes)

	like, err = f.service.ToggleLike(ctx, userB, g.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, like.Liked)
	assert.Equal(t, int64(0), like.Likes)

	pin, err := f.service.TogglePin(ctx, userA, g.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, pin.IsPinned)

	_, err = f.service.TogglePin(ctx, userB, g.ID, post.ID)
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))

	stored, err := f.store.Posts().GetByID(ctx, g.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPinned)

	assert.Len(t, f.publisher.ofType(domain.EventCounterDriftSuspected), 0)
}

func TestCreateGuild(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresCaller", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateGuild(ctx, "", domain.NewGuild{Name: "x", Description: "y", Category: "z"}, "")
		assert.True(t, appErrors.IsUnauthorized(err))
	})

	t.Run("MissingNameIsValidationError", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateGuild(ctx, userA, domain.NewGuild{Name: "   ", Description: "y", Category: "z"}, "")
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
		assert.Equal(t, 0, f.store.Calls("Guilds.Create"))
	})

	t.Run("IdempotencyKeyReturnsFirstGuild", func(t *testing.T) {
		f := newFixture(t)
		input := domain.NewGuild{Name: "Pokemon Traders", Description: "Cards", Category: "TCG"}

		first, err := f.service.CreateGuild(ctx, userA, input, "req-1")
		require.NoError(t, err)
		second, err := f.service.CreateGuild(ctx, userA, input, "req-1")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, int64(1), second.MemberCount)
		assert.Len(t, f.publisher.ofType(domain.EventGuildCreated), 1)

		guilds, err := f.service.ListGuilds(ctx, userA, 0)
		require.NoError(t, err)
		assert.Len(t, guilds, 1)
	})

	t.Run("SameKeyDifferentCallersAreIndependent", func(t *testing.T) {
		f := newFixture(t)
		input := domain.NewGuild{Name: "Pokemon Traders", Description: "Cards", Category: "TCG"}

		a, err := f.service.CreateGuild(ctx, userA, input, "req-1")
		require.NoError(t, err)
		b, err := f.service.CreateGuild(ctx, userB, input, "req-1")
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("StoreUnavailableSurfaces", func(t *testing.T) {
		f := newFixture(t)
		f.store.SetError("Guilds.Create", appErrors.NewStoreUnavailableError("PutItem", errors.New("timeout")))

		_, err := f.service.CreateGuild(ctx, userA, domain.NewGuild{Name: "x", Description: "y", Category: "z"}, "")
		require.Error(t, err)
		assert.True(t, appErrors.IsRetryable(err))
	})
}

func TestListGuilds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createGuild(t, userA, "First")
	second := f.createGuild(t, userB, "Second")

	guilds, err := f.service.ListGuilds(ctx, userA, 10)
	require.NoError(t, err)
	require.Len(t, guilds, 2)
	assert.Equal(t, second.ID, guilds[0].ID)
	assert.False(t, guilds[0].IsJoined)
	assert.Equal(t, first.ID, guilds[1].ID)
	assert.True(t, guilds[1].IsJoined)

	t.Run("AnonymousViewerSeesNoMemberships", func(t *testing.T) {
		guilds, err := f.service.ListGuilds(ctx, "", 10)
		require.NoError(t, err)
		for _, g := range guilds {
			assert.False(t, g.IsJoined)
		}
	})

	t.Run("LimitIsApplied", func(t *testing.T) {
		guilds, err := f.service.ListGuilds(ctx, "", 1)
		require.NoError(t, err)
		assert.Len(t, guilds, 1)
	})

	t.Run("ServedFromCacheUntilWrite", func(t *testing.T) {
		calls := f.store.Calls("Guilds.List")
		_, err := f.service.ListGuilds(ctx, "", 10)
		require.NoError(t, err)
		assert.Equal(t, calls, f.store.Calls("Guilds.List"))

		_, err = f.service.JoinGuild(ctx, userB, first.ID)
		require.NoError(t, err)

		guilds, err := f.service.ListGuilds(ctx, userB, 10)
		require.NoError(t, err)
		assert.Equal(t, calls+1, f.store.Calls("Guilds.List"))
		assert.Equal(t, int64(2), guilds[1].MemberCount)
		assert.True(t, guilds[1].IsJoined)
	})

	t.Run("TrendingIsDerived", func(t *testing.T) {
		for _, u := range []string{"u1", "u2", "u3", "u4"} {
			_, err := f.service.JoinGuild(ctx, u, second.ID)
			require.NoError(t, err)
		}
		g, err := f.service.GetGuild(ctx, "", second.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), g.MemberCount)
		assert.True(t, g.IsTrending)
	})
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.createGuild(t, userA, "Pokemon Traders")

	for i := 0; i < 2; i++ {
		joined, err := f.service.JoinGuild(ctx, userB, g.ID)
		require.NoError(t, err)
		assert.True(t, joined)
	}

	view, err := f.service.GetGuild(ctx, userB, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.MemberCount)

	members, err := f.service.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Len(t, f.publisher.ofType(domain.EventMemberJoined), 1)
}

func TestJoinUnknownGuild(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.JoinGuild(context.Background(), userB, "missing")
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestLeaveWithoutMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.createGuild(t, userA, "Pokemon Traders")

	left, err := f.service.LeaveGuild(ctx, userB, g.ID)
	require.NoError(t, err)
	assert.False(t, left)

	view, err := f.service.GetGuild(ctx, "", g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.MemberCount)
}

func TestMemberCountMatchesRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.createGuild(t, userA, "Pokemon Traders")

	ops := []struct {
		user string
		join bool
	}{
		{"u1", true}, {"u2", true}, {"u1", false}, {"u3", true},
		{"u2", true}, {"u1", false}, {"u3", false}, {"u4", true},
	}
	for _, op := range ops {
		var err error
		if op.join {
			_, err = f.service.JoinGuild(ctx, op.user, g.ID)
		} else {
			_, err = f.service.LeaveGuild(ctx, op.user, g.ID)
		}
		require.NoError(t, err)
	}

	view, err := f.service.GetGuild(ctx, "", g.ID)
	require.NoError(t, err)
	rows, err := f.store.Reconciler().CountMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, rows, view.MemberCount)
	assert.Equal(t, int64(3), rows)
}

func TestUpdateGuildPrivacy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.createGuild(t, userA, "Pokemon Traders")

	_, err := f.service.UpdateGuildPrivacy(ctx, userB, g.ID, true)
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))

	view, err := f.service.GetGuild(ctx, "", g.ID)
	require.NoError(t, err)
	assert.False(t, view.IsPrivate)

	updated, err := f.service.UpdateGuildPrivacy(ctx, userA, g.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsPrivate)
	assert.True(t, updated.IsJoined)

	_, err = f.service.UpdateGuildPrivacy(ctx, userA, "missing", true)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestPosts(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingContentIsValidationError", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")

		_, err := f.service.CreatePost(ctx, userA, g.ID, domain.NewPost{PostType: "sale"})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
		assert.Equal(t, 0, f.store.Calls("Posts.Create"))
	})

	t.Run("UnknownGuild", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreatePost(ctx, userA, "missing", domain.NewPost{Content: "hi", PostType: "chat"})
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("PinnedFirstThenNewest", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")
		older := f.createPost(t, userA, g.ID, "WTS Charizard")
		newer := f.createPost(t, userA, g.ID, "WTB Pikachu")
		newest := f.createPost(t, userA, g.ID, "Trading night")

		_, err := f.service.TogglePin(ctx, userA, g.ID, older.ID)
		require.NoError(t, err)

		posts, err := f.service.ListPosts(ctx, "", g.ID)
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, older.ID, posts[0].ID)
		assert.Equal(t, newest.ID, posts[1].ID)
		assert.Equal(t, newer.ID, posts[2].ID)
	})

	t.Run("DeleteByStrangerIsForbidden", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")
		post := f.createPost(t, userA, g.ID, "WTS Charizard")
		_, err := f.service.ToggleLike(ctx, userA, g.ID, post.ID)
		require.NoError(t, err)

		err = f.service.DeletePost(ctx, userB, g.ID, post.ID)
		require.Error(t, err)
		assert.True(t, appErrors.IsForbidden(err))

		stored, err := f.store.Posts().GetByID(ctx, g.ID, post.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, int64(1), stored.Likes)
		liked, err := f.store.Likes().Check(ctx, g.ID, post.ID, userA)
		require.NoError(t, err)
		assert.True(t, liked)
	})

	t.Run("DeleteByAuthorOwnerOrModerator", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")
		_, err := f.service.JoinGuild(ctx, userB, g.ID)
		require.NoError(t, err)

		byAuthor := f.createPost(t, userB, g.ID, "mine")
		byOwner := f.createPost(t, userB, g.ID, "owner removes")
		byMod := f.createPost(t, userB, g.ID, "moderator removes")

		require.NoError(t, f.service.DeletePost(ctx, userB, g.ID, byAuthor.ID))
		require.NoError(t, f.service.DeletePost(ctx, userA, g.ID, byOwner.ID))
		require.NoError(t, f.service.DeletePost(ctx, moderator, g.ID, byMod.ID))

		view, err := f.service.GetGuild(ctx, "", g.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), view.PostCount)
		assert.Len(t, f.publisher.ofType(domain.EventPostDeleted), 3)
	})

	t.Run("DeleteMissingPost", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")
		err := f.service.DeletePost(ctx, userA, g.ID, "missing")
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("DeleteSweepsLikes", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")
		post := f.createPost(t, userA, g.ID, "WTS Charizard")
		_, err := f.service.ToggleLike(ctx, userB, g.ID, post.ID)
		require.NoError(t, err)

		require.NoError(t, f.service.DeletePost(ctx, userA, g.ID, post.ID))

		n, err := f.store.Reconciler().CountLikes(ctx, g.ID, post.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestToggleLike(t *testing.T) {
	ctx := context.Background()

	t.Run("IsAnInvolution", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")
		post := f.createPost(t, userA, g.ID, "WTS Charizard")
		_, err := f.service.ToggleLike(ctx, userA, g.ID, post.ID)
		require.NoError(t, err)

		before, err := f.store.Posts().GetByID(ctx, g.ID, post.ID)
		require.NoError(t, err)

		first, err := f.service.ToggleLike(ctx, userB, g.ID, post.ID)
		require.NoError(t, err)
		assert.True(t, first.Liked)
		assert.Equal(t, before.Likes+1, first.Likes)

		second, err := f.service.ToggleLike(ctx, userB, g.ID, post.ID)
		require.NoError(t, err)
		assert.False(t, second.Liked)
		assert.Equal(t, before.Likes, second.Likes)

		liked, err := f.store.Likes().Check(ctx, g.ID, post.ID, userB)
		require.NoError(t, err)
		assert.False(t, liked)
	})

	t.Run("UnknownPost", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")
		_, err := f.service.ToggleLike(ctx, userB, g.ID, "missing")
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("NeverGoesBelowZero", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")
		post := f.createPost(t, userA, g.ID, "WTS Charizard")
		_, err := f.service.ToggleLike(ctx, userB, g.ID, post.ID)
		require.NoError(t, err)
		f.store.ForcePostLikes(g.ID, post.ID, 0)

		result, err := f.service.ToggleLike(ctx, userB, g.ID, post.ID)
		require.NoError(t, err)
		assert.False(t, result.Liked)
		assert.Equal(t, int64(0), result.Likes)

		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CounterDrift.WithLabelValues(counterLikes, "underflow")))
		drift := f.publisher.ofType(domain.EventCounterDriftSuspected)
		require.Len(t, drift, 1)
		assert.Equal(t, post.ID, drift[0].PostID)
		assert.Equal(t, int64(-1), drift[0].Delta)
	})
}

func TestTogglePin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.createGuild(t, userA, "Pokemon Traders")
	post := f.createPost(t, userA, g.ID, "WTS Charizard")

	t.Run("ModeratorCannotPin", func(t *testing.T) {
		_, err := f.service.TogglePin(ctx, moderator, g.ID, post.ID)
		assert.True(t, appErrors.IsForbidden(err))
	})

	t.Run("OwnerTogglesBackAndForth", func(t *testing.T) {
		pin, err := f.service.TogglePin(ctx, userA, g.ID, post.ID)
		require.NoError(t, err)
		assert.True(t, pin.IsPinned)
		pin, err = f.service.TogglePin(ctx, userA, g.ID, post.ID)
		require.NoError(t, err)
		assert.False(t, pin.IsPinned)
	})

	t.Run("MissingPost", func(t *testing.T) {
		_, err := f.service.TogglePin(ctx, userA, g.ID, "missing")
		assert.True(t, appErrors.IsNotFound(err))
	})
}

func TestCounterFailureAfterRowWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.createGuild(t, userA, "Pokemon Traders")

	f.store.SetError("Guilds.IncrementMemberCount",
		appErrors.NewStoreUnavailableError("UpdateItem", errors.New("throttled")))

	joined, err := f.service.JoinGuild(ctx, userB, g.ID)
	require.NoError(t, err)
	assert.True(t, joined)

	isMember, err := f.store.Memberships().Check(ctx, g.ID, userB)
	require.NoError(t, err)
	assert.True(t, isMember)

	view, err := f.service.GetGuild(ctx, "", g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.MemberCount)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CounterDrift.WithLabelValues(counterMemberCount, "store_unavailable")))
	drift := f.publisher.ofType(domain.EventCounterDriftSuspected)
	require.Len(t, drift, 1)
	assert.Equal(t, g.ID, drift[0].GuildID)
	assert.Equal(t, counterMemberCount, drift[0].Counter)

	f.store.ClearErrors()
	report, err := f.service.ReconcileGuild(ctx, g.ID, false)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.True(t, report.Drifts[0].Repaired)
	assert.Equal(t, int64(1), report.Drifts[0].Stored)
	assert.Equal(t, int64(2), report.Drifts[0].Actual)

	view, err = f.service.GetGuild(ctx, "", g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.MemberCount)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("AuthorizeReconcile", func(t *testing.T) {
		f := newFixture(t)
		assert.True(t, appErrors.IsUnauthorized(f.service.AuthorizeReconcile("")))
		assert.True(t, appErrors.IsForbidden(f.service.AuthorizeReconcile(userA)))
		assert.NoError(t, f.service.AuthorizeReconcile(moderator))
	})

	t.Run("ConsistentGuildHasNoDrift", func(t *testing.T) {
		f := newFixture(t)
		g := f.createGuild(t, userA, "Pokemon Traders")
		f.createPost(t, userA, g.ID, "WTS Charizard")

		report, err := f.service.ReconcileGuild(ctx, g.ID, true)
		require.NoError(t, err)
		assert.Empty(t, report.Drifts)
		assert.Equal(t, 1, report.PostsChecked)
		assert.Equal(t, 0, f.store.Calls("Reconciler.SetGuildCounters"))
	})

	t.Run("AllRepairsEveryCounter", func(t *testing.T) {
		f := newFixture(t)
		g1 := f.createGuild(t, userA, "Pokemon Traders")
		g2 := f.createGuild(t, userB, "Magic Traders")
		post := f.createPost(t, userB, g2.ID, "WTS Black Lotus")
		_, err := f.service.ToggleLike(ctx, userA, g2.ID, post.ID)
		require.NoError(t, err)

		f.store.ForceGuildCounters(g1.ID, 7, 4)
		f.store.ForcePostLikes(g2.ID, post.ID, 0)

		report, err := f.service.ReconcileAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, report.GuildsChecked)
		assert.Equal(t, 1, report.PostsChecked)
		assert.Len(t, report.Drifts, 3)

		v1, err := f.service.GetGuild(ctx, "", g1.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v1.MemberCount)
		assert.Equal(t, int64(0), v1.PostCount)

		p, err := f.store.Posts().GetByID(ctx, g2.ID, post.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), p.Likes)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CounterRepairs.WithLabelValues(counterLikes)))
	})

	t.Run("UnknownGuild", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.ReconcileGuild(ctx, "missing", false)
		assert.True(t, appErrors.IsNotFound(err))
	})
}
