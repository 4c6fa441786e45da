// Package mocks provides an in-memory implementation of the repository
// interfaces for service and handler tests. It honours the same contracts as
// the DynamoDB repositories: conditional creates, counters clamped at zero
// and compare-and-set pin and reconcile writes.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"guildhall-backend/internal/domain"
	"guildhall-backend/internal/repository"
	appErrors "guildhall-backend/pkg/errors"

	"github.com/google/uuid"
)

type memberKey struct{ guildID, userID string }
type postKey struct{ guildID, postID string }
type likeKey struct{ guildID, postID, userID string }

type idempotencyEntry struct {
	result    string
	expiresAt time.Time
}

// MockStore is one in-memory table. Use the accessors to get a view that
// implements a single repository interface.
type MockStore struct {
	mu sync.RWMutex

	guilds      map[string]*domain.Guild
	guildOrder  []string
	members     map[memberKey]*domain.Membership
	posts       map[postKey]*domain.Post
	postSeq     map[postKey]int
	nextSeq     int
	likes       map[likeKey]time.Time
	idempotency map[string]idempotencyEntry

	// For testing error scenarios
	shouldFailOn map[string]error
	calls        map[string]int
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{
		guilds:       make(map[string]*domain.Guild),
		members:      make(map[memberKey]*domain.Membership),
		posts:        make(map[postKey]*domain.Post),
		postSeq:      make(map[postKey]int),
		likes:        make(map[likeKey]time.Time),
		idempotency:  make(map[string]idempotencyEntry),
		shouldFailOn: make(map[string]error),
		calls:        make(map[string]int),
	}
}

// SetError makes method fail with err until cleared. Methods are named
// "<Repository>.<Method>", for example "Guilds.IncrementMemberCount".
func (m *MockStore) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn[method] = err
}

// ClearErrors removes all configured errors.
func (m *MockStore) ClearErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn = make(map[string]error)
}

// Calls returns how often method was invoked, including failed calls.
func (m *MockStore) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// enter records the call and returns the configured error, if any. The
// caller must hold the write lock.
func (m *MockStore) enter(method string) error {
	m.calls[method]++
	if err, exists := m.shouldFailOn[method]; exists {
		return err
	}
	return nil
}

// ForceGuildCounters overwrites stored counters to simulate drift.
func (m *MockStore) ForceGuildCounters(guildID string, memberCount, postCount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.guilds[guildID]; ok {
		g.MemberCount = memberCount
		g.PostCount = postCount
	}
}

// ForcePostLikes overwrites a stored like counter to simulate drift.
func (m *MockStore) ForcePostLikes(guildID, postID string, likes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[postKey{guildID, postID}]; ok {
		p.Likes = likes
	}
}

// ForceTrending sets the stored trending flag.
func (m *MockStore) ForceTrending(guildID string, trending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.guilds[guildID]; ok {
		g.Trending = trending
	}
}

func (m *MockStore) Guilds() *GuildRepository           { return &GuildRepository{m} }
func (m *MockStore) Memberships() *MembershipRepository { return &MembershipRepository{m} }
func (m *MockStore) Posts() *PostRepository             { return &PostRepository{m} }
func (m *MockStore) Likes() *LikeRepository             { return &LikeRepository{m} }
func (m *MockStore) Reconciler() *Reconciler            { return &Reconciler{m} }
func (m *MockStore) Idempotency() *IdempotencyStore     { return &IdempotencyStore{m} }

// Guild operations

type GuildRepository struct{ s *MockStore }

var _ repository.GuildRepository = (*GuildRepository)(nil)

func (r *GuildRepository) Create(ctx context.Context, input domain.NewGuild) (*domain.Guild, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Guilds.Create"); err != nil {
		return nil, err
	}

	input.Normalize()
	if err := domain.Validate(input); err != nil {
		return nil, err
	}
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := m.guilds[id]; exists {
		return nil, appErrors.NewConflictError("guild already exists").WithCode("GUILD_EXISTS")
	}

	guild := &domain.Guild{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Image:       input.Image,
		IsPrivate:   input.IsPrivate,
		Rules:       input.Rules,
		CreatedBy:   input.OwnerID,
		CreatedAt:   time.Now().UTC(),
	}
	m.guilds[id] = guild
	m.guildOrder = append(m.guildOrder, id)
	out := *guild
	return &out, nil
}

func (r *GuildRepository) GetByID(ctx context.Context, id string) (*domain.Guild, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Guilds.GetByID"); err != nil {
		return nil, err
	}
	g, ok := m.guilds[id]
	if !ok {
		return nil, nil
	}
	out := *g
	return &out, nil
}

// List returns guilds newest first.
func (r *GuildRepository) List(ctx context.Context, maxCount int) ([]domain.Guild, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Guilds.List"); err != nil {
		return nil, err
	}
	guilds := make([]domain.Guild, 0)
	for i := len(m.guildOrder) - 1; i >= 0 && len(guilds) < maxCount; i-- {
		if g, ok := m.guilds[m.guildOrder[i]]; ok {
			guilds = append(guilds, *g)
		}
	}
	return guilds, nil
}

func (r *GuildRepository) Update(ctx context.Context, id string, update domain.GuildUpdate) (*domain.Guild, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Guilds.Update"); err != nil {
		return nil, err
	}
	g, ok := m.guilds[id]
	if !ok {
		return nil, appErrors.NewNotFoundError("guild")
	}
	if update.IsPrivate != nil {
		g.IsPrivate = *update.IsPrivate
	}
	out := *g
	return &out, nil
}

func (r *GuildRepository) IncrementMemberCount(ctx context.Context, id string, delta int64) error {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Guilds.IncrementMemberCount"); err != nil {
		return err
	}
	g, ok := m.guilds[id]
	if !ok {
		return appErrors.NewNotFoundError("guild")
	}
	return addClamped(&g.MemberCount, delta, "guild.MemberCount")
}

func (r *GuildRepository) IncrementPostCount(ctx context.Context, id string, delta int64) error {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Guilds.IncrementPostCount"); err != nil {
		return err
	}
	g, ok := m.guilds[id]
	if !ok {
		return appErrors.NewNotFoundError("guild")
	}
	return addClamped(&g.PostCount, delta, "guild.PostCount")
}

func addClamped(counter *int64, delta int64, name string) error {
	if *counter+delta < 0 {
		return fmt.Errorf("%w: %s", repository.ErrCounterUnderflow, name)
	}
	*counter += delta
	return nil
}

// Membership operations

type MembershipRepository struct{ s *MockStore }

var _ repository.MembershipRepository = (*MembershipRepository)(nil)

func (r *MembershipRepository) Check(ctx context.Context, guildID, userID string) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Memberships.Check"); err != nil {
		return false, err
	}
	_, ok := m.members[memberKey{guildID, userID}]
	return ok, nil
}

func (r *MembershipRepository) Add(ctx context.Context, guildID, userID, role string) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Memberships.Add"); err != nil {
		return false, err
	}
	if guildID == "" || userID == "" {
		return false, appErrors.NewValidationError("guildId and userId are required")
	}
	key := memberKey{guildID, userID}
	if _, ok := m.members[key]; ok {
		return false, nil
	}
	if role == "" {
		role = domain.RoleMember
	}
	m.members[key] = &domain.Membership{GuildID: guildID, UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
	return true, nil
}

func (r *MembershipRepository) Remove(ctx context.Context, guildID, userID string) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Memberships.Remove"); err != nil {
		return false, err
	}
	key := memberKey{guildID, userID}
	if _, ok := m.members[key]; !ok {
		return false, nil
	}
	delete(m.members, key)
	return true, nil
}

func (r *MembershipRepository) GetByGuild(ctx context.Context, guildID string) ([]domain.Membership, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Memberships.GetByGuild"); err != nil {
		return nil, err
	}
	members := make([]domain.Membership, 0)
	for key, member := range m.members {
		if key.guildID == guildID {
			members = append(members, *member)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

func (r *MembershipRepository) GuildIDsForUser(ctx context.Context, userID string) ([]string, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Memberships.GuildIDsForUser"); err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for key := range m.members {
		if key.userID == userID {
			ids = append(ids, key.guildID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Post operations

type PostRepository struct{ s *MockStore }

var _ repository.PostRepository = (*PostRepository)(nil)

func (r *PostRepository) Create(ctx context.Context, input domain.NewPost) (*domain.Post, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Posts.Create"); err != nil {
		return nil, err
	}
	input.Normalize()
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	post := &domain.Post{
		GuildID:    input.GuildID,
		ID:         uuid.NewString(),
		AuthorID:   input.AuthorID,
		AuthorName: input.AuthorName,
		Content:    input.Content,
		PostType:   input.PostType,
		CreatedAt:  time.Now().UTC(),
	}
	if input.Card != nil {
		card := *input.Card
		post.Card = &card
	}
	key := postKey{post.GuildID, post.ID}
	m.posts[key] = post
	m.nextSeq++
	m.postSeq[key] = m.nextSeq
	out := *post
	return &out, nil
}

func (r *PostRepository) GetByID(ctx context.Context, guildID, postID string) (*domain.Post, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Posts.GetByID"); err != nil {
		return nil, err
	}
	p, ok := m.posts[postKey{guildID, postID}]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (r *PostRepository) GetByGuild(ctx context.Context, guildID string) ([]domain.Post, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Posts.GetByGuild"); err != nil {
		return nil, err
	}
	posts := make([]domain.Post, 0)
	for key, p := range m.posts {
		if key.guildID == guildID {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return m.postSeq[postKey{guildID, posts[i].ID}] > m.postSeq[postKey{guildID, posts[j].ID}]
	})
	return posts, nil
}

func (r *PostRepository) Delete(ctx context.Context, guildID, postID string) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Posts.Delete"); err != nil {
		return false, err
	}
	key := postKey{guildID, postID}
	if _, ok := m.posts[key]; !ok {
		return false, nil
	}
	delete(m.posts, key)
	delete(m.postSeq, key)
	for lk := range m.likes {
		if lk.guildID == guildID && lk.postID == postID {
			delete(m.likes, lk)
		}
	}
	return true, nil
}

func (r *PostRepository) IncrementLikes(ctx context.Context, guildID, postID string) error {
	return r.addLikes(guildID, postID, 1, "Posts.IncrementLikes")
}

func (r *PostRepository) DecrementLikes(ctx context.Context, guildID, postID string) error {
	return r.addLikes(guildID, postID, -1, "Posts.DecrementLikes")
}

func (r *PostRepository) addLikes(guildID, postID string, delta int64, method string) error {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(method); err != nil {
		return err
	}
	p, ok := m.posts[postKey{guildID, postID}]
	if !ok {
		return appErrors.NewNotFoundError("post")
	}
	return addClamped(&p.Likes, delta, "post.Likes")
}

func (r *PostRepository) TogglePin(ctx context.Context, guildID, postID string, current bool) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Posts.TogglePin"); err != nil {
		return current, err
	}
	p, ok := m.posts[postKey{guildID, postID}]
	if !ok {
		return current, appErrors.NewNotFoundError("post")
	}
	if p.IsPinned != current {
		return current, appErrors.NewConflictError("post pin state changed concurrently").WithCode("PIN_CONFLICT")
	}
	p.IsPinned = !current
	return p.IsPinned, nil
}

// Like operations

type LikeRepository struct{ s *MockStore }

var _ repository.LikeRepository = (*LikeRepository)(nil)

func (r *LikeRepository) Check(ctx context.Context, guildID, postID, userID string) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Likes.Check"); err != nil {
		return false, err
	}
	_, ok := m.likes[likeKey{guildID, postID, userID}]
	return ok, nil
}

func (r *LikeRepository) Toggle(ctx context.Context, guildID, postID, userID string) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Likes.Toggle"); err != nil {
		return false, err
	}
	key := likeKey{guildID, postID, userID}
	if _, ok := m.likes[key]; ok {
		delete(m.likes, key)
		return false, nil
	}
	m.likes[key] = time.Now().UTC()
	return true, nil
}

func (r *LikeRepository) LikedPostIDs(ctx context.Context, guildID, userID string, postIDs []string) (map[string]bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Likes.LikedPostIDs"); err != nil {
		return nil, err
	}
	liked := make(map[string]bool)
	for _, postID := range postIDs {
		if _, ok := m.likes[likeKey{guildID, postID, userID}]; ok {
			liked[postID] = true
		}
	}
	return liked, nil
}

// Reconciler operations

type Reconciler struct{ s *MockStore }

var _ repository.CounterReconciler = (*Reconciler)(nil)

func (r *Reconciler) CountMembers(ctx context.Context, guildID string) (int64, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Reconciler.CountMembers"); err != nil {
		return 0, err
	}
	var n int64
	for key := range m.members {
		if key.guildID == guildID {
			n++
		}
	}
	return n, nil
}

func (r *Reconciler) CountPosts(ctx context.Context, guildID string) (int64, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Reconciler.CountPosts"); err != nil {
		return 0, err
	}
	var n int64
	for key := range m.posts {
		if key.guildID == guildID {
			n++
		}
	}
	return n, nil
}

func (r *Reconciler) CountLikes(ctx context.Context, guildID, postID string) (int64, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Reconciler.CountLikes"); err != nil {
		return 0, err
	}
	var n int64
	for key := range m.likes {
		if key.guildID == guildID && key.postID == postID {
			n++
		}
	}
	return n, nil
}

func (r *Reconciler) SetGuildCounters(ctx context.Context, guildID string, stored, actual repository.GuildCounters) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Reconciler.SetGuildCounters"); err != nil {
		return false, err
	}
	if stored == actual {
		return false, nil
	}
	g, ok := m.guilds[guildID]
	if !ok || g.MemberCount != stored.MemberCount || g.PostCount != stored.PostCount {
		return false, nil
	}
	g.MemberCount = actual.MemberCount
	g.PostCount = actual.PostCount
	return true, nil
}

func (r *Reconciler) SetPostLikes(ctx context.Context, guildID, postID string, stored, actual int64) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Reconciler.SetPostLikes"); err != nil {
		return false, err
	}
	if stored == actual {
		return false, nil
	}
	p, ok := m.posts[postKey{guildID, postID}]
	if !ok || p.Likes != stored {
		return false, nil
	}
	p.Likes = actual
	return true, nil
}

func (r *Reconciler) ListGuildIDs(ctx context.Context, fn func(ids []string) error) error {
	m := r.s
	m.mu.Lock()
	if err := m.enter("Reconciler.ListGuildIDs"); err != nil {
		m.mu.Unlock()
		return err
	}
	ids := make([]string, 0, len(m.guildOrder))
	for _, id := range m.guildOrder {
		if _, ok := m.guilds[id]; ok {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	return fn(ids)
}

// Idempotency operations

type IdempotencyStore struct{ s *MockStore }

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

func idempotencyKey(userID, operation, key string) string {
	return userID + "#" + operation + "#" + key
}

func (r *IdempotencyStore) Get(ctx context.Context, userID, operation, key string) (string, bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Idempotency.Get"); err != nil {
		return "", false, err
	}
	entry, ok := m.idempotency[idempotencyKey(userID, operation, key)]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.result, true, nil
}

func (r *IdempotencyStore) Store(ctx context.Context, userID, operation, key, result string, ttl time.Duration) (bool, error) {
	m := r.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Idempotency.Store"); err != nil {
		return false, err
	}
	k := idempotencyKey(userID, operation, key)
	if entry, ok := m.idempotency[k]; ok && time.Now().Before(entry.expiresAt) {
		return false, nil
	}
	m.idempotency[k] = idempotencyEntry{result: result, expiresAt: time.Now().Add(ttl)}
	return true, nil
}
