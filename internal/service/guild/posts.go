package guild

import (
	"context"
	"sort"

	"guildhall-backend/internal/domain"
	appErrors "guildhall-backend/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func (s *service) ListPosts(ctx context.Context, viewerID, guildID string) (views []PostView, err error) {
	ctx, span := startSpan(ctx, "ListPosts", attribute.String("guild.id", guildID))
	defer endSpan(span, &err)

	posts, err := s.posts.GetByGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	sortPosts(posts)

	liked := map[string]bool{}
	if viewerID != "" && len(posts) > 0 {
		ids := make([]string, 0, len(posts))
		for _, p := range posts {
			ids = append(ids, p.ID)
		}
		liked, err = s.likes.LikedPostIDs(ctx, guildID, viewerID, ids)
		if err != nil {
			return nil, err
		}
	}

	views = make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, PostView{Post: p, IsLiked: liked[p.ID]})
	}
	return views, nil
}

// sortPosts orders pinned posts first, then newest first.
func sortPosts(posts []domain.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].IsPinned != posts[j].IsPinned {
			return posts[i].IsPinned
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

func (s *service) CreatePost(ctx context.Context, callerID, guildID string, input domain.NewPost) (view *PostView, err error) {
	ctx, span := startSpan(ctx, "CreatePost", attribute.String("guild.id", guildID))
	defer endSpan(span, &err)

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	input.GuildID = guildID
	input.AuthorID = callerID
	input.Normalize()
	if err := domain.Validate(input); err != nil {
		return nil, err
	}
	if _, err := s.requireGuild(ctx, guildID); err != nil {
		return nil, err
	}

	post, err := s.posts.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("post.id", post.ID))

	s.adjustCounter(ctx, counterAdjustment{
		counter: counterPostCount,
		guildID: guildID,
		postID:  post.ID,
		userID:  callerID,
		delta:   1,
		apply: func(ctx context.Context) error {
			return s.guilds.IncrementPostCount(ctx, guildID, 1)
		},
	})
	s.metrics.RecordPostCreated()
	s.publish(ctx, newEvent(domain.EventPostCreated, guildID, post.ID, callerID))
	s.invalidateGuildList(ctx)

	return &PostView{Post: *post}, nil
}

func (s *service) DeletePost(ctx context.Context, callerID, guildID, postID string) (err error) {
	ctx, span := startSpan(ctx, "DeletePost",
		attribute.String("guild.id", guildID),
		attribute.String("post.id", postID),
	)
	defer endSpan(span, &err)

	if err := requireCaller(callerID); err != nil {
		return err
	}
	post, err := s.requirePost(ctx, guildID, postID)
	if err != nil {
		return err
	}
	guild, err := s.guilds.GetByID(ctx, guildID)
	if err != nil {
		return err
	}
	if !s.access.CanDeletePost(post, guild, callerID) {
		return appErrors.NewForbiddenError("only the author, the guild owner or a moderator can delete this post")
	}

	deleted, err := s.posts.Delete(ctx, guildID, postID)
	if err != nil {
		return err
	}
	if !deleted {
		return appErrors.NewNotFoundError("post")
	}

	s.adjustCounter(ctx, counterAdjustment{
		counter: counterPostCount,
		guildID: guildID,
		postID:  postID,
		userID:  callerID,
		delta:   -1,
		apply: func(ctx context.Context) error {
			return s.guilds.IncrementPostCount(ctx, guildID, -1)
		},
	})
	s.metrics.RecordPostDeleted()
	s.publish(ctx, newEvent(domain.EventPostDeleted, guildID, postID, callerID))
	s.invalidateGuildList(ctx)

	s.logger.Info("Post deleted",
		zap.String("guild_id", guildID),
		zap.String("post_id", postID),
		zap.String("deleted_by", callerID),
	)
	return nil
}

func (s *service) requirePost(ctx context.Context, guildID, postID string) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, guildID, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, appErrors.NewNotFoundError("post")
	}
	return post, nil
}

func (s *service) ToggleLike(ctx context.Context, callerID, guildID, postID string) (result *LikeResult, err error) {
	ctx, span := startSpan(ctx, "ToggleLike",
		attribute.String("guild.id", guildID),
		attribute.String("post.id", postID),
	)
	defer endSpan(span, &err)

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	post, err := s.requirePost(ctx, guildID, postID)
	if err != nil {
		return nil, err
	}

	liked, err := s.likes.Toggle(ctx, guildID, postID, callerID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLikeToggle(liked)

	delta := int64(1)
	apply := func(ctx context.Context) error { return s.posts.IncrementLikes(ctx, guildID, postID) }
	if !liked {
		delta = -1
		apply = func(ctx context.Context) error { return s.posts.DecrementLikes(ctx, guildID, postID) }
	}
	s.adjustCounter(ctx, counterAdjustment{
		counter: counterLikes,
		guildID: guildID,
		postID:  postID,
		userID:  callerID,
		delta:   delta,
		apply:   apply,
	})

	likes := clampAdd(post.Likes, delta)
	if current, err := s.posts.GetByID(ctx, guildID, postID); err == nil && current != nil {
		likes = current.Likes
	}
	return &LikeResult{Liked: liked, Likes: likes}, nil
}

func (s *service) TogglePin(ctx context.Context, callerID, guildID, postID string) (result *PinResult, err error) {
	ctx, span := startSpan(ctx, "TogglePin",
		attribute.String("guild.id", guildID),
		attribute.String("post.id", postID),
	)
	defer endSpan(span, &err)

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	post, err := s.requirePost(ctx, guildID, postID)
	if err != nil {
		return nil, err
	}
	guild, err := s.requireGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanPin(guild, callerID) {
		s.metrics.RecordPinToggle("forbidden")
		return nil, appErrors.NewForbiddenError("only the guild owner can pin posts")
	}

	pinned, err := s.posts.TogglePin(ctx, guildID, postID, post.IsPinned)
	if err != nil {
		if appErrors.IsConflict(err) {
			s.metrics.RecordPinToggle("conflict")
		}
		return nil, err
	}
	s.metrics.RecordPinToggle("ok")
	return &PinResult{IsPinned: pinned}, nil
}
