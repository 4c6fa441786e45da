package guild

import (
	"context"

	"guildhall-backend/internal/domain"
	"guildhall-backend/internal/repository"
	appErrors "guildhall-backend/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func (s *service) AuthorizeReconcile(callerID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if !s.access.CanReconcile(callerID) {
		return appErrors.NewForbiddenError("reconciliation is restricted to moderators")
	}
	return nil
}

// ReconcileGuild recounts the guild's member and post rows and, when
// includePosts is set, the like rows of each post. Stored counters that
// differ are overwritten with compare-and-set.
func (s *service) ReconcileGuild(ctx context.Context, guildID string, includePosts bool) (report *ReconcileReport, err error) {
	ctx, span := startSpan(ctx, "ReconcileGuild", attribute.String("guild.id", guildID))
	defer endSpan(span, &err)

	guild, err := s.requireGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	report = &ReconcileReport{GuildsChecked: 1}

	members, err := s.reconciler.CountMembers(ctx, guildID)
	if err != nil {
		return nil, err
	}
	posts, err := s.reconciler.CountPosts(ctx, guildID)
	if err != nil {
		return nil, err
	}

	stored := repository.GuildCounters{MemberCount: guild.MemberCount, PostCount: guild.PostCount}
	actual := repository.GuildCounters{MemberCount: members, PostCount: posts}
	if stored != actual {
		applied, err := s.reconciler.SetGuildCounters(ctx, guildID, stored, actual)
		if err != nil {
			return nil, err
		}
		if stored.MemberCount != actual.MemberCount {
			report.Drifts = append(report.Drifts, s.drift("guild", guildID, counterMemberCount, stored.MemberCount, actual.MemberCount, applied))
		}
		if stored.PostCount != actual.PostCount {
			report.Drifts = append(report.Drifts, s.drift("guild", guildID, counterPostCount, stored.PostCount, actual.PostCount, applied))
		}
		if applied {
			s.invalidateGuildList(ctx)
		}
	}

	if includePosts {
		postRows, err := s.posts.GetByGuild(ctx, guildID)
		if err != nil {
			return nil, err
		}
		for i := range postRows {
			postReport, err := s.reconcilePost(ctx, &postRows[i])
			if err != nil {
				return nil, err
			}
			report.merge(postReport)
		}
	}

	span.SetAttributes(attribute.Int("drifts", len(report.Drifts)))
	return report, nil
}

func (s *service) ReconcilePost(ctx context.Context, guildID, postID string) (report *ReconcileReport, err error) {
	ctx, span := startSpan(ctx, "ReconcilePost",
		attribute.String("guild.id", guildID),
		attribute.String("post.id", postID),
	)
	defer endSpan(span, &err)

	post, err := s.requirePost(ctx, guildID, postID)
	if err != nil {
		return nil, err
	}
	return s.reconcilePost(ctx, post)
}

func (s *service) reconcilePost(ctx context.Context, post *domain.Post) (*ReconcileReport, error) {
	report := &ReconcileReport{PostsChecked: 1}

	likes, err := s.reconciler.CountLikes(ctx, post.GuildID, post.ID)
	if err != nil {
		return nil, err
	}
	if likes == post.Likes {
		return report, nil
	}

	applied, err := s.reconciler.SetPostLikes(ctx, post.GuildID, post.ID, post.Likes, likes)
	if err != nil {
		return nil, err
	}
	report.Drifts = append(report.Drifts, s.drift("post", post.ID, counterLikes, post.Likes, likes, applied))
	return report, nil
}

func (s *service) drift(entity, id, counter string, stored, actual int64, repaired bool) CounterDrift {
	s.logger.Warn("Counter drift detected",
		zap.String("entity", entity),
		zap.String("id", id),
		zap.String("counter", counter),
		zap.Int64("stored", stored),
		zap.Int64("actual", actual),
		zap.Bool("repaired", repaired),
	)
	if repaired {
		s.metrics.RecordCounterRepair(counter)
	}
	return CounterDrift{
		Entity:   entity,
		ID:       id,
		Counter:  counter,
		Stored:   stored,
		Actual:   actual,
		Repaired: repaired,
	}
}

// ReconcileAll walks every guild. Guilds deleted during the walk are
// skipped; any other error stops the walk and is returned with the partial
// report.
func (s *service) ReconcileAll(ctx context.Context) (report *ReconcileReport, err error) {
	ctx, span := startSpan(ctx, "ReconcileAll")
	defer endSpan(span, &err)

	report = &ReconcileReport{}
	err = s.reconciler.ListGuildIDs(ctx, func(ids []string) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			guildReport, err := s.ReconcileGuild(ctx, id, true)
			if err != nil {
				if appErrors.IsNotFound(err) {
					continue
				}
				return err
			}
			report.merge(guildReport)
		}
		return nil
	})

	s.logger.Info("Reconciliation pass finished",
		zap.Int("guilds_checked", report.GuildsChecked),
		zap.Int("posts_checked", report.PostsChecked),
		zap.Int("drifts", len(report.Drifts)),
		zap.Error(err),
	)
	return report, err
}
