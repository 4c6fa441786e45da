package guild

import (
	"context"
	"errors"
	"strings"

	"guildhall-backend/internal/domain"
	"guildhall-backend/internal/repository"
	appErrors "guildhall-backend/pkg/errors"

	"go.uber.org/zap"
)

// Counter names used in logs, metrics and drift events.
const (
	counterMemberCount = "memberCount"
	counterPostCount   = "postCount"
	counterLikes       = "likes"
)

// counterAdjustment describes the counter write that follows a row write.
type counterAdjustment struct {
	counter string
	guildID string
	postID  string
	userID  string
	delta   int64
	apply   func(ctx context.Context) error
}

// adjustCounter runs the counter write. The row it follows is already
// committed, so a failure is not returned: it is logged, counted and
// published as CounterDriftSuspected for the reconciler. It reports whether
// the counter was adjusted.
func (s *service) adjustCounter(ctx context.Context, adj counterAdjustment) bool {
	err := adj.apply(ctx)
	if err == nil {
		return true
	}

	fields := []zap.Field{
		zap.String("counter", adj.counter),
		zap.String("guild_id", adj.guildID),
		zap.String("post_id", adj.postID),
		zap.Int64("delta", adj.delta),
		zap.Error(err),
	}

	reason := driftReason(err)
	if errors.Is(err, repository.ErrCounterUnderflow) {
		s.logger.Error("Counter invariant violated: decrement below zero refused", fields...)
	} else {
		s.logger.Error("Counter adjustment failed after row write", fields...)
	}
	s.metrics.RecordCounterDrift(adj.counter, reason)

	event := newEvent(domain.EventCounterDriftSuspected, adj.guildID, adj.postID, adj.userID)
	event.Counter = adj.counter
	event.Delta = adj.delta
	s.publish(ctx, event)
	return false
}

func driftReason(err error) string {
	if errors.Is(err, repository.ErrCounterUnderflow) {
		return "underflow"
	}
	if appErr := appErrors.GetAppError(err); appErr != nil {
		return strings.ToLower(string(appErr.Type))
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unknown"
}

// clampAdd adds delta to v without going below zero.
func clampAdd(v, delta int64) int64 {
	if v+delta < 0 {
		return 0
	}
	return v + delta
}
