// Package reconcile runs counter reconciliation outside the request path. It
// handles the EventBridge schedule and CounterDriftSuspected events.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"guildhall-backend/internal/domain"
	"guildhall-backend/internal/events"
	"guildhall-backend/internal/service/guild"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-xray-sdk-go/xray"
	"go.uber.org/zap"
)

// ScheduledEventType is the detail type EventBridge uses for schedule rules.
const ScheduledEventType = "Scheduled Event"

const likesCounter = "likes"

// MetricsAPI is the subset of *cloudwatch.Client the job calls.
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Job reconciles counters for one trigger at a time.
type Job struct {
	service   guild.Service
	metrics   MetricsAPI
	namespace string
	logger    *zap.Logger
}

// NewJob creates a Job. Drift metrics go to CloudWatch only when both
// metrics and namespace are set.
func NewJob(service guild.Service, metrics MetricsAPI, namespace string, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{service: service, metrics: metrics, namespace: namespace, logger: logger}
}

// Handle dispatches an EventBridge event. Events this job does not own are
// skipped without error so a shared rule cannot poison the queue.
func (j *Job) Handle(ctx context.Context, event lambdaevents.CloudWatchEvent) (*guild.ReconcileReport, error) {
	switch event.DetailType {
	case ScheduledEventType:
		return j.run(ctx, "ReconcileAll", func(ctx context.Context) (*guild.ReconcileReport, error) {
			return j.service.ReconcileAll(ctx)
		})

	case domain.EventCounterDriftSuspected:
		if event.Source != "" && event.Source != events.Source {
			j.logger.Warn("Ignoring drift event from unexpected source", zap.String("source", event.Source))
			return &guild.ReconcileReport{}, nil
		}
		var detail domain.Event
		if err := json.Unmarshal(event.Detail, &detail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event detail: %w", err)
		}
		if detail.GuildID == "" {
			return nil, fmt.Errorf("drift event %s has no guild id", event.ID)
		}
		return j.reconcileDrift(ctx, detail)

	default:
		j.logger.Info("Skipping unrelated event", zap.String("detail_type", event.DetailType))
		return &guild.ReconcileReport{}, nil
	}
}

// reconcileDrift repairs only what the event names: the like counter of one
// post, or the guild counters.
func (j *Job) reconcileDrift(ctx context.Context, detail domain.Event) (*guild.ReconcileReport, error) {
	if detail.Counter == likesCounter && detail.PostID != "" {
		return j.run(ctx, "ReconcilePost", func(ctx context.Context) (*guild.ReconcileReport, error) {
			return j.service.ReconcilePost(ctx, detail.GuildID, detail.PostID)
		})
	}
	return j.run(ctx, "ReconcileGuild", func(ctx context.Context) (*guild.ReconcileReport, error) {
		return j.service.ReconcileGuild(ctx, detail.GuildID, false)
	})
}

func (j *Job) run(ctx context.Context, name string, fn func(ctx context.Context) (*guild.ReconcileReport, error)) (*guild.ReconcileReport, error) {
	var report *guild.ReconcileReport
	start := time.Now()

	err := xray.Capture(ctx, name, func(ctx context.Context) error {
		var err error
		report, err = fn(ctx)
		if report != nil {
			_ = xray.AddAnnotation(ctx, "drifts", len(report.Drifts))
		}
		return err
	})

	fields := []zap.Field{
		zap.String("operation", name),
		zap.Duration("duration", time.Since(start)),
	}
	if report != nil {
		fields = append(fields,
			zap.Int("guilds_checked", report.GuildsChecked),
			zap.Int("posts_checked", report.PostsChecked),
			zap.Int("drifts", len(report.Drifts)),
		)
		j.putDriftMetrics(ctx, report)
	}
	if err != nil {
		j.logger.Error("Reconciliation failed", append(fields, zap.Error(err))...)
		return report, err
	}
	j.logger.Info("Reconciliation completed", fields...)
	return report, nil
}

// putDriftMetrics publishes one CounterDrift and one CounterRepaired datum
// per counter. Failures are logged and never fail the job.
func (j *Job) putDriftMetrics(ctx context.Context, report *guild.ReconcileReport) {
	if j.metrics == nil || j.namespace == "" {
		return
	}

	drifted := map[string]int{}
	repaired := map[string]int{}
	for _, d := range report.Drifts {
		drifted[d.Counter]++
		if d.Repaired {
			repaired[d.Counter]++
		}
	}

	now := time.Now()
	data := []types.MetricDatum{
		{
			MetricName: aws.String("GuildsChecked"),
			Value:      aws.Float64(float64(report.GuildsChecked)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
	}
	for counter, n := range drifted {
		data = append(data,
			counterDatum("CounterDrift", counter, n, now),
			counterDatum("CounterRepaired", counter, repaired[counter], now),
		)
	}

	if _, err := j.metrics.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(j.namespace),
		MetricData: data,
	}); err != nil {
		j.logger.Warn("Failed to send drift metrics", zap.Error(err))
	}
}

func counterDatum(name, counter string, value int, at time.Time) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: []types.Dimension{
			{
				Name:  aws.String("Counter"),
				Value: aws.String(counter),
			},
		},
		Value:     aws.Float64(float64(value)),
		Unit:      types.StandardUnitCount,
		Timestamp: aws.Time(at),
	}
}
