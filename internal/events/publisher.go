// Package events publishes guild facts to EventBridge.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"guildhall-backend/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source is the EventBridge source of every event this service emits.
const Source = "guildhall.guilds"

// maxBatch is the PutEvents entry limit.
const maxBatch = 10

// Publisher sends events somewhere. Publishing is best effort for callers:
// a failed publish never undoes the write that produced the event.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}

// PutEventsAPI is the subset of *eventbridge.Client the publisher calls.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgePublisher implements Publisher using AWS EventBridge.
type EventBridgePublisher struct {
	client   PutEventsAPI
	eventBus string
	source   string
	logger   *zap.Logger
}

// NewEventBridgePublisher creates a new EventBridge publisher.
func NewEventBridgePublisher(client PutEventsAPI, eventBus string, logger *zap.Logger) *EventBridgePublisher {
	if eventBus == "" {
		eventBus = "default"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBridgePublisher{client: client, eventBus: eventBus, source: Source, logger: logger}
}

// Publish sends events in batches of ten.
func (p *EventBridgePublisher) Publish(ctx context.Context, events ...domain.Event) error {
	for i := 0; i < len(events); i += maxBatch {
		end := i + maxBatch
		if end > len(events) {
			end = len(events)
		}
		if err := p.publishBatch(ctx, events[i:end]); err != nil {
			return fmt.Errorf("failed to publish event batch: %w", err)
		}
	}
	return nil
}

func (p *EventBridgePublisher) publishBatch(ctx context.Context, events []domain.Event) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(events))
	for _, event := range events {
		entry, err := p.entry(event)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	output, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to put events: %w", err)
	}
	if output.FailedEntryCount > 0 {
		for _, result := range output.Entries {
			if result.ErrorCode != nil {
				p.logger.Warn("EventBridge rejected entry",
					zap.String("error_code", aws.ToString(result.ErrorCode)),
					zap.String("error_message", aws.ToString(result.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", output.FailedEntryCount)
	}
	return nil
}

func (p *EventBridgePublisher) entry(event domain.Event) (types.PutEventsRequestEntry, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	detail, err := json.Marshal(event)
	if err != nil {
		return types.PutEventsRequestEntry{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return types.PutEventsRequestEntry{
		EventBusName: aws.String(p.eventBus),
		Source:       aws.String(p.source),
		DetailType:   aws.String(event.Type),
		Detail:       aws.String(string(detail)),
		Time:         aws.Time(event.OccurredAt),
		Resources:    []string{event.GuildID},
	}, nil
}

// LogPublisher writes events to the log. It is used when no event bus is
// configured, for example in local development.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, events ...domain.Event) error {
	for _, event := range events {
		p.logger.Info("Event",
			zap.String("event_type", event.Type),
			zap.String("guild_id", event.GuildID),
			zap.String("post_id", event.PostID),
			zap.String("user_id", event.UserID),
		)
	}
	return nil
}
