// Command reconcile repairs denormalized counters. It is invoked by an
// EventBridge schedule and by CounterDriftSuspected events.
package main

import (
	"context"
	"log"

	"guildhall-backend/internal/config"
	"guildhall-backend/internal/di"
	"guildhall-backend/internal/reconcile"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var (
	job    *reconcile.Job
	logger *zap.Logger
)

func setup() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, _, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger = container.Logger

	namespace := cfg.Reconcile.CloudWatchNamespace
	job = reconcile.NewJob(container.Service, container.CloudWatch, namespace, logger)

	logger.Info("Reconcile handler initialized",
		zap.String("table", cfg.AWS.TableName),
		zap.String("metrics_namespace", namespace),
	)
}

// HandleRequest processes one EventBridge event.
func HandleRequest(ctx context.Context, event events.CloudWatchEvent) error {
	logger.Info("Processing event",
		zap.String("event_id", event.ID),
		zap.String("detail_type", event.DetailType),
	)
	_, err := job.Handle(ctx, event)
	return err
}

func main() {
	setup()
	lambda.Start(HandleRequest)
}
