//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"guildhall-backend/internal/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideRepositoryConfig,
	ProvideRepositories,
	ProvidePublisher,
	ProvideMetrics,
	ProvideTracerProvider,
	ProvideCache,
	ProvidePolicyHolder,
	ProvidePolicyWatcher,
	ProvideGuildService,
	ProvideErrorHandler,
	ProvideAuthConfig,
	ProvideRateLimiter,
	ProvideHealthHandler,
	ProvideGuildHandler,
	ProvideAdminHandler,
	ProvideRouterConfig,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The cleanup releases
// resources in reverse order of creation.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
