// Package di wires the application with google/wire. wire.go declares the
// injector, wire_gen.go is the generated code and providers.go holds the
// provider functions both use.
package di

import (
	"guildhall-backend/internal/access"
	"guildhall-backend/internal/cache"
	"guildhall-backend/internal/config"
	"guildhall-backend/internal/events"
	"guildhall-backend/internal/observability"
	"guildhall-backend/internal/repository/ddb"
	"guildhall-backend/internal/service/guild"

	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Repositories  *ddb.Repositories
	Service       guild.Service
	Cache         cache.Cache
	Publisher     events.Publisher
	Metrics       *observability.Collector
	Tracer        *observability.TracerProvider
	Policy        *access.Holder
	PolicyWatcher *config.PolicyWatcher
	CloudWatch    *awscloudwatch.Client
	Router        *chi.Mux
}
