//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"designgraph/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvidePolicy,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideGraphStore,
	ProvideEventPublisher,
	ProvideCatalogSelector,
	ProvideComponentSelector,
	ProvideRouter,
	ProvideOrchestrator,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvidePolicyApplier,
	ProvidePolicyWatcher,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
