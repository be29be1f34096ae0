//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"stackit/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideBoardMetrics,
	ProvideAuthority,
	ProvideTokenChecker,
	ProvideRegistry,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideLimiters,
	ProvideHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
