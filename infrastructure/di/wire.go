//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/danilohgds/f-system/infrastructure/config"
)

// SuperSet is the complete provider set for the application
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideNodeRepository,
	ProvideHub,
	ProvideEventPublisher,
	ProvideTreeService,
	ProvideAuthValidator,
	ProvideWebSocketServer,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer builds the full dependency graph
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
