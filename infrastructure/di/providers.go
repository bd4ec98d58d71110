// Package di wires the application's dependencies together.
package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/danilohgds/f-system/application/ports"
	"github.com/danilohgds/f-system/application/services"
	"github.com/danilohgds/f-system/infrastructure/config"
	"github.com/danilohgds/f-system/infrastructure/persistence/dynamodb"
	"github.com/danilohgds/f-system/infrastructure/persistence/memory"
	"github.com/danilohgds/f-system/infrastructure/persistence/resilience"
	"github.com/danilohgds/f-system/interfaces/websocket"
	"github.com/danilohgds/f-system/pkg/auth"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	NodeRepo  ports.NodeRepository
	Hub       *websocket.Hub
	WSServer  *websocket.Server
	Validator *auth.Validator
	Tree      *services.TreeService
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideNodeRepository creates the node repository behind its circuit
// breaker. The in-memory store is available for local development.
func ProvideNodeRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.NodeRepository {
	if cfg.UseMemoryStore {
		logger.Warn("Using in-memory node store; data will not persist")
		return memory.NewNodeStore()
	}

	repo := dynamodb.NewNodeRepository(
		client,
		cfg.DynamoDBTable,
		cfg.ItemIDIndexName,
		cfg.PathIndexName,
		logger,
	)
	return resilience.NewBreakerRepository(repo, logger)
}

// ProvideHub creates the fan-out hub; the caller starts its loop.
func ProvideHub(logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(logger)
}

// ProvideEventPublisher adapts the hub to the publisher port
func ProvideEventPublisher(hub *websocket.Hub, logger *zap.Logger) ports.EventPublisher {
	return websocket.NewBroadcaster(hub, logger)
}

// ProvideTreeService creates the tree consistency engine
func ProvideTreeService(repo ports.NodeRepository, publisher ports.EventPublisher, logger *zap.Logger) *services.TreeService {
	return services.NewTreeService(repo, publisher, logger)
}

// ProvideAuthValidator creates the token validator
func ProvideAuthValidator(cfg *config.Config) *auth.Validator {
	return auth.NewValidator(cfg.JWTSecret, cfg.JWTIssuer)
}

// ProvideWebSocketServer creates the WebSocket upgrade server
func ProvideWebSocketServer(hub *websocket.Hub, logger *zap.Logger) *websocket.Server {
	return websocket.NewServer(hub, logger)
}
