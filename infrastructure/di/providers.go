package di

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"stackit/application/board"
	"stackit/application/commands/bus"
	commandhandlers "stackit/application/commands/handlers"
	"stackit/application/ports"
	"stackit/application/queries"
	querybus "stackit/application/queries/bus"
	"stackit/infrastructure/authority"
	"stackit/infrastructure/config"
	"stackit/infrastructure/identity"
	"stackit/infrastructure/messaging"
	"stackit/interfaces/http/rest"
	"stackit/pkg/auth"
	"stackit/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.Environment, cfg.LogLevel)
}

// ProvideAWSConfig creates AWS configuration. Credentials are resolved lazily
// so this succeeds on machines without AWS access.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideEventPublisher publishes to EventBridge when EVENT_BUS_NAME is set
// and to the log otherwise
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return messaging.NewLogPublisher(logger.Named("events"))
	}
	return messaging.NewEventBridgePublisher(client, cfg.EventBusName, logger)
}

// ProvideMetrics creates the Prometheus metrics, or nil when disabled
func ProvideMetrics(cfg *config.Config) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetrics()
}

// ProvideBoardMetrics adapts the optional metrics to the board port
func ProvideBoardMetrics(metrics *observability.Metrics) ports.Metrics {
	if metrics == nil {
		return ports.NoopMetrics{}
	}
	return metrics
}

// ProvideAuthority creates the HTTP authority client
func ProvideAuthority(cfg *config.Config, logger *zap.Logger) (ports.Authority, error) {
	return authority.NewHTTPClient(authority.ClientConfig{
		BaseURL: cfg.AuthorityBaseURL,
		Timeout: cfg.AuthorityTimeout,
		Breaker: authority.DefaultBreakerConfig("authority"),
		Tracing: cfg.EnableTracing,
	}, logger.Named("authority"))
}

// ProvideTokenChecker creates the checker used by session identities
func ProvideTokenChecker(cfg *config.Config) *auth.TokenChecker {
	return auth.NewTokenChecker(cfg.JWTSecret)
}

// ProvideRegistry creates the session registry; every session gets its own
// board and identity
func ProvideRegistry(
	authorityClient ports.Authority,
	checker *auth.TokenChecker,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *board.Registry {
	domain := cfg.Domain()
	factory := func() (*board.Board, board.MutableIdentity) {
		id := identity.NewSession(checker)
		b := board.New(authorityClient, id, board.Options{
			Config:            domain,
			Logger:            logger.Named("board"),
			Publisher:         publisher,
			Metrics:           metrics,
			ReconcileInterval: cfg.ReconcileInterval,
		})
		return b, id
	}
	return board.NewRegistry(factory, cfg.SessionTTL, logger.Named("sessions"))
}

// ProvideCommandBus creates the command bus with every board command registered
func ProvideCommandBus(registry *board.Registry, logger *zap.Logger) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(bus.LoggingMiddleware(logger.Named("commands")))
	if err := commandhandlers.NewBoardHandlers(registry, logger).Register(commandBus); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus
func ProvideQueryBus(registry *board.Registry) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	if err := queryBus.Register(queries.GetBoardQuery{}, queries.NewGetBoardHandler(registry)); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideLimiters keeps rate limit counters in DynamoDB when RATE_LIMIT_TABLE
// is set and in memory otherwise
func ProvideLimiters(ctx context.Context, client *awsdynamodb.Client, cfg *config.Config) rest.Limiters {
	var store auth.RateLimiter
	if cfg.RateLimitTable != "" {
		store = auth.NewDistributedRateLimiter(client, cfg.RateLimitTable, cfg.RateLimitPerMinute, time.Minute)
	} else {
		local := auth.NewSlidingWindowLimiter(cfg.RateLimitPerMinute, time.Minute)
		go local.Run(ctx, 5*time.Minute)
		store = local
	}
	return rest.Limiters{
		IP:        auth.NewIPRateLimiter(store),
		Session:   auth.NewSessionRateLimiter(store),
		PerMinute: cfg.RateLimitPerMinute,
	}
}

// ProvideHandler builds the gateway's HTTP handler
func ProvideHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	registry *board.Registry,
	limiters rest.Limiters,
	metrics *observability.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(commandBus, queryBus, registry, limiters, metrics, cfg, logger).Setup()
}
