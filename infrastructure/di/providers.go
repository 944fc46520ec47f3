package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"designgraph/application/commands/bus"
	commandhandlers "designgraph/application/commands/handlers"
	"designgraph/application/orchestrator"
	"designgraph/application/ports"
	querybus "designgraph/application/queries/bus"
	queryhandlers "designgraph/application/queries/handlers"
	"designgraph/application/router"
	"designgraph/application/selection"
	"designgraph/application/tools"
	"designgraph/infrastructure/config"
	"designgraph/infrastructure/messaging"
	"designgraph/infrastructure/messaging/eventbridge"
	"designgraph/infrastructure/persistence"
	"designgraph/infrastructure/persistence/dynamodb"
	"designgraph/infrastructure/persistence/memory"
	"designgraph/infrastructure/persistence/sqlite"
	"designgraph/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}

// ProvideMetrics creates the metrics collector
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("designgraph")
}

// ProvidePolicy loads the startup policy
func ProvidePolicy(cfg *config.Config) (*config.Policy, error) {
	return cfg.DomainPolicy()
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

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideGraphStore creates the graph store selected by STORE_BACKEND.
// The cleanup closes the SQLite database when one was opened.
func ProvideGraphStore(ctx context.Context, cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (ports.GraphStore, func(), error) {
	opts := []persistence.Option{persistence.WithLedgerDedup(cfg.LedgerDedup)}
	logger.Info("Graph store selected",
		zap.String("backend", cfg.StoreBackend),
		zap.Bool("ledgerDedup", cfg.LedgerDedup))

	switch cfg.StoreBackend {
	case config.StoreMemory:
		return memory.NewGraphStore(logger, opts...), func() {}, nil

	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath, logger, opts...)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close sqlite store", zap.Error(err))
			}
		}
		return store, cleanup, nil

	case config.StoreDynamoDB:
		return dynamodb.NewGraphStore(client, cfg.DynamoDBTable, logger, opts...), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// ProvideEventPublisher creates the EventBridge publisher, or a log-only
// publisher when events are disabled
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return messaging.NewLogPublisher(logger)
	}
	return eventbridge.NewEventBridgePublisher(client, cfg.EventBusName, logger)
}

// ProvideCatalogSelector creates the catalog selector from the policy catalog
func ProvideCatalogSelector(pol *config.Policy) *selection.CatalogSelector {
	return selection.NewCatalogSelector(pol.Catalog)
}

// ProvideComponentSelector guards the catalog with a circuit breaker
func ProvideComponentSelector(catalog *selection.CatalogSelector, logger *zap.Logger) ports.ComponentSelector {
	return selection.NewBreakerSelector(catalog, selection.DefaultBreakerConfig(), logger)
}

// ProvideRouter creates the task router with every built-in tool
func ProvideRouter(pol *config.Policy, logger *zap.Logger) (*router.Router, error) {
	registry, err := tools.NewRegistry()
	if err != nil {
		return nil, err
	}
	gate, err := router.NewPhaseGate(pol.Domain.Phase, pol.Domain.Phases)
	if err != nil {
		return nil, err
	}
	return router.New(registry, gate, logger), nil
}

// ProvideOrchestrator creates the orchestrator
func ProvideOrchestrator(
	store ports.GraphStore,
	rt *router.Router,
	selector ports.ComponentSelector,
	publisher ports.EventPublisher,
	pol *config.Policy,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*orchestrator.Orchestrator, error) {
	gate, err := pol.Domain.RiskGate()
	if err != nil {
		return nil, err
	}
	return orchestrator.New(store, rt, selector, publisher, orchestrator.Config{
		RiskGate:     gate,
		Budget:       pol.Domain.Budget,
		DefaultLayer: pol.Domain.DefaultLayer,
	}, metrics, logger), nil
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(orch *orchestrator.Orchestrator, metrics *observability.Collector, logger *zap.Logger) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	)
	if err := commandhandlers.NewSessionHandlers(orch).Register(commandBus); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(store ports.GraphStore, pol *config.Policy, metrics *observability.Collector, logger *zap.Logger) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(
		querybus.LoggingMiddleware(logger),
		querybus.MetricsMiddleware(metrics),
	)
	if err := queryhandlers.NewGraphHandlers(store, pol.Domain.DefaultLayer, logger).Register(queryBus); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvidePolicyApplier creates the applier that pushes reloaded policy
// into the running components
func ProvidePolicyApplier(rt *router.Router, orch *orchestrator.Orchestrator, catalog *selection.CatalogSelector, logger *zap.Logger) *PolicyApplier {
	return NewPolicyApplier(rt, orch, catalog, logger)
}

// ProvidePolicyWatcher starts watching POLICY_FILE when WATCH_POLICY is set.
// It returns nil otherwise.
func ProvidePolicyWatcher(cfg *config.Config, applier *PolicyApplier, logger *zap.Logger) (*config.PolicyWatcher, func(), error) {
	if !cfg.WatchPolicy {
		return nil, func() {}, nil
	}

	base := cfg.BaseDomainConfig()
	watcher, err := config.NewPolicyWatcher(cfg.PolicyFile, base, time.Duration(cfg.PolicyDebounceMS)*time.Millisecond, logger)
	if err != nil {
		return nil, nil, err
	}
	watcher.OnChange(func(p *config.Policy) {
		if cfg.WorkflowPhase != "" {
			p.Domain.Phase = cfg.WorkflowPhase
		}
		if err := applier.Apply(p); err != nil {
			logger.Error("Failed to apply reloaded policy", zap.Error(err))
		}
	})
	watcher.Start()

	return watcher, watcher.Stop, nil
}
