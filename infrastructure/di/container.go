package di

import (
	"go.uber.org/zap"

	"designgraph/application/commands/bus"
	"designgraph/application/orchestrator"
	"designgraph/application/ports"
	querybus "designgraph/application/queries/bus"
	"designgraph/infrastructure/config"
	"designgraph/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Collector
	Store         ports.GraphStore
	Orchestrator  *orchestrator.Orchestrator
	CommandBus    *bus.CommandBus
	QueryBus      *querybus.QueryBus
	Applier       *PolicyApplier
	PolicyWatcher *config.PolicyWatcher
}
