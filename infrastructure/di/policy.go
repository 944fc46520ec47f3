package di

import (
	"fmt"

	"go.uber.org/zap"

	"designgraph/application/orchestrator"
	"designgraph/application/router"
	"designgraph/application/selection"
	"designgraph/infrastructure/config"
)

// PolicyApplier pushes a reloaded policy into the router, orchestrator
// and catalog. The default layer is fixed at startup.
type PolicyApplier struct {
	router       *router.Router
	orchestrator *orchestrator.Orchestrator
	catalog      *selection.CatalogSelector
	logger       *zap.Logger
}

// NewPolicyApplier creates a PolicyApplier
func NewPolicyApplier(rt *router.Router, orch *orchestrator.Orchestrator, catalog *selection.CatalogSelector, logger *zap.Logger) *PolicyApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyApplier{router: rt, orchestrator: orch, catalog: catalog, logger: logger}
}

// Apply builds every gate first and swaps them only when all succeed
func (a *PolicyApplier) Apply(p *config.Policy) error {
	phaseGate, err := router.NewPhaseGate(p.Domain.Phase, p.Domain.Phases)
	if err != nil {
		return fmt.Errorf("phase gate: %w", err)
	}
	riskGate, err := p.Domain.RiskGate()
	if err != nil {
		return fmt.Errorf("risk gate: %w", err)
	}

	a.router.SetPhaseGate(phaseGate)
	a.orchestrator.UpdatePolicy(riskGate, p.Domain.Budget)
	a.catalog.SetCatalog(p.Catalog)

	a.logger.Info("Policy applied",
		zap.String("phase", p.Domain.Phase),
		zap.Int("catalogSize", len(p.Catalog)))
	return nil
}
