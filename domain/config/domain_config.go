package config

import (
	"fmt"

	"designgraph/domain/budget"
	"designgraph/domain/policy"
)

// AnyTask in a phase allow-list permits every task
const AnyTask = "*"

// Workflow phases
const (
	PhaseSetup       = "setup"
	PhaseProposal    = "proposal"
	PhaseMaterialize = "materialize"
)

// DomainConfig holds the configurable business rules of the kernel
type DomainConfig struct {
	// Workflow gating
	Phase  string              `yaml:"phase"`
	Phases map[string][]string `yaml:"phases"`

	// Risk classification
	RiskTable        map[string]policy.RiskClass `yaml:"risk_table"`
	DefaultRiskClass policy.RiskClass            `yaml:"default_risk_class"`
	Overrides        []policy.Override           `yaml:"overrides"`

	// Pre-flight limits
	Budget budget.Policy `yaml:"budget"`

	// Layer used when a task request names none
	DefaultLayer string `yaml:"default_layer"`
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		Phase: PhaseProposal,
		Phases: map[string][]string{
			PhaseSetup:       {"set_requirements", "add_component", "connect", "remove_component"},
			PhaseProposal:    {AnyTask},
			PhaseMaterialize: {"replace_placeholders", "generate_wiring", "set_requirements"},
		},
		RiskTable:        policy.DefaultRiskTable(),
		DefaultRiskClass: policy.RiskMedium,
		Budget:           budget.DefaultPolicy(),
		DefaultLayer:     "all",
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Unknown tasks are refused outright in production
	config.DefaultRiskClass = policy.RiskHigh
	config.Budget.SoftNodeLimit = 300
	config.Budget.HardNodeLimit = 1000

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.Budget.SoftNodeLimit = 5000
	config.Budget.HardNodeLimit = 20000
	config.Budget.SoftSizeLimit = 4 * 1024 * 1024
	config.Budget.HardSizeLimit = 16 * 1024 * 1024

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.Phase == "" {
		return fmt.Errorf("workflow phase is required")
	}
	if _, ok := c.Phases[c.Phase]; !ok {
		return fmt.Errorf("workflow phase %q has no allow-list", c.Phase)
	}
	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	if _, err := c.RiskGate(); err != nil {
		return fmt.Errorf("risk policy: %w", err)
	}
	return nil
}

// RiskGate builds the gate described by the configuration
func (c *DomainConfig) RiskGate() (*policy.RiskGate, error) {
	return policy.NewRiskGate(c.RiskTable, c.DefaultRiskClass, c.Overrides)
}

// Clone returns a deep copy
func (c *DomainConfig) Clone() *DomainConfig {
	cp := *c
	cp.Phases = make(map[string][]string, len(c.Phases))
	for p, tasks := range c.Phases {
		cp.Phases[p] = append([]string(nil), tasks...)
	}
	cp.RiskTable = make(map[string]policy.RiskClass, len(c.RiskTable))
	for t, rc := range c.RiskTable {
		cp.RiskTable[t] = rc
	}
	cp.Overrides = append([]policy.Override(nil), c.Overrides...)
	return &cp
}
