package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"designgraph/application/ports"
	"designgraph/domain/budget"
	domainconfig "designgraph/domain/config"
	"designgraph/domain/policy"
)

// Policy is the runtime-changeable part of the configuration
type Policy struct {
	Domain  *domainconfig.DomainConfig
	Catalog []ports.Candidate
}

// policyFile is the YAML shape of POLICY_FILE. Omitted keys keep the
// environment defaults; risk_table entries are merged over the defaults.
type policyFile struct {
	Phase            string                      `yaml:"phase"`
	Phases           map[string][]string         `yaml:"phases"`
	RiskTable        map[string]policy.RiskClass `yaml:"risk_table"`
	DefaultRiskClass policy.RiskClass            `yaml:"default_risk_class"`
	Overrides        []policy.Override           `yaml:"overrides"`
	Budget           *budget.Policy              `yaml:"budget"`
	DefaultLayer     string                      `yaml:"default_layer"`
	Catalog          []ports.Candidate           `yaml:"catalog"`
}

// LoadPolicy reads the policy file at path and overlays it on base.
// base is not modified.
func LoadPolicy(path string, base *domainconfig.DomainConfig) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data, base)
}

// ParsePolicy decodes and validates a policy document
func ParsePolicy(data []byte, base *domainconfig.DomainConfig) (*Policy, error) {
	var pf policyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	dc := base.Clone()
	if pf.Phase != "" {
		dc.Phase = pf.Phase
	}
	if len(pf.Phases) > 0 {
		dc.Phases = pf.Phases
	}
	for task, class := range pf.RiskTable {
		dc.RiskTable[task] = class
	}
	if pf.DefaultRiskClass != "" {
		dc.DefaultRiskClass = pf.DefaultRiskClass
	}
	if pf.Overrides != nil {
		dc.Overrides = pf.Overrides
	}
	if pf.Budget != nil {
		dc.Budget = *pf.Budget
	}
	if pf.DefaultLayer != "" {
		dc.DefaultLayer = pf.DefaultLayer
	}

	if err := dc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	for i, c := range pf.Catalog {
		if c.ComponentRef == "" {
			return nil, fmt.Errorf("invalid policy: catalog entry %d has no component_ref", i)
		}
	}

	return &Policy{Domain: dc, Catalog: pf.Catalog}, nil
}
