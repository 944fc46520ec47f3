// Package policy decides whether a task's patch may auto-apply.
package policy

import (
	"fmt"
	"sort"
)

// RiskClass is the static impact category of a task
type RiskClass string

const (
	RiskLow    RiskClass = "low"
	RiskMedium RiskClass = "medium"
	RiskHigh   RiskClass = "high"
)

// Valid reports whether c is a known class
func (c RiskClass) Valid() bool {
	switch c {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ParseRiskClass validates a configured class name
func ParseRiskClass(s string) (RiskClass, error) {
	c := RiskClass(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown risk class %q", s)
	}
	return c, nil
}

// Decision is the disposition of a proposed patch
type Decision string

const (
	DecisionAuto           Decision = "auto"
	DecisionReviewRequired Decision = "review_required"
	DecisionBlocked        Decision = "blocked"
)

// DecisionFor maps a risk class onto its disposition. Unknown classes are
// treated as high.
func DecisionFor(c RiskClass) Decision {
	switch c {
	case RiskLow:
		return DecisionAuto
	case RiskMedium:
		return DecisionReviewRequired
	default:
		return DecisionBlocked
	}
}

// Override replaces the class of one task within one domain
type Override struct {
	Domain string    `yaml:"domain" json:"domain"`
	Task   string    `yaml:"task" json:"task"`
	Class  RiskClass `yaml:"class" json:"class"`
}

type overrideKey struct {
	domain string
	task   string
}

// RiskGate is an immutable lookup of task risk. It holds no mutable state
// and is safe for concurrent use.
type RiskGate struct {
	table        map[string]RiskClass
	defaultClass RiskClass
	overrides    map[overrideKey]RiskClass
}

// DefaultRiskTable classifies the built-in tasks
func DefaultRiskTable() map[string]RiskClass {
	return map[string]RiskClass{
		"add_component":        RiskLow,
		"connect":              RiskLow,
		"set_requirements":     RiskLow,
		"generate_wiring":      RiskLow,
		"remove_component":     RiskMedium,
		"replace_placeholders": RiskMedium,
	}
}

// NewRiskGate builds a gate. Unclassified tasks fall back to defaultClass,
// which may not be low: an unknown task is never auto-applied.
func NewRiskGate(table map[string]RiskClass, defaultClass RiskClass, overrides []Override) (*RiskGate, error) {
	if defaultClass == "" {
		defaultClass = RiskMedium
	}
	if !defaultClass.Valid() {
		return nil, fmt.Errorf("unknown default risk class %q", defaultClass)
	}
	if defaultClass == RiskLow {
		return nil, fmt.Errorf("default risk class must be %s or %s", RiskMedium, RiskHigh)
	}

	g := &RiskGate{
		table:        make(map[string]RiskClass, len(table)),
		defaultClass: defaultClass,
		overrides:    make(map[overrideKey]RiskClass, len(overrides)),
	}
	for task, c := range table {
		if !c.Valid() {
			return nil, fmt.Errorf("task %q: unknown risk class %q", task, c)
		}
		g.table[task] = c
	}
	for _, o := range overrides {
		if o.Domain == "" || o.Task == "" {
			return nil, fmt.Errorf("override requires domain and task")
		}
		if !o.Class.Valid() {
			return nil, fmt.Errorf("override %s/%s: unknown risk class %q", o.Domain, o.Task, o.Class)
		}
		g.overrides[overrideKey{o.Domain, o.Task}] = o.Class
	}
	return g, nil
}

// Classify returns the effective risk class of task in domain. An empty
// domain skips override lookup.
func (g *RiskGate) Classify(task, domain string) RiskClass {
	if domain != "" {
		if c, ok := g.overrides[overrideKey{domain, task}]; ok {
			return c
		}
	}
	if c, ok := g.table[task]; ok {
		return c
	}
	return g.defaultClass
}

// Decide returns the disposition for task in domain
func (g *RiskGate) Decide(task, domain string) Decision {
	return DecisionFor(g.Classify(task, domain))
}

// DefaultClass returns the class used for unclassified tasks
func (g *RiskGate) DefaultClass() RiskClass { return g.defaultClass }

// Tasks lists the classified task names in lexical order
func (g *RiskGate) Tasks() []string {
	out := make([]string, 0, len(g.table))
	for t := range g.table {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
