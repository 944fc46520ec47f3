package router

import (
	"fmt"

	domainconfig "designgraph/domain/config"
)

// PhaseGate restricts tasks to those allowed in the current workflow phase.
// It is immutable once built.
type PhaseGate struct {
	phase string
	any   bool
	allow map[string]struct{}
}

// NewPhaseGate builds the gate for phase from per-phase allow-lists.
// An allow-list containing "*" permits every task.
func NewPhaseGate(phase string, phases map[string][]string) (*PhaseGate, error) {
	tasks, ok := phases[phase]
	if !ok {
		return nil, fmt.Errorf("unknown workflow phase %q", phase)
	}
	g := &PhaseGate{phase: phase, allow: make(map[string]struct{}, len(tasks))}
	for _, t := range tasks {
		if t == domainconfig.AnyTask {
			g.any = true
			continue
		}
		g.allow[t] = struct{}{}
	}
	return g, nil
}

// Phase returns the gated phase name
func (g *PhaseGate) Phase() string { return g.phase }

// Allows reports whether task may run in this phase
func (g *PhaseGate) Allows(task string) bool {
	if g.any {
		return true
	}
	_, ok := g.allow[task]
	return ok
}
