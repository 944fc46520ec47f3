// Package router dispatches named tasks to deterministic tools under
// workflow phase gating.
package router

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"designgraph/domain/core/entities"
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/patch"
	pkgerrors "designgraph/pkg/errors"
)

// TaskReplacePlaceholders is the composite task whose candidates are
// resolved by the orchestrator before packaging
const TaskReplacePlaceholders = "replace_placeholders"

// Router maps task names onto registered tools
type Router struct {
	registry *Registry
	gate     atomic.Pointer[PhaseGate]
	logger   *zap.Logger
}

// New creates a router over registry gated by gate
func New(registry *Registry, gate *PhaseGate, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{registry: registry, logger: logger}
	r.gate.Store(gate)
	return r
}

// SetPhaseGate swaps the phase gate, e.g. after a policy reload
func (r *Router) SetPhaseGate(gate *PhaseGate) {
	r.gate.Store(gate)
	r.logger.Info("Phase gate updated", zap.String("phase", gate.Phase()))
}

// Phase returns the current workflow phase
func (r *Router) Phase() string {
	return r.gate.Load().Phase()
}

// Supports reports whether task is known to the router
func (r *Router) Supports(task string) bool {
	if task == TaskReplacePlaceholders {
		return true
	}
	_, ok := r.registry.Lookup(task)
	return ok
}

// CheckTask fails with UNSUPPORTED_TASK for unknown tasks and with
// PHASE_VIOLATION for tasks outside the current phase
func (r *Router) CheckTask(task string) error {
	if !r.Supports(task) {
		return pkgerrors.NewUnsupportedTask(task)
	}
	gate := r.gate.Load()
	if !gate.Allows(task) {
		return pkgerrors.NewPhaseViolation(task, gate.Phase())
	}
	return nil
}

// RunTask runs the tool registered for task. The gate is checked before the
// tool runs. replace_placeholders cannot be run here; use
// PackageReplacements once candidates are chosen.
func (r *Router) RunTask(ctx context.Context, task string, tc ToolContext, args valueobjects.Attrs) (patch.Patch, error) {
	if err := r.CheckTask(task); err != nil {
		r.logger.Debug("Task rejected",
			zap.String("task", task),
			zap.String("requestID", tc.RequestID),
			zap.String("code", pkgerrors.CodeOf(err)))
		return patch.Patch{}, err
	}

	tool, ok := r.registry.Lookup(task)
	if !ok {
		// replace_placeholders passes CheckTask but has no tool
		return patch.Patch{}, pkgerrors.NewUnsupportedTask(task).
			WithDetail("reason", "requires candidate selection")
	}

	p, err := tool(ctx, tc, args)
	if err != nil {
		return patch.Patch{}, err
	}
	if p.ID == "" {
		p.ID = tc.RequestID
	}
	r.logger.Debug("Task produced patch",
		zap.String("task", task),
		zap.String("requestID", tc.RequestID),
		zap.Int("ops", len(p.Operations)))
	return p, nil
}

// Replacement is a chosen catalog component for one placeholder node
type Replacement struct {
	NodeID       string
	ComponentRef string
	Attrs        valueobjects.Attrs
}

// PackageReplacements turns chosen replacements into update_node ops that
// clear the placeholder flag, set the catalog reference and merge attrs.
func PackageReplacements(requestID string, replacements []Replacement) patch.Patch {
	ops := make([]patch.PatchOp, 0, len(replacements))
	for _, rep := range replacements {
		attrs := rep.Attrs.Clone()
		attrs[entities.AttrPlaceholder] = valueobjects.Null()
		ref := rep.ComponentRef
		ops = append(ops, patch.NewOp(
			OpID(requestID, TaskReplacePlaceholders, rep.NodeID),
			patch.UpdateNode{ID: rep.NodeID, ComponentRef: &ref, Attrs: attrs},
		))
	}
	return patch.Patch{ID: requestID, Operations: ops}
}
