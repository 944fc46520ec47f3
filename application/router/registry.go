package router

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"designgraph/domain/core/valueobjects"
	"designgraph/domain/patch"
	"designgraph/domain/view"
)

// ToolContext is what a tool sees of the request
type ToolContext struct {
	SessionID string
	RequestID string
	View      *view.LayerView
	Meta      valueobjects.Attrs
}

// Tool maps a request onto a patch. Tools must be deterministic and must
// not touch global state.
type Tool func(ctx context.Context, tc ToolContext, args valueobjects.Attrs) (patch.Patch, error)

// Registry maps task names to tools. Each Router gets its own registry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under name. Names are unique.
func (r *Registry) Register(name string, tool Tool) error {
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool == nil {
		return fmt.Errorf("tool %q is nil", name)
	}
	if name == TaskReplacePlaceholders {
		return fmt.Errorf("%q is handled by the orchestrator", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister is Register that panics, for static wiring
func (r *Registry) MustRegister(name string, tool Tool) {
	if err := r.Register(name, tool); err != nil {
		panic(err)
	}
}

// Lookup returns the tool registered under name
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tools in lexical order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
