package ports

import (
	"context"

	"designgraph/domain/core/aggregates"
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/events"
	"designgraph/domain/patch"
)

// GraphStore defines the interface for graph persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type GraphStore interface {
	// CreateGraph creates the empty version-1 graph for a session.
	// Fails with SESSION_EXISTS if the session is already present.
	CreateGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error)

	// GetGraph returns the current snapshot or SESSION_NOT_FOUND
	GetGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error)

	// ApplyPatchCAS applies p when the persisted version equals expectedVersion.
	// The graph write and the ledger entries commit together; the returned
	// graph carries the new version. A stale version fails with
	// VERSION_MISMATCH and nothing changes. There is no retry.
	ApplyPatchCAS(ctx context.Context, sessionID string, expectedVersion int64, p patch.Patch) (*aggregates.Graph, error)

	// AppliedOps returns the op ids recorded in the session's ledger
	AppliedOps(ctx context.Context, sessionID string) ([]string, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Candidate is a catalog component that can replace a placeholder
type Candidate struct {
	ComponentRef string             `json:"component_ref" yaml:"component_ref" validate:"required"`
	Type         string             `json:"type,omitempty" yaml:"type"`
	Score        float64            `json:"score,omitempty" yaml:"score"`
	Attrs        valueobjects.Attrs `json:"attrs,omitempty" yaml:"attrs"`
}

// SelectionRequest asks for candidates for one placeholder type
type SelectionRequest struct {
	PlaceholderType string
	Requirements    valueobjects.Attrs
	Pool            []Candidate
}

// ComponentSelector ranks replacement candidates. The first result is the
// best match.
type ComponentSelector interface {
	Select(ctx context.Context, req SelectionRequest) ([]Candidate, error)
}
