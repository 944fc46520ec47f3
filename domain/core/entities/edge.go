package entities

import (
	"designgraph/domain/core/valueobjects"
)

// EdgeKind is an open tag describing a connection
type EdgeKind string

const (
	EdgeKindElectrical EdgeKind = "electrical"
	EdgeKindMechanical EdgeKind = "mechanical"
	EdgeKindData       EdgeKind = "data"
	EdgeKindAnnotation EdgeKind = "annotation"
)

// Edge represents a connection between nodes
type Edge struct {
	ID       string             `json:"id"`
	SourceID string             `json:"source_id"`
	TargetID string             `json:"target_id"`
	Kind     EdgeKind           `json:"kind"`
	Attrs    valueobjects.Attrs `json:"attrs"`
}

// Clone returns a deep copy
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	return &Edge{
		ID:       e.ID,
		SourceID: e.SourceID,
		TargetID: e.TargetID,
		Kind:     e.Kind,
		Attrs:    e.Attrs.Clone(),
	}
}

// SameContent reports whether two edges are indistinguishable
func (e *Edge) SameContent(o *Edge) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.ID == o.ID &&
		e.SourceID == o.SourceID &&
		e.TargetID == o.TargetID &&
		e.Kind == o.Kind &&
		e.Attrs.Equal(o.Attrs)
}

// Touches reports whether nodeID is either endpoint
func (e *Edge) Touches(nodeID string) bool {
	return e.SourceID == nodeID || e.TargetID == nodeID
}
