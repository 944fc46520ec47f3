package patch

import (
	"designgraph/domain/core/entities"
	"designgraph/domain/core/valueobjects"
	pkgerrors "designgraph/pkg/errors"
)

// OpKind is the wire tag of an operation
type OpKind string

const (
	OpAddNode    OpKind = "add_node"
	OpUpdateNode OpKind = "update_node"
	OpRemoveNode OpKind = "remove_node"
	OpAddEdge    OpKind = "add_edge"
	OpUpdateEdge OpKind = "update_edge"
	OpRemoveEdge OpKind = "remove_edge"
	OpSetMeta    OpKind = "set_meta"
)

// Operation is one graph mutation. The set of implementations is closed:
// only the types in this file satisfy it.
type Operation interface {
	Op() OpKind
	apply(w *working) error
}

// AddNode inserts a node. Re-adding identical content is a no-op.
type AddNode struct {
	ID           string             `json:"id" validate:"required"`
	Type         string             `json:"type"`
	ComponentRef *string            `json:"component_ref,omitempty"`
	Attrs        valueobjects.Attrs `json:"attrs,omitempty"`
}

// UpdateNode shallow-merges the provided fields into an existing node
type UpdateNode struct {
	ID           string             `json:"id" validate:"required"`
	Type         *string            `json:"type,omitempty"`
	ComponentRef *string            `json:"component_ref,omitempty"`
	Attrs        valueobjects.Attrs `json:"attrs,omitempty"`
}

// RemoveNode deletes a node and every edge touching it
type RemoveNode struct {
	ID string `json:"id" validate:"required"`
}

// AddEdge connects two existing nodes. Re-adding identical content is a no-op.
type AddEdge struct {
	ID       string             `json:"id" validate:"required"`
	SourceID string             `json:"source_id" validate:"required"`
	TargetID string             `json:"target_id" validate:"required"`
	Kind     entities.EdgeKind  `json:"kind"`
	Attrs    valueobjects.Attrs `json:"attrs,omitempty"`
}

// UpdateEdge merges the provided fields into an existing edge
type UpdateEdge struct {
	ID    string             `json:"id" validate:"required"`
	Kind  *entities.EdgeKind `json:"kind,omitempty"`
	Attrs valueobjects.Attrs `json:"attrs,omitempty"`
}

// RemoveEdge deletes an edge if present
type RemoveEdge struct {
	ID string `json:"id" validate:"required"`
}

// SetMeta merges top-level keys into the graph's session metadata
type SetMeta struct {
	Values valueobjects.Attrs `json:"-"`
}

func (AddNode) Op() OpKind    { return OpAddNode }
func (UpdateNode) Op() OpKind { return OpUpdateNode }
func (RemoveNode) Op() OpKind { return OpRemoveNode }
func (AddEdge) Op() OpKind    { return OpAddEdge }
func (UpdateEdge) Op() OpKind { return OpUpdateEdge }
func (RemoveEdge) Op() OpKind { return OpRemoveEdge }
func (SetMeta) Op() OpKind    { return OpSetMeta }

func (op AddNode) apply(w *working) error {
	node := &entities.Node{
		ID:    op.ID,
		Type:  op.Type,
		Attrs: op.Attrs.WithoutNulls(),
	}
	if op.ComponentRef != nil {
		ref := *op.ComponentRef
		node.ComponentRef = &ref
	}

	if existing, ok := w.g.Nodes[op.ID]; ok {
		if existing.SameContent(node) {
			return nil
		}
		return pkgerrors.NewStructuralConflict("node", op.ID)
	}
	w.g.Nodes[op.ID] = node
	return nil
}

func (op UpdateNode) apply(w *working) error {
	node, ok := w.g.Nodes[op.ID]
	if !ok {
		return pkgerrors.NewMissingReference("node", op.ID)
	}
	if op.Type != nil {
		node.Type = *op.Type
	}
	if op.ComponentRef != nil {
		ref := *op.ComponentRef
		node.ComponentRef = &ref
	}
	if len(op.Attrs) > 0 {
		node.Attrs = node.Attrs.Merge(op.Attrs)
	}
	return nil
}

func (op RemoveNode) apply(w *working) error {
	if _, ok := w.g.Nodes[op.ID]; !ok {
		return nil
	}
	delete(w.g.Nodes, op.ID)
	w.removeEdgesWhere(func(e *entities.Edge) bool { return e.Touches(op.ID) })
	return nil
}

func (op AddEdge) apply(w *working) error {
	if !w.g.HasNode(op.SourceID) {
		return pkgerrors.NewMissingReference("node", op.SourceID)
	}
	if !w.g.HasNode(op.TargetID) {
		return pkgerrors.NewMissingReference("node", op.TargetID)
	}

	edge := &entities.Edge{
		ID:       op.ID,
		SourceID: op.SourceID,
		TargetID: op.TargetID,
		Kind:     op.Kind,
		Attrs:    op.Attrs.WithoutNulls(),
	}
	if existing, ok := w.edge(op.ID); ok {
		if existing.SameContent(edge) {
			return nil
		}
		return pkgerrors.NewStructuralConflict("edge", op.ID)
	}
	w.appendEdge(edge)
	return nil
}

func (op UpdateEdge) apply(w *working) error {
	edge, ok := w.edge(op.ID)
	if !ok {
		return pkgerrors.NewMissingReference("edge", op.ID)
	}
	if op.Kind != nil {
		edge.Kind = *op.Kind
	}
	if len(op.Attrs) > 0 {
		edge.Attrs = edge.Attrs.Merge(op.Attrs)
	}
	return nil
}

func (op RemoveEdge) apply(w *working) error {
	w.removeEdgesWhere(func(e *entities.Edge) bool { return e.ID == op.ID })
	return nil
}

func (op SetMeta) apply(w *working) error {
	w.g.Meta = w.g.Meta.Merge(op.Values)
	return nil
}
