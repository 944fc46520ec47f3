package entities

import (
	"designgraph/domain/core/valueobjects"
)

// Well-known attribute keys
const (
	// AttrLayer tags a node with the single layer it belongs to. Nodes
	// without it are visible in every layer.
	AttrLayer = "layer"

	// AttrPlaceholder marks a generic stand-in awaiting a catalog component.
	AttrPlaceholder = "placeholder"
)

// Node is a component in a design graph
type Node struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"`
	ComponentRef *string            `json:"component_ref"`
	Attrs        valueobjects.Attrs `json:"attrs"`
}

// Clone returns a deep copy
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{
		ID:    n.ID,
		Type:  n.Type,
		Attrs: n.Attrs.Clone(),
	}
	if n.ComponentRef != nil {
		ref := *n.ComponentRef
		cp.ComponentRef = &ref
	}
	return cp
}

// SameContent reports whether two nodes are indistinguishable
func (n *Node) SameContent(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.ID != o.ID || n.Type != o.Type {
		return false
	}
	if !sameRef(n.ComponentRef, o.ComponentRef) {
		return false
	}
	return n.Attrs.Equal(o.Attrs)
}

// Layer returns the node's layer tag, if it has one
func (n *Node) Layer() (string, bool) {
	v, ok := n.Attrs.Get(AttrLayer)
	if !ok {
		return "", false
	}
	s, isString := v.AsString()
	if !isString {
		// a non-string layer tag still counts as tagged; it can never match a name
		return "", true
	}
	return s, true
}

// IsPlaceholder reports whether the node carries placeholder=true
func (n *Node) IsPlaceholder() bool {
	v, ok := n.Attrs.Get(AttrPlaceholder)
	if !ok {
		return false
	}
	b, isBool := v.AsBool()
	return isBool && b
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
