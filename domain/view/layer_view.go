// Package view projects a graph onto a named layer.
package view

import (
	"designgraph/domain/core/aggregates"
	"designgraph/domain/core/entities"
)

// LayerView is a read-only projection of a graph onto one layer
type LayerView struct {
	SessionID   string                    `json:"session_id"`
	BaseVersion int64                     `json:"base_version"`
	Layer       string                    `json:"layer"`
	Nodes       map[string]*entities.Node `json:"nodes"`
	Edges       []*entities.Edge          `json:"edges"`
}

// Project returns the layer view of g. A node is included when its layer
// attr equals layer or when it has no layer attr. An edge is included only
// when both endpoints are included. The view holds copies; g is not shared.
func Project(g *aggregates.Graph, layer string) *LayerView {
	v := &LayerView{
		SessionID:   g.SessionID,
		BaseVersion: g.Version,
		Layer:       layer,
		Nodes:       make(map[string]*entities.Node),
		Edges:       []*entities.Edge{},
	}

	for id, n := range g.Nodes {
		if InLayer(n, layer) {
			v.Nodes[id] = n.Clone()
		}
	}
	for _, e := range g.Edges {
		_, src := v.Nodes[e.SourceID]
		_, dst := v.Nodes[e.TargetID]
		if src && dst {
			v.Edges = append(v.Edges, e.Clone())
		}
	}
	return v
}

// InLayer reports whether n is visible in layer
func InLayer(n *entities.Node, layer string) bool {
	tag, tagged := n.Layer()
	if !tagged {
		return true
	}
	return tag == layer
}

// NodeCount returns the number of nodes in the view
func (v *LayerView) NodeCount() int { return len(v.Nodes) }

// HasNode reports whether id is visible
func (v *LayerView) HasNode(id string) bool {
	_, ok := v.Nodes[id]
	return ok
}

// NodesOfType returns the visible nodes of a type, ordered by id
func (v *LayerView) NodesOfType(nodeType string) []*entities.Node {
	var out []*entities.Node
	for _, n := range v.SortedNodes() {
		if n.Type == nodeType {
			out = append(out, n)
		}
	}
	return out
}

// SortedNodes returns the visible nodes ordered by id
func (v *LayerView) SortedNodes() []*entities.Node {
	g := aggregates.Graph{Nodes: v.Nodes}
	return g.SortedNodes()
}
