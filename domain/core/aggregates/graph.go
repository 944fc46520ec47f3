package aggregates

import (
	"errors"
	"fmt"
	"sort"

	"designgraph/domain/core/entities"
	"designgraph/domain/core/valueobjects"
)

// InitialVersion is the version of a freshly created graph
const InitialVersion int64 = 1

// Graph is the aggregate root for one design session. It is treated as an
// immutable snapshot once loaded: mutation happens on clones inside the
// patch engine and is published only through a committed store write.
type Graph struct {
	SessionID string                    `json:"session_id"`
	Version   int64                     `json:"version"`
	Nodes     map[string]*entities.Node `json:"nodes"`
	Edges     []*entities.Edge          `json:"edges"`
	Meta      valueobjects.Attrs        `json:"meta"`
}

// NewGraph creates the empty version-1 graph for a session
func NewGraph(sessionID string) (*Graph, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID required")
	}
	return &Graph{
		SessionID: sessionID,
		Version:   InitialVersion,
		Nodes:     make(map[string]*entities.Node),
		Edges:     []*entities.Edge{},
		Meta:      valueobjects.Attrs{},
	}, nil
}

// Clone returns a deep copy
func (g *Graph) Clone() *Graph {
	cp := &Graph{
		SessionID: g.SessionID,
		Version:   g.Version,
		Nodes:     make(map[string]*entities.Node, len(g.Nodes)),
		Edges:     make([]*entities.Edge, len(g.Edges)),
		Meta:      g.Meta.Clone(),
	}
	for id, n := range g.Nodes {
		cp.Nodes[id] = n.Clone()
	}
	for i, e := range g.Edges {
		cp.Edges[i] = e.Clone()
	}
	return cp
}

// Node retrieves a node by ID
func (g *Graph) Node(id string) (*entities.Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// HasNode checks if a node exists in the graph
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// Edge retrieves an edge by ID
func (g *Graph) Edge(id string) (*entities.Edge, bool) {
	for _, e := range g.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// NodeIDs returns node ids in lexical order
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortedNodes returns nodes ordered by id
func (g *Graph) SortedNodes() []*entities.Node {
	ids := g.NodeIDs()
	out := make([]*entities.Node, len(ids))
	for i, id := range ids {
		out[i] = g.Nodes[id]
	}
	return out
}

// Validate ensures graph invariants
func (g *Graph) Validate() error {
	if g.SessionID == "" {
		return errors.New("graph has no session id")
	}
	if g.Version < InitialVersion {
		return fmt.Errorf("graph version %d is below %d", g.Version, InitialVersion)
	}
	for id, n := range g.Nodes {
		if n == nil || n.ID != id {
			return fmt.Errorf("node entry %q does not match its id", id)
		}
	}
	seen := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("duplicate edge id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
		if !g.HasNode(e.SourceID) {
			return fmt.Errorf("edge %q references non-existent source node %q", e.ID, e.SourceID)
		}
		if !g.HasNode(e.TargetID) {
			return fmt.Errorf("edge %q references non-existent target node %q", e.ID, e.TargetID)
		}
	}
	return nil
}

// Normalize replaces nil collections with empty ones, as happens after
// decoding a record that omitted them
func (g *Graph) Normalize() *Graph {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*entities.Node)
	}
	if g.Edges == nil {
		g.Edges = []*entities.Edge{}
	}
	if g.Meta == nil {
		g.Meta = valueobjects.Attrs{}
	}
	for _, n := range g.Nodes {
		if n.Attrs == nil {
			n.Attrs = valueobjects.Attrs{}
		}
	}
	for _, e := range g.Edges {
		if e.Attrs == nil {
			e.Attrs = valueobjects.Attrs{}
		}
	}
	return g
}
