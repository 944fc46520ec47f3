package patch

import (
	"designgraph/domain/core/aggregates"
	"designgraph/domain/core/entities"
	pkgerrors "designgraph/pkg/errors"
)

// SeenSet holds the op_ids already applied in the current submission
type SeenSet map[string]struct{}

// NewSeenSet builds a set from ids
func NewSeenSet(ids ...string) SeenSet {
	s := make(SeenSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership
func (s SeenSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy
func (s SeenSet) Clone() SeenSet {
	out := make(SeenSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// working is the mutable clone a patch is applied to, with an edge index
// kept alongside the ordered edge list
type working struct {
	g       *aggregates.Graph
	edgeIdx map[string]int
}

func newWorking(g *aggregates.Graph) *working {
	w := &working{g: g.Clone().Normalize()}
	w.reindex()
	return w
}

func (w *working) reindex() {
	w.edgeIdx = make(map[string]int, len(w.g.Edges))
	for i, e := range w.g.Edges {
		w.edgeIdx[e.ID] = i
	}
}

func (w *working) edge(id string) (*entities.Edge, bool) {
	i, ok := w.edgeIdx[id]
	if !ok {
		return nil, false
	}
	return w.g.Edges[i], true
}

func (w *working) appendEdge(e *entities.Edge) {
	w.edgeIdx[e.ID] = len(w.g.Edges)
	w.g.Edges = append(w.g.Edges, e)
}

func (w *working) removeEdgesWhere(match func(*entities.Edge) bool) {
	kept := w.g.Edges[:0]
	removed := false
	for _, e := range w.g.Edges {
		if match(e) {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return
	}
	w.g.Edges = kept
	w.reindex()
}

// Apply applies p to g and returns the resulting graph together with the
// updated seen set. Operations whose op_id is already in seen are skipped.
//
// Apply is all-or-nothing: on any error it returns g and seen unchanged.
// Neither input is ever mutated. The returned graph keeps g's version; the
// store assigns the next one on commit.
func Apply(g *aggregates.Graph, p Patch, seen SeenSet) (*aggregates.Graph, SeenSet, error) {
	if g == nil {
		return nil, seen, pkgerrors.NewInvalidPatch("", "graph is nil")
	}
	if err := p.Validate(); err != nil {
		return g, seen, err
	}

	w := newWorking(g)
	nextSeen := seen.Clone()

	for _, op := range p.Operations {
		if nextSeen.Has(op.OpID) {
			continue
		}
		if err := op.Op.apply(w); err != nil {
			return g, seen, pkgerrors.Wrapf(err, "op %s (%s)", op.OpID, op.Op.Op())
		}
		nextSeen[op.OpID] = struct{}{}
	}

	if err := w.g.Validate(); err != nil {
		return g, seen, pkgerrors.NewStructuralConflict("graph", g.SessionID).WithCause(err)
	}
	return w.g, nextSeen, nil
}

// ApplyFresh applies p with an empty seen set
func ApplyFresh(g *aggregates.Graph, p Patch) (*aggregates.Graph, error) {
	out, _, err := Apply(g, p, NewSeenSet())
	return out, err
}
