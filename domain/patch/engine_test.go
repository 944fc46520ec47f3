package patch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"designgraph/domain/core/aggregates"
	"designgraph/domain/core/entities"
	"designgraph/domain/core/valueobjects"
	pkgerrors "designgraph/pkg/errors"
)

func strPtr(s string) *string { return &s }

func newTestGraph(t *testing.T) *aggregates.Graph {
	t.Helper()
	g, err := aggregates.NewGraph("s1")
	require.NoError(t, err)
	return g
}

// seeded returns a graph with panel p1, inverter inv1 and edge e1 between them
func seeded(t *testing.T) *aggregates.Graph {
	t.Helper()
	g, err := ApplyFresh(newTestGraph(t), New(
		NewOp("seed-1", AddNode{ID: "p1", Type: "panel", Attrs: valueobjects.Attrs{"layer": valueobjects.String("electrical")}}),
		NewOp("seed-2", AddNode{ID: "inv1", Type: "inverter"}),
		NewOp("seed-3", AddEdge{ID: "e1", SourceID: "p1", TargetID: "inv1", Kind: entities.EdgeKindElectrical}),
	))
	require.NoError(t, err)
	return g
}

func TestApply_AddNode(t *testing.T) {
	tests := []struct {
		name     string
		ops      []PatchOp
		wantErr  string
		wantNode *entities.Node
	}{
		{
			name: "adds node into empty graph",
			ops: []PatchOp{
				NewOp("o1", AddNode{ID: "p1", Type: "panel", Attrs: valueobjects.Attrs{"layer": valueobjects.String("electrical")}}),
			},
			wantNode: &entities.Node{ID: "p1", Type: "panel", Attrs: valueobjects.Attrs{"layer": valueobjects.String("electrical")}},
		},
		{
			name: "identical re-add is a no-op",
			ops: []PatchOp{
				NewOp("o1", AddNode{ID: "p1", Type: "panel"}),
				NewOp("o2", AddNode{ID: "p1", Type: "panel"}),
			},
			wantNode: &entities.Node{ID: "p1", Type: "panel", Attrs: valueobjects.Attrs{}},
		},
		{
			name: "re-add with different content conflicts",
			ops: []PatchOp{
				NewOp("o1", AddNode{ID: "p1", Type: "panel"}),
				NewOp("o2", AddNode{ID: "p1", Type: "battery"}),
			},
			wantErr: pkgerrors.CodeStructuralConflict,
		},
		{
			name: "null attrs are dropped on insert",
			ops: []PatchOp{
				NewOp("o1", AddNode{ID: "p1", Type: "panel", Attrs: valueobjects.Attrs{
					"watts": valueobjects.Number(400),
					"gone":  valueobjects.Null(),
				}}),
			},
			wantNode: &entities.Node{ID: "p1", Type: "panel", Attrs: valueobjects.Attrs{"watts": valueobjects.Number(400)}},
		},
		{
			name: "component ref is kept",
			ops: []PatchOp{
				NewOp("o1", AddNode{ID: "p1", Type: "panel", ComponentRef: strPtr("cat-400w")}),
			},
			wantNode: &entities.Node{ID: "p1", Type: "panel", ComponentRef: strPtr("cat-400w"), Attrs: valueobjects.Attrs{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph(t)
			out, err := ApplyFresh(g, New(tt.ops...))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, pkgerrors.CodeOf(err))
				assert.Same(t, g, out)
				return
			}
			require.NoError(t, err)
			got, ok := out.Node(tt.wantNode.ID)
			require.True(t, ok)
			if diff := cmp.Diff(tt.wantNode, got); diff != "" {
				t.Errorf("node mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply_UpdateNode(t *testing.T) {
	tests := []struct {
		name      string
		op        UpdateNode
		wantErr   string
		wantType  string
		wantAttrs valueobjects.Attrs
	}{
		{
			name:      "merges attrs",
			op:        UpdateNode{ID: "p1", Attrs: valueobjects.Attrs{"watts": valueobjects.Number(410)}},
			wantType:  "panel",
			wantAttrs: valueobjects.Attrs{"layer": valueobjects.String("electrical"), "watts": valueobjects.Number(410)},
		},
		{
			name:      "null deletes key",
			op:        UpdateNode{ID: "p1", Attrs: valueobjects.Attrs{"layer": valueobjects.Null()}},
			wantType:  "panel",
			wantAttrs: valueobjects.Attrs{},
		},
		{
			name:      "replaces type",
			op:        UpdateNode{ID: "p1", Type: strPtr("bifacial_panel")},
			wantType:  "bifacial_panel",
			wantAttrs: valueobjects.Attrs{"layer": valueobjects.String("electrical")},
		},
		{
			name:    "missing node",
			op:      UpdateNode{ID: "ghost", Type: strPtr("panel")},
			wantErr: pkgerrors.CodeMissingReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := seeded(t)
			out, err := ApplyFresh(g, New(NewOp("u1", tt.op)))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, pkgerrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			n, ok := out.Node("p1")
			require.True(t, ok)
			assert.Equal(t, tt.wantType, n.Type)
			assert.True(t, tt.wantAttrs.Equal(n.Attrs), "attrs: %v", n.Attrs)
		})
	}
}

func TestApply_RemoveNodeCascadesEdges(t *testing.T) {
	g := seeded(t)

	out, err := ApplyFresh(g, New(NewOp("r1", RemoveNode{ID: "inv1"})))
	require.NoError(t, err)

	assert.False(t, out.HasNode("inv1"))
	assert.True(t, out.HasNode("p1"))
	assert.Equal(t, 0, out.EdgeCount())

	// input untouched
	assert.True(t, g.HasNode("inv1"))
	assert.Equal(t, 1, g.EdgeCount())
}

func TestApply_RemoveAbsentIsNoop(t *testing.T) {
	g := seeded(t)

	out, err := ApplyFresh(g, New(
		NewOp("r1", RemoveNode{ID: "ghost"}),
		NewOp("r2", RemoveEdge{ID: "ghost-edge"}),
	))
	require.NoError(t, err)
	if diff := cmp.Diff(g, out); diff != "" {
		t.Errorf("graph changed (-before +after):\n%s", diff)
	}
}

func TestApply_Edges(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		wantErr string
		check   func(t *testing.T, g *aggregates.Graph)
	}{
		{
			name:    "missing target",
			op:      AddEdge{ID: "e2", SourceID: "p1", TargetID: "inv9"},
			wantErr: pkgerrors.CodeMissingReference,
		},
		{
			name:    "missing source",
			op:      AddEdge{ID: "e2", SourceID: "p9", TargetID: "inv1"},
			wantErr: pkgerrors.CodeMissingReference,
		},
		{
			name: "identical re-add is a no-op",
			op:   AddEdge{ID: "e1", SourceID: "p1", TargetID: "inv1", Kind: entities.EdgeKindElectrical},
			check: func(t *testing.T, g *aggregates.Graph) {
				assert.Equal(t, 1, g.EdgeCount())
			},
		},
		{
			name:    "re-add with different endpoints conflicts",
			op:      AddEdge{ID: "e1", SourceID: "inv1", TargetID: "p1", Kind: entities.EdgeKindElectrical},
			wantErr: pkgerrors.CodeStructuralConflict,
		},
		{
			name: "update edge kind and attrs",
			op: UpdateEdge{
				ID:    "e1",
				Kind:  func() *entities.EdgeKind { k := entities.EdgeKindData; return &k }(),
				Attrs: valueobjects.Attrs{"gauge": valueobjects.String("10AWG")},
			},
			check: func(t *testing.T, g *aggregates.Graph) {
				e, ok := g.Edge("e1")
				require.True(t, ok)
				assert.Equal(t, entities.EdgeKindData, e.Kind)
				s, _ := e.Attrs.String("gauge")
				assert.Equal(t, "10AWG", s)
			},
		},
		{
			name:    "update missing edge",
			op:      UpdateEdge{ID: "nope"},
			wantErr: pkgerrors.CodeMissingReference,
		},
		{
			name: "remove edge keeps nodes",
			op:   RemoveEdge{ID: "e1"},
			check: func(t *testing.T, g *aggregates.Graph) {
				assert.Equal(t, 0, g.EdgeCount())
				assert.Equal(t, 2, g.NodeCount())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := seeded(t)
			out, err := ApplyFresh(g, New(NewOp("x1", tt.op)))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, pkgerrors.CodeOf(err))
				assert.Same(t, g, out)
				return
			}
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestApply_AllOrNothing(t *testing.T) {
	g := seeded(t)
	before := g.Clone()

	out, seen, err := Apply(g, New(
		NewOp("a1", AddNode{ID: "bat1", Type: "battery"}),
		NewOp("a2", UpdateNode{ID: "p1", Attrs: valueobjects.Attrs{"watts": valueobjects.Number(1)}}),
		NewOp("a3", AddEdge{ID: "e9", SourceID: "bat1", TargetID: "missing"}),
	), NewSeenSet())

	require.Error(t, err)
	assert.True(t, pkgerrors.IsMissingReference(err))
	assert.Contains(t, err.Error(), "a3")
	assert.Same(t, g, out)
	assert.Empty(t, seen)
	if diff := cmp.Diff(before, g); diff != "" {
		t.Errorf("input graph mutated (-before +after):\n%s", diff)
	}
}

func TestApply_DuplicateOpIDAppliesOnce(t *testing.T) {
	g := newTestGraph(t)

	out, seen, err := Apply(g, New(
		NewOp("o1", AddNode{ID: "p1", Type: "panel"}),
		NewOp("o1", UpdateNode{ID: "p1", Type: strPtr("battery")}),
		NewOp("o1", AddNode{ID: "p1", Type: "inverter"}),
	), NewSeenSet())

	require.NoError(t, err)
	n, ok := out.Node("p1")
	require.True(t, ok)
	assert.Equal(t, "panel", n.Type)
	assert.True(t, seen.Has("o1"))
	assert.Len(t, seen, 1)
}

func TestApply_SeenSetFromCallerIsRespected(t *testing.T) {
	g := newTestGraph(t)
	seen := NewSeenSet("o1")

	out, next, err := Apply(g, New(
		NewOp("o1", AddNode{ID: "p1", Type: "panel"}),
		NewOp("o2", AddNode{ID: "inv1", Type: "inverter"}),
	), seen)

	require.NoError(t, err)
	assert.False(t, out.HasNode("p1"))
	assert.True(t, out.HasNode("inv1"))
	assert.True(t, next.Has("o2"))
	assert.False(t, seen.Has("o2"), "caller's set must not be mutated")
}

func TestApply_ReplayIsIdempotent(t *testing.T) {
	p := New(
		NewOp("o1", AddNode{ID: "p1", Type: "panel"}),
		NewOp("o2", AddNode{ID: "inv1", Type: "inverter"}),
		NewOp("o3", AddEdge{ID: "e1", SourceID: "p1", TargetID: "inv1"}),
	)
	once, err := ApplyFresh(newTestGraph(t), p)
	require.NoError(t, err)

	twice, err := ApplyFresh(once, p)
	require.NoError(t, err)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("replay changed graph (-once +twice):\n%s", diff)
	}
}

func TestApply_SetMeta(t *testing.T) {
	g := newTestGraph(t)
	g.Meta = valueobjects.Attrs{"domain": valueobjects.String("solar"), "site": valueobjects.String("roof")}

	out, err := ApplyFresh(g, New(NewOp("m1", SetMeta{Values: valueobjects.Attrs{
		"site":  valueobjects.Null(),
		"owner": valueobjects.String("acme"),
	}})))
	require.NoError(t, err)

	want := valueobjects.Attrs{"domain": valueobjects.String("solar"), "owner": valueobjects.String("acme")}
	assert.True(t, want.Equal(out.Meta), "meta: %v", out.Meta)
}

func TestApply_KeepsVersion(t *testing.T) {
	g := seeded(t)
	out, err := ApplyFresh(g, New(NewOp("k1", AddNode{ID: "x", Type: "t"})))
	require.NoError(t, err)
	assert.Equal(t, g.Version, out.Version)
}

func TestApply_InvalidPatch(t *testing.T) {
	tests := []struct {
		name string
		p    Patch
	}{
		{name: "missing op id", p: New(PatchOp{Op: AddNode{ID: "a"}})},
		{name: "nil operation", p: New(PatchOp{OpID: "o1"})},
		{name: "node without id", p: New(NewOp("o1", AddNode{Type: "panel"}))},
		{name: "edge without target", p: New(NewOp("o1", AddEdge{ID: "e", SourceID: "a"}))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph(t)
			out, err := ApplyFresh(g, tt.p)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeInvalidPatch, pkgerrors.CodeOf(err))
			assert.Same(t, g, out)
		})
	}
}

func TestApply_EmptyPatch(t *testing.T) {
	g := seeded(t)
	out, err := ApplyFresh(g, New())
	require.NoError(t, err)
	if diff := cmp.Diff(g, out); diff != "" {
		t.Errorf("empty patch changed graph:\n%s", diff)
	}
}
