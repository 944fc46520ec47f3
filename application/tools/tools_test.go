package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"designgraph/application/router"
	"designgraph/domain/core/aggregates"
	"designgraph/domain/core/entities"
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/patch"
	"designgraph/domain/view"
	pkgerrors "designgraph/pkg/errors"
)

func solarView(t *testing.T, extraEdges ...*entities.Edge) *view.LayerView {
	t.Helper()
	g, err := aggregates.NewGraph("s1")
	require.NoError(t, err)
	for _, n := range []*entities.Node{
		{ID: "p2", Type: "panel"},
		{ID: "p1", Type: "panel"},
		{ID: "inv2", Type: "inverter"},
		{ID: "inv1", Type: "inverter"},
		{ID: "rail", Type: "rail", Attrs: valueobjects.Attrs{"layer": valueobjects.String("structural")}},
	} {
		if n.Attrs == nil {
			n.Attrs = valueobjects.Attrs{}
		}
		g.Nodes[n.ID] = n
	}
	g.Edges = append(g.Edges, extraEdges...)
	return view.Project(g, "electrical")
}

func tc(v *view.LayerView) router.ToolContext {
	return router.ToolContext{SessionID: "s1", RequestID: "r1", View: v}
}

func TestRegister(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{"add_component", "connect", "generate_wiring", "remove_component", "set_requirements"}, reg.Names())

	assert.Error(t, Register(reg), "second registration collides")
}

func TestAddComponent(t *testing.T) {
	tests := []struct {
		name      string
		args      valueobjects.Attrs
		wantErr   bool
		wantLayer string
	}{
		{
			name:      "request layer tags node",
			args:      valueobjects.Attrs{"id": valueobjects.String("p3"), "type": valueobjects.String("panel"), "layer": valueobjects.String("electrical")},
			wantLayer: "electrical",
		},
		{
			name: "explicit attrs layer wins",
			args: valueobjects.Attrs{
				"id":    valueobjects.String("p3"),
				"type":  valueobjects.String("panel"),
				"layer": valueobjects.String("electrical"),
				"attrs": valueobjects.Map(map[string]valueobjects.Value{"layer": valueobjects.String("roof")}),
			},
			wantLayer: "roof",
		},
		{
			name:    "type required",
			args:    valueobjects.Attrs{"id": valueobjects.String("p3")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := AddComponent(context.Background(), tc(nil), tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, pkgerrors.CodeInvalidArguments, pkgerrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			require.Len(t, p.Operations, 1)
			add, ok := p.Operations[0].Op.(patch.AddNode)
			require.True(t, ok)
			assert.Equal(t, "p3", add.ID)
			layer, _ := add.Attrs.String("layer")
			assert.Equal(t, tt.wantLayer, layer)
			assert.Equal(t, "r1:add_component:p3", p.Operations[0].OpID)
		})
	}
}

func TestConnect(t *testing.T) {
	p, err := Connect(context.Background(), tc(nil), valueobjects.Attrs{
		"source_id": valueobjects.String("p1"),
		"target_id": valueobjects.String("inv1"),
		"kind":      valueobjects.String("electrical"),
	})
	require.NoError(t, err)
	require.Len(t, p.Operations, 1)
	edge := p.Operations[0].Op.(patch.AddEdge)
	assert.Equal(t, "p1-inv1", edge.ID)
	assert.Equal(t, entities.EdgeKindElectrical, edge.Kind)

	_, err = Connect(context.Background(), tc(nil), valueobjects.Attrs{
		"source_id": valueobjects.String("p1"),
		"target_id": valueobjects.String("p1"),
	})
	assert.Error(t, err, "self loop rejected")
}

func TestSetRequirements(t *testing.T) {
	p, err := SetRequirements(context.Background(), tc(nil), valueobjects.Attrs{
		"requirements": valueobjects.Map(map[string]valueobjects.Value{"kw": valueobjects.Number(8)}),
		"domain":       valueobjects.String("residential"),
	})
	require.NoError(t, err)
	meta := p.Operations[0].Op.(patch.SetMeta)
	domain, _ := meta.Values.String("domain")
	assert.Equal(t, "residential", domain)
	reqs, ok := meta.Values["requirements"].AsMap()
	require.True(t, ok)
	kw, _ := reqs["kw"].AsNumber()
	assert.Equal(t, 8.0, kw)

	_, err = SetRequirements(context.Background(), tc(nil), valueobjects.Attrs{})
	assert.Error(t, err)
}

func TestRemoveComponent(t *testing.T) {
	p, err := RemoveComponent(context.Background(), tc(nil), valueobjects.Attrs{"id": valueobjects.String("p1")})
	require.NoError(t, err)
	assert.Equal(t, patch.RemoveNode{ID: "p1"}, p.Operations[0].Op)
}

func TestGenerateWiring(t *testing.T) {
	tests := []struct {
		name    string
		view    *view.LayerView
		args    valueobjects.Attrs
		wantIDs []string
		wantErr string
	}{
		{
			name:    "wires every panel to lowest inverter",
			view:    solarView(t),
			wantIDs: []string{"wire-p1-inv1", "wire-p2-inv1"},
		},
		{
			name:    "explicit inverter",
			view:    solarView(t),
			args:    valueobjects.Attrs{"inverter_id": valueobjects.String("inv2")},
			wantIDs: []string{"wire-p1-inv2", "wire-p2-inv2"},
		},
		{
			name:    "existing wire skipped",
			view:    solarView(t, &entities.Edge{ID: "wire-p1-inv1", SourceID: "p1", TargetID: "inv1", Kind: entities.EdgeKindElectrical, Attrs: valueobjects.Attrs{}}),
			wantIDs: []string{"wire-p2-inv1"},
		},
		{
			name:    "inverter outside view",
			view:    solarView(t),
			args:    valueobjects.Attrs{"inverter_id": valueobjects.String("rail")},
			wantErr: pkgerrors.CodeInvalidArguments,
		},
		{
			name:    "no view",
			wantErr: pkgerrors.CodeInvalidArguments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := GenerateWiring(context.Background(), tc(tt.view), tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, pkgerrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, op := range p.Operations {
				e := op.Op.(patch.AddEdge)
				assert.Equal(t, entities.EdgeKindElectrical, e.Kind)
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestGenerateWiring_Deterministic(t *testing.T) {
	v := solarView(t)
	first, err := GenerateWiring(context.Background(), tc(v), nil)
	require.NoError(t, err)
	second, err := GenerateWiring(context.Background(), tc(v), nil)
	require.NoError(t, err)
	assert.Equal(t, first.OpIDs(), second.OpIDs())
}

func TestGenerateWiring_NoInverter(t *testing.T) {
	g, err := aggregates.NewGraph("s1")
	require.NoError(t, err)
	g.Nodes["p1"] = &entities.Node{ID: "p1", Type: "panel", Attrs: valueobjects.Attrs{}}

	_, err = GenerateWiring(context.Background(), tc(view.Project(g, "electrical")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no inverter")
}
