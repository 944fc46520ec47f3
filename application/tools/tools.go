// Package tools holds the built-in deterministic design tools.
package tools

import (
	"context"
	"fmt"

	"designgraph/application/router"
	"designgraph/domain/core/entities"
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/patch"
	pkgerrors "designgraph/pkg/errors"
)

// Task names of the built-in tools
const (
	TaskAddComponent    = "add_component"
	TaskConnect         = "connect"
	TaskSetRequirements = "set_requirements"
	TaskGenerateWiring  = "generate_wiring"
	TaskRemoveComponent = "remove_component"
)

// Register adds every built-in tool to reg
func Register(reg *router.Registry) error {
	for name, tool := range map[string]router.Tool{
		TaskAddComponent:    AddComponent,
		TaskConnect:         Connect,
		TaskSetRequirements: SetRequirements,
		TaskGenerateWiring:  GenerateWiring,
		TaskRemoveComponent: RemoveComponent,
	} {
		if err := reg.Register(name, tool); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a fresh registry holding the built-in tools
func NewRegistry() (*router.Registry, error) {
	reg := router.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

type addComponentArgs struct {
	ID           string             `json:"id" validate:"required"`
	Type         string             `json:"type" validate:"required"`
	ComponentRef *string            `json:"component_ref"`
	Layer        string             `json:"layer"`
	Attrs        valueobjects.Attrs `json:"attrs"`
}

// AddComponent adds one node. A request layer tags the node unless its
// attrs already carry one.
func AddComponent(_ context.Context, tc router.ToolContext, args valueobjects.Attrs) (patch.Patch, error) {
	var a addComponentArgs
	if err := router.DecodeArgs(TaskAddComponent, args, &a); err != nil {
		return patch.Patch{}, err
	}

	attrs := a.Attrs.Clone()
	if _, tagged := attrs[entities.AttrLayer]; !tagged && a.Layer != "" {
		attrs[entities.AttrLayer] = valueobjects.String(a.Layer)
	}

	return patch.Patch{ID: tc.RequestID, Operations: []patch.PatchOp{
		patch.NewOp(router.OpID(tc.RequestID, TaskAddComponent, a.ID), patch.AddNode{
			ID:           a.ID,
			Type:         a.Type,
			ComponentRef: a.ComponentRef,
			Attrs:        attrs,
		}),
	}}, nil
}

type connectArgs struct {
	ID       string             `json:"id"`
	SourceID string             `json:"source_id" validate:"required"`
	TargetID string             `json:"target_id" validate:"required,nefield=SourceID"`
	Kind     string             `json:"kind"`
	Attrs    valueobjects.Attrs `json:"attrs"`
}

// Connect adds one edge. The id defaults to <source>-<target>.
func Connect(_ context.Context, tc router.ToolContext, args valueobjects.Attrs) (patch.Patch, error) {
	var a connectArgs
	if err := router.DecodeArgs(TaskConnect, args, &a); err != nil {
		return patch.Patch{}, err
	}
	if a.ID == "" {
		a.ID = fmt.Sprintf("%s-%s", a.SourceID, a.TargetID)
	}

	return patch.Patch{ID: tc.RequestID, Operations: []patch.PatchOp{
		patch.NewOp(router.OpID(tc.RequestID, TaskConnect, a.ID), patch.AddEdge{
			ID:       a.ID,
			SourceID: a.SourceID,
			TargetID: a.TargetID,
			Kind:     entities.EdgeKind(a.Kind),
			Attrs:    a.Attrs,
		}),
	}}, nil
}

type setRequirementsArgs struct {
	Requirements valueobjects.Attrs `json:"requirements" validate:"required"`
	Domain       string             `json:"domain"`
}

// SetRequirements stores requirements (and optionally the domain) in the
// session meta
func SetRequirements(_ context.Context, tc router.ToolContext, args valueobjects.Attrs) (patch.Patch, error) {
	var a setRequirementsArgs
	if err := router.DecodeArgs(TaskSetRequirements, args, &a); err != nil {
		return patch.Patch{}, err
	}

	values := valueobjects.Attrs{"requirements": valueobjects.Map(a.Requirements)}
	if a.Domain != "" {
		values["domain"] = valueobjects.String(a.Domain)
	}
	return patch.Patch{ID: tc.RequestID, Operations: []patch.PatchOp{
		patch.NewOp(router.OpID(tc.RequestID, TaskSetRequirements, "meta"), patch.SetMeta{Values: values}),
	}}, nil
}

type removeComponentArgs struct {
	ID string `json:"id" validate:"required"`
}

// RemoveComponent removes one node and its edges
func RemoveComponent(_ context.Context, tc router.ToolContext, args valueobjects.Attrs) (patch.Patch, error) {
	var a removeComponentArgs
	if err := router.DecodeArgs(TaskRemoveComponent, args, &a); err != nil {
		return patch.Patch{}, err
	}
	return patch.Patch{ID: tc.RequestID, Operations: []patch.PatchOp{
		patch.NewOp(router.OpID(tc.RequestID, TaskRemoveComponent, a.ID), patch.RemoveNode{ID: a.ID}),
	}}, nil
}

type generateWiringArgs struct {
	InverterID string `json:"inverter_id"`
	PanelType  string `json:"panel_type"`
}

// GenerateWiring connects every panel in the view to one inverter with
// electrical edges named wire-<panel>-<inverter>. Without inverter_id the
// lowest-id inverter in the view is used. Existing wires are skipped.
func GenerateWiring(_ context.Context, tc router.ToolContext, args valueobjects.Attrs) (patch.Patch, error) {
	var a generateWiringArgs
	if err := router.DecodeArgs(TaskGenerateWiring, args, &a); err != nil {
		return patch.Patch{}, err
	}
	if tc.View == nil {
		return patch.Patch{}, pkgerrors.NewInvalidArguments(TaskGenerateWiring, "no layer view")
	}
	if a.PanelType == "" {
		a.PanelType = "panel"
	}

	inverter := a.InverterID
	if inverter == "" {
		inverters := tc.View.NodesOfType("inverter")
		if len(inverters) == 0 {
			return patch.Patch{}, pkgerrors.NewInvalidArguments(TaskGenerateWiring, "no inverter in view")
		}
		inverter = inverters[0].ID
	} else if !tc.View.HasNode(inverter) {
		return patch.Patch{}, pkgerrors.NewInvalidArguments(TaskGenerateWiring, fmt.Sprintf("inverter %q not in view", inverter))
	}

	existing := make(map[string]struct{}, len(tc.View.Edges))
	for _, e := range tc.View.Edges {
		existing[e.ID] = struct{}{}
	}

	var ops []patch.PatchOp
	for _, panel := range tc.View.NodesOfType(a.PanelType) {
		id := fmt.Sprintf("wire-%s-%s", panel.ID, inverter)
		if _, ok := existing[id]; ok {
			continue
		}
		ops = append(ops, patch.NewOp(router.OpID(tc.RequestID, TaskGenerateWiring, id), patch.AddEdge{
			ID:       id,
			SourceID: panel.ID,
			TargetID: inverter,
			Kind:     entities.EdgeKindElectrical,
		}))
	}
	return patch.Patch{ID: tc.RequestID, Operations: ops}, nil
}
