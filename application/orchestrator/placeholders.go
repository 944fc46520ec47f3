package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"designgraph/application/ports"
	"designgraph/application/router"
	"designgraph/domain/core/entities"
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/patch"
	pkgerrors "designgraph/pkg/errors"
)

type placeholderArgs struct {
	PlaceholderType string             `json:"placeholder_type"`
	Candidates      []ports.Candidate  `json:"candidates" validate:"dive"`
	Attrs           valueobjects.Attrs `json:"attrs"`
}

// placeholderPatch resolves a replacement for every placeholder in the
// view and packages them into update_node ops. A non-nil Response ends the
// request early without a patch. The returned warnings extend the given ones.
func (o *Orchestrator) placeholderPatch(ctx context.Context, tc router.ToolContext, args valueobjects.Attrs, warnings []string) (patch.Patch, []string, *Response, error) {
	var a placeholderArgs
	if err := router.DecodeArgs(router.TaskReplacePlaceholders, args, &a); err != nil {
		return patch.Patch{}, warnings, blocked(tc.RequestID, pkgerrors.CodeOf(err), reasonOf(err), warnings), nil
	}

	placeholders := findPlaceholders(tc, a.PlaceholderType)
	if len(placeholders) == 0 {
		msg := "no placeholder nodes found"
		if a.PlaceholderType != "" {
			msg = fmt.Sprintf("no placeholder nodes of type %q found", a.PlaceholderType)
		}
		return patch.Patch{}, warnings, complete(tc.RequestID, tc.SessionID, tc.View.BaseVersion, append(warnings, msg)), nil
	}

	requirements := valueobjects.Attrs{}
	if m, ok := tc.Meta["requirements"].AsMap(); ok {
		requirements = valueobjects.Attrs(m)
	}

	var (
		replacements []router.Replacement
		unresolved   []string
	)
	for _, ph := range placeholders {
		ranked, err := o.selector.Select(ctx, ports.SelectionRequest{
			PlaceholderType: ph.Type,
			Requirements:    requirements,
			Pool:            a.Candidates,
		})
		if err != nil {
			return patch.Patch{}, warnings, nil, pkgerrors.Wrapf(err, "select candidates for %s", ph.ID)
		}
		if len(ranked) == 0 {
			unresolved = append(unresolved, ph.ID)
			continue
		}
		best := ranked[0]
		replacements = append(replacements, router.Replacement{
			NodeID:       ph.ID,
			ComponentRef: best.ComponentRef,
			Attrs:        best.Attrs.Merge(a.Attrs),
		})
	}

	if len(replacements) == 0 {
		err := pkgerrors.NewNoCandidates(unresolved)
		return patch.Patch{}, warnings, blocked(tc.RequestID, pkgerrors.CodeOf(err), reasonOf(err), warnings), nil
	}
	if len(unresolved) > 0 {
		o.logger.Info("Some placeholders left unresolved",
			zap.String("requestID", tc.RequestID),
			zap.Strings("placeholders", unresolved))
		warnings = append(warnings, reasonOf(pkgerrors.NewNoCandidates(unresolved)))
	}

	return router.PackageReplacements(tc.RequestID, replacements), warnings, nil, nil
}

func findPlaceholders(tc router.ToolContext, placeholderType string) []*entities.Node {
	var out []*entities.Node
	for _, n := range tc.View.SortedNodes() {
		if !n.IsPlaceholder() {
			continue
		}
		if placeholderType != "" && n.Type != placeholderType {
			continue
		}
		out = append(out, n)
	}
	return out
}
