// Package handlers answers graph queries from the graph store.
package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"designgraph/application/ports"
	"designgraph/application/queries"
	"designgraph/application/queries/bus"
	"designgraph/domain/view"
)

// GraphHandlers reads graphs, layer views and ledgers
type GraphHandlers struct {
	store        ports.GraphStore
	defaultLayer string
	logger       *zap.Logger
}

// NewGraphHandlers creates the handlers
func NewGraphHandlers(store ports.GraphStore, defaultLayer string, logger *zap.Logger) *GraphHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphHandlers{store: store, defaultLayer: defaultLayer, logger: logger}
}

// Register adds every graph query to b
func (h *GraphHandlers) Register(b *bus.QueryBus) error {
	if err := b.Register(queries.GetGraphQuery{}, bus.QueryHandlerFunc(h.getGraph)); err != nil {
		return err
	}
	if err := b.Register(queries.GetLayerViewQuery{}, bus.QueryHandlerFunc(h.getLayerView)); err != nil {
		return err
	}
	return b.Register(queries.GetAppliedOpsQuery{}, bus.QueryHandlerFunc(h.getAppliedOps))
}

func (h *GraphHandlers) getGraph(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetGraphQuery)
	if !ok {
		return nil, fmt.Errorf("invalid query type %T", query)
	}
	return h.store.GetGraph(ctx, q.SessionID)
}

func (h *GraphHandlers) getLayerView(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetLayerViewQuery)
	if !ok {
		return nil, fmt.Errorf("invalid query type %T", query)
	}
	g, err := h.store.GetGraph(ctx, q.SessionID)
	if err != nil {
		return nil, err
	}

	layer := q.Layer
	if layer == "" {
		layer = h.defaultLayer
	}
	v := view.Project(g, layer)
	h.logger.Debug("Layer view projected",
		zap.String("sessionID", q.SessionID),
		zap.String("layer", layer),
		zap.Int("nodes", v.NodeCount()))
	return v, nil
}

func (h *GraphHandlers) getAppliedOps(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.GetAppliedOpsQuery)
	if !ok {
		return nil, fmt.Errorf("invalid query type %T", query)
	}
	ops, err := h.store.AppliedOps(ctx, q.SessionID)
	if err != nil {
		return nil, err
	}
	if ops == nil {
		ops = []string{}
	}
	return &queries.AppliedOpsResult{SessionID: q.SessionID, OpIDs: ops}, nil
}
