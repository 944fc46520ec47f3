// Package memory provides an in-process Graph Store for tests, local
// development and single-instance deployments.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"designgraph/application/ports"
	"designgraph/domain/core/aggregates"
	"designgraph/domain/patch"
	"designgraph/infrastructure/persistence"
	pkgerrors "designgraph/pkg/errors"
)

var _ ports.GraphStore = (*GraphStore)(nil)

type session struct {
	graph  *aggregates.Graph
	ledger []string
}

// GraphStore keeps every session behind one mutex. Graphs are cloned on the
// way in and out so callers never share state with the store.
type GraphStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	opts     persistence.Options
	logger   *zap.Logger
}

// NewGraphStore creates an empty store
func NewGraphStore(logger *zap.Logger, opts ...persistence.Option) *GraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphStore{
		sessions: make(map[string]*session),
		opts:     persistence.NewOptions(opts...),
		logger:   logger,
	}
}

// CreateGraph creates the version-1 graph for sessionID
func (s *GraphStore) CreateGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	g, err := aggregates.NewGraph(sessionID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		return nil, pkgerrors.NewSessionExists(sessionID)
	}
	s.sessions[sessionID] = &session{graph: g}

	s.logger.Debug("Graph created", zap.String("sessionID", sessionID))
	return g.Clone(), nil
}

// GetGraph returns a copy of the current snapshot
func (s *GraphStore) GetGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, pkgerrors.NewSessionNotFound(sessionID)
	}
	return sess.graph.Clone(), nil
}

// ApplyPatchCAS applies p under the write lock, so the version check and
// the swap are one step
func (s *GraphStore) ApplyPatchCAS(ctx context.Context, sessionID string, expectedVersion int64, p patch.Patch) (*aggregates.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, pkgerrors.NewSessionNotFound(sessionID)
	}

	next, err := persistence.Advance(sess.graph, expectedVersion, p, sess.ledger, s.opts.LedgerDedup)
	if err != nil {
		return nil, err
	}

	sess.ledger = append(sess.ledger, persistence.NewEntries(sess.ledger, p)...)
	sess.graph = next

	s.logger.Debug("Patch applied",
		zap.String("sessionID", sessionID),
		zap.String("patchID", p.ID),
		zap.Int64("version", next.Version))
	return next.Clone(), nil
}

// AppliedOps returns the ledger in commit order
func (s *GraphStore) AppliedOps(ctx context.Context, sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, pkgerrors.NewSessionNotFound(sessionID)
	}
	out := make([]string, len(sess.ledger))
	copy(out, sess.ledger)
	return out, nil
}
