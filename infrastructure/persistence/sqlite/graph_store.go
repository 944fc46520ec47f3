// Package sqlite implements the Graph Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo). The graph row and the ledger rows of one
// commit are written in a single SQL transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"designgraph/application/ports"
	"designgraph/domain/core/aggregates"
	"designgraph/domain/patch"
	"designgraph/infrastructure/persistence"
	pkgerrors "designgraph/pkg/errors"
)

var _ ports.GraphStore = (*GraphStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS graphs (
	session_id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	graph_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS op_ledger (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	op_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	UNIQUE(session_id, op_id)
);
CREATE INDEX IF NOT EXISTS idx_op_ledger_session ON op_ledger(session_id);
`

const (
	insertGraphSQL  = `INSERT OR IGNORE INTO graphs (session_id, version, graph_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	selectGraphSQL  = `SELECT version, graph_json FROM graphs WHERE session_id = ?`
	selectExistsSQL = `SELECT 1 FROM graphs WHERE session_id = ?`
	casUpdateSQL    = `UPDATE graphs SET version = ?, graph_json = ?, updated_at = ? WHERE session_id = ? AND version = ?`
	insertLedgerSQL = `INSERT OR IGNORE INTO op_ledger (session_id, op_id, version) VALUES (?, ?, ?)`
	selectLedgerSQL = `SELECT op_id FROM op_ledger WHERE session_id = ? ORDER BY seq`
)

// GraphStore persists graphs as JSON documents with a version column
type GraphStore struct {
	db     *sql.DB
	opts   persistence.Options
	logger *zap.Logger
}

// Open opens (or creates) the database at dsn and migrates the schema.
// A single connection is used; SQLite serializes writers anyway.
func Open(ctx context.Context, dsn string, logger *zap.Logger, opts ...persistence.Option) (*GraphStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := New(db, logger, opts...)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The schema is not touched.
func New(db *sql.DB, logger *zap.Logger, opts ...persistence.Option) *GraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphStore{
		db:     db,
		opts:   persistence.NewOptions(opts...),
		logger: logger,
	}
}

// Migrate creates the tables if they do not exist
func (s *GraphStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return pkgerrors.NewDatabaseError("migrate", err)
	}
	return nil
}

// Close closes the database
func (s *GraphStore) Close() error {
	return s.db.Close()
}

// CreateGraph inserts the version-1 graph row
func (s *GraphStore) CreateGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	g, err := aggregates.NewGraph(sessionID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, insertGraphSQL, sessionID, g.Version, string(data), now, now)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("create graph", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("create graph", err)
	}
	if n == 0 {
		return nil, pkgerrors.NewSessionExists(sessionID)
	}

	s.logger.Debug("Graph created", zap.String("sessionID", sessionID))
	return g, nil
}

// GetGraph reads the current snapshot
func (s *GraphStore) GetGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	return loadGraph(ctx, s.db, sessionID)
}

// ApplyPatchCAS reads, applies and writes inside one transaction. The
// UPDATE is conditioned on the expected version, so a writer that raced
// past the read still cannot overwrite a newer row.
func (s *GraphStore) ApplyPatchCAS(ctx context.Context, sessionID string, expectedVersion int64, p patch.Patch) (*aggregates.Graph, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := loadGraph(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	var ledger []string
	if s.opts.LedgerDedup {
		if ledger, err = loadLedger(ctx, tx, sessionID); err != nil {
			return nil, err
		}
	}

	next, err := persistence.Advance(current, expectedVersion, p, ledger, s.opts.LedgerDedup)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx, casUpdateSQL, next.Version, string(data), now, sessionID, expectedVersion)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("update graph", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("update graph", err)
	}
	if n == 0 {
		return nil, pkgerrors.NewVersionMismatch(sessionID, expectedVersion, -1)
	}

	for _, opID := range p.OpIDs() {
		if _, err := tx.ExecContext(ctx, insertLedgerSQL, sessionID, opID, next.Version); err != nil {
			return nil, pkgerrors.NewDatabaseError("record op", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, pkgerrors.NewDatabaseError("commit", err)
	}

	s.logger.Debug("Patch applied",
		zap.String("sessionID", sessionID),
		zap.String("patchID", p.ID),
		zap.Int64("version", next.Version))
	return next, nil
}

// AppliedOps returns the ledger in commit order
func (s *GraphStore) AppliedOps(ctx context.Context, sessionID string) ([]string, error) {
	var one int
	err := s.db.QueryRowContext(ctx, selectExistsSQL, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewSessionNotFound(sessionID)
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("read graph", err)
	}
	return loadLedger(ctx, s.db, sessionID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadGraph(ctx context.Context, q querier, sessionID string) (*aggregates.Graph, error) {
	var (
		version int64
		data    string
	)
	err := q.QueryRowContext(ctx, selectGraphSQL, sessionID).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewSessionNotFound(sessionID)
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("read graph", err)
	}

	var g aggregates.Graph
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("failed to decode graph %s: %w", sessionID, err)
	}
	g.SessionID = sessionID
	g.Version = version
	return g.Normalize(), nil
}

func loadLedger(ctx context.Context, q querier, sessionID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, selectLedgerSQL, sessionID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("read ledger", err)
	}
	defer rows.Close()

	ops := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pkgerrors.NewDatabaseError("read ledger", err)
		}
		ops = append(ops, id)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("read ledger", err)
	}
	return ops, nil
}
