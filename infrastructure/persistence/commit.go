// Package persistence holds what the Graph Store adapters share: store
// options and the compare-and-swap step that turns a persisted snapshot
// plus a patch into the next snapshot.
package persistence

import (
	"designgraph/domain/core/aggregates"
	"designgraph/domain/patch"
	pkgerrors "designgraph/pkg/errors"
)

// Options configures a Graph Store adapter
type Options struct {
	// LedgerDedup seeds the engine's seen set from the persisted ledger,
	// so op_ids committed by earlier patches are skipped. Off by default:
	// idempotency is then scoped to a single submission.
	LedgerDedup bool
}

// Option mutates Options
type Option func(*Options)

// WithLedgerDedup toggles cross-submission op_id deduplication
func WithLedgerDedup(enabled bool) Option {
	return func(o *Options) { o.LedgerDedup = enabled }
}

// NewOptions applies opts over the defaults
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Advance checks current against expected and applies p.
// ledger is only consulted when dedup is set. The result carries
// current.Version+1. current is never modified.
func Advance(current *aggregates.Graph, expected int64, p patch.Patch, ledger []string, dedup bool) (*aggregates.Graph, error) {
	if current.Version != expected {
		return nil, pkgerrors.NewVersionMismatch(current.SessionID, expected, current.Version)
	}

	seen := patch.NewSeenSet()
	if dedup {
		seen = patch.NewSeenSet(ledger...)
	}
	next, _, err := patch.Apply(current, p, seen)
	if err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	return next, nil
}

// NewEntries returns the op_ids of p that are not yet in ledger, in
// first-seen order
func NewEntries(ledger []string, p patch.Patch) []string {
	have := patch.NewSeenSet(ledger...)
	var out []string
	for _, id := range p.OpIDs() {
		if have.Has(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
