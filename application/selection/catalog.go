// Package selection ranks catalog components for placeholder replacement.
package selection

import (
	"context"
	"sort"
	"sync"

	"designgraph/application/ports"
	"designgraph/domain/core/valueobjects"
)

// CatalogSelector ranks candidates from a static catalog, or from the pool
// supplied with the request when there is one
type CatalogSelector struct {
	mu      sync.RWMutex
	catalog []ports.Candidate
}

// NewCatalogSelector creates a selector over catalog
func NewCatalogSelector(catalog []ports.Candidate) *CatalogSelector {
	return &CatalogSelector{catalog: append([]ports.Candidate(nil), catalog...)}
}

// SetCatalog replaces the catalog used when a request carries no pool
func (s *CatalogSelector) SetCatalog(catalog []ports.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = append([]ports.Candidate(nil), catalog...)
}

// Select filters candidates by placeholder type and orders them by score.
// Each requirement a candidate's attrs satisfy adds one point. Ties break
// on component ref.
func (s *CatalogSelector) Select(_ context.Context, req ports.SelectionRequest) ([]ports.Candidate, error) {
	pool := req.Pool
	if len(pool) == 0 {
		s.mu.RLock()
		pool = s.catalog
		s.mu.RUnlock()
	}

	type scored struct {
		c     ports.Candidate
		score float64
	}
	var ranked []scored
	for _, c := range pool {
		if req.PlaceholderType != "" && c.Type != "" && c.Type != req.PlaceholderType {
			continue
		}
		ranked = append(ranked, scored{c: c, score: c.Score + matches(c.Attrs, req.Requirements)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].c.ComponentRef < ranked[j].c.ComponentRef
	})

	out := make([]ports.Candidate, len(ranked))
	for i, r := range ranked {
		out[i] = r.c
	}
	return out, nil
}

func matches(attrs, requirements valueobjects.Attrs) float64 {
	var n float64
	for k, want := range requirements {
		if got, ok := attrs[k]; ok && got.Equal(want) {
			n++
		}
	}
	return n
}
