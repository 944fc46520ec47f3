package selection

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"designgraph/application/ports"
	pkgerrors "designgraph/pkg/errors"
)

// BreakerConfig holds configuration for the selector circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "component-selector",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          20 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerSelector guards a possibly remote selector with a circuit breaker
type BreakerSelector struct {
	next   ports.ComponentSelector
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerSelector wraps next
func NewBreakerSelector(next ports.ComponentSelector, cfg BreakerConfig, logger *zap.Logger) *BreakerSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BreakerSelector{next: next, cb: cb, logger: logger}
}

// Select delegates to the wrapped selector unless the breaker is open
func (s *BreakerSelector) Select(ctx context.Context, req ports.SelectionRequest) ([]ports.Candidate, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.Select(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, pkgerrors.NewUnavailableError(s.cb.Name()).WithCause(err)
		}
		return nil, err
	}
	candidates, _ := res.([]ports.Candidate)
	return candidates, nil
}

// State exposes the breaker state
func (s *BreakerSelector) State() gobreaker.State {
	return s.cb.State()
}
