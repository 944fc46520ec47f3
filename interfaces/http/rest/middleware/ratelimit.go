package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	pkgerrors "designgraph/pkg/errors"
)

// SlidingWindowLimiter admits at most limit requests per key within a
// trailing window
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string][]time.Time
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string][]time.Time),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// Allow records a request for key and reports whether it fits the window
func (l *SlidingWindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.windowSize)

	kept := l.windows[key][:0]
	for _, at := range l.windows[key] {
		if at.After(windowStart) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= l.limit {
		l.windows[key] = kept
		return false
	}
	l.windows[key] = append(kept, now)
	return true
}

// Reset forgets the history for key
func (l *SlidingWindowLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// SessionRateLimit limits requests per session id URL parameter. It must
// be mounted inside a route that declares {sessionID}.
func SessionRateLimit(limiter *SlidingWindowLimiter, errorHandler *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "session:" + chi.URLParam(r, "sessionID")
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", "60")
				errorHandler.Handle(w, r, pkgerrors.NewRateLimited(key))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
