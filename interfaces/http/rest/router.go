package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"designgraph/application/commands/bus"
	querybus "designgraph/application/queries/bus"
	"designgraph/interfaces/http/rest/handlers"
	"designgraph/interfaces/http/rest/middleware"
	pkgerrors "designgraph/pkg/errors"
	"designgraph/pkg/observability"
)

// Options toggles optional router features
type Options struct {
	EnableCORS bool
	// Debug includes stack traces and internal messages in error bodies
	Debug bool
	// TaskRateLimit caps task and patch requests per session per minute.
	// Zero disables the limit.
	TaskRateLimit int
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	metrics    *observability.Collector
	opts       Options
	logger     *zap.Logger
}

// NewRouter creates a new router instance. metrics may be nil, which
// disables /metrics.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	metrics *observability.Collector,
	opts Options,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		metrics:    metrics,
		opts:       opts,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errorHandler := pkgerrors.NewErrorHandler(rt.logger, rt.opts.Debug)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	sessionHandler := handlers.NewSessionHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)
	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", sessionHandler.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", sessionHandler.GetSession)
			r.Get("/layers/{layer}", sessionHandler.GetLayerView)
			r.Get("/ops", sessionHandler.GetAppliedOps)
			r.Group(func(r chi.Router) {
				if rt.opts.TaskRateLimit > 0 {
					limiter := middleware.NewSlidingWindowLimiter(rt.opts.TaskRateLimit, time.Minute)
					r.Use(middleware.SessionRateLimit(limiter, errorHandler))
				}
				r.Post("/tasks", sessionHandler.RunTask)
				r.Post("/patches", sessionHandler.ApprovePatch)
			})
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
