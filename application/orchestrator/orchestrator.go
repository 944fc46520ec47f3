// Package orchestrator turns a task request into a safely committed graph
// mutation.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"designgraph/application/ports"
	"designgraph/application/router"
	"designgraph/application/selection"
	"designgraph/domain/budget"
	"designgraph/domain/core/aggregates"
	"designgraph/domain/events"
	"designgraph/domain/patch"
	"designgraph/domain/policy"
	"designgraph/domain/view"
	pkgerrors "designgraph/pkg/errors"
	"designgraph/pkg/observability"
)

var validate = validator.New()

// Config holds the policy the orchestrator starts with
type Config struct {
	RiskGate     *policy.RiskGate
	Budget       budget.Policy
	DefaultLayer string
}

type policySet struct {
	gate   *policy.RiskGate
	budget budget.Policy
}

// Orchestrator composes the graph store, layer view, budget guard, task
// router and risk gate into one request/response cycle
type Orchestrator struct {
	store        ports.GraphStore
	router       *router.Router
	selector     ports.ComponentSelector
	publisher    ports.EventPublisher
	policy       atomic.Pointer[policySet]
	defaultLayer string
	metrics      *observability.Collector
	tracer       trace.Tracer
	logger       *zap.Logger
}

// New creates an orchestrator. publisher and metrics may be nil; a nil
// selector ranks only the candidates supplied with each request.
func New(
	store ports.GraphStore,
	rt *router.Router,
	selector ports.ComponentSelector,
	publisher ports.EventPublisher,
	cfg Config,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if selector == nil {
		selector = selection.NewCatalogSelector(nil)
	}
	o := &Orchestrator{
		store:        store,
		router:       rt,
		selector:     selector,
		publisher:    publisher,
		defaultLayer: cfg.DefaultLayer,
		metrics:      metrics,
		tracer:       observability.Tracer(),
		logger:       logger,
	}
	o.policy.Store(&policySet{gate: orDefaultGate(cfg.RiskGate), budget: cfg.Budget})
	return o
}

// UpdatePolicy swaps the risk gate and budget, e.g. after a policy reload.
// In-flight requests keep the policy they started with.
func (o *Orchestrator) UpdatePolicy(gate *policy.RiskGate, limits budget.Policy) {
	o.policy.Store(&policySet{gate: orDefaultGate(gate), budget: limits})
	o.logger.Info("Orchestrator policy updated")
}

// orDefaultGate replaces a missing gate with the default risk table and a
// medium default class
func orDefaultGate(gate *policy.RiskGate) *policy.RiskGate {
	if gate != nil {
		return gate
	}
	def, err := policy.NewRiskGate(policy.DefaultRiskTable(), policy.RiskMedium, nil)
	if err != nil {
		panic(err)
	}
	return def
}

// CreateSession creates the empty graph for a session
func (o *Orchestrator) CreateSession(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	ctx, span := observability.StartSpan(ctx, o.tracer, "orchestrator.CreateSession", sessionID)
	started := time.Now()
	g, err := o.store.CreateGraph(ctx, sessionID)
	o.metrics.ObserveStore("create", started)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Session created", zap.String("sessionID", sessionID))
	o.publish(ctx, events.NewGraphCreated(sessionID, g.Version, time.Now().UTC()))
	return g, nil
}

// Run handles one task request.
//
// SESSION_NOT_FOUND, VERSION_MISMATCH and infrastructure failures are
// returned as errors. Every other outcome is a Response whose status is
// complete, pending or blocked. Only an auto decision writes to the store.
func (o *Orchestrator) Run(ctx context.Context, req Request) (resp *Response, err error) {
	if err := validate.Struct(req); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error()).WithCause(err)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	pol := o.policy.Load()

	ctx, span := observability.StartSpan(ctx, o.tracer, "orchestrator.Run", req.SessionID,
		attribute.String("task", req.Task),
		attribute.String("request.id", req.RequestID))
	defer func() {
		if resp != nil {
			span.SetAttributes(attribute.String("status", string(resp.Status)))
			o.metrics.RecordTask(req.Task, string(resp.Status))
		} else {
			o.metrics.RecordTask(req.Task, "error")
		}
		observability.EndSpan(span, err)
	}()

	logger := o.logger.With(
		zap.String("sessionID", req.SessionID),
		zap.String("task", req.Task),
		zap.String("requestID", req.RequestID))

	// 1. snapshot and view
	g, err := o.loadGraph(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	layer := o.layerFor(req)
	lv := view.Project(g, layer)

	// 2. budget
	decision, warnings := budget.Check(pol.budget, lv.NodeCount(), budget.EstimateSize(lv, req.Args))
	o.metrics.RecordBudget(string(decision))
	if decision == budget.Block {
		logger.Info("Request over budget", zap.Strings("warnings", warnings))
		return blocked(req.RequestID, pkgerrors.CodeBudgetExceeded, strings.Join(warnings, "; "), warnings), nil
	}

	// 3/4. candidate patch
	if err := o.router.CheckTask(req.Task); err != nil {
		return blocked(req.RequestID, pkgerrors.CodeOf(err), reasonOf(err), warnings), nil
	}

	tc := router.ToolContext{
		SessionID: req.SessionID,
		RequestID: req.RequestID,
		View:      lv,
		Meta:      g.Meta.Clone(),
	}
	var p patch.Patch
	if req.Task == router.TaskReplacePlaceholders {
		var early *Response
		p, warnings, early, err = o.placeholderPatch(ctx, tc, req.Args, warnings)
		if err != nil {
			return nil, err
		}
		if early != nil {
			return early, nil
		}
	} else {
		p, err = o.router.RunTask(ctx, req.Task, tc, req.Args)
		if err != nil {
			if isRequestRejection(err) {
				return blocked(req.RequestID, pkgerrors.CodeOf(err), reasonOf(err), warnings), nil
			}
			return nil, err
		}
	}

	if p.IsEmpty() {
		return complete(req.RequestID, req.SessionID, g.Version, append(warnings, "task produced no changes")), nil
	}

	// 5. risk
	domain := o.domainFor(req, g)
	disposition := pol.gate.Decide(req.Task, domain)
	logger.Debug("Risk decision", zap.String("decision", string(disposition)), zap.String("domain", domain))

	switch disposition {
	case policy.DecisionBlocked:
		resp := blocked(req.RequestID, pkgerrors.CodePolicyBlocked, reasonOf(pkgerrors.NewPolicyBlocked(req.Task)), warnings)
		resp.Decision = disposition
		return resp, nil
	case policy.DecisionReviewRequired:
		return &Response{
			Status:        StatusPending,
			RequestID:     req.RequestID,
			ProposedPatch: &p,
			Warnings:      warnings,
			Decision:      disposition,
			BaseVersion:   g.Version,
		}, nil
	}

	resp, err = o.commit(ctx, req.SessionID, g.Version, p, req.RequestID, warnings)
	if resp != nil {
		resp.Decision = disposition
	}
	return resp, err
}

// ApprovePatch commits a patch that an external reviewer approved.
// It follows the same compare-and-swap path as an auto decision.
func (o *Orchestrator) ApprovePatch(ctx context.Context, sessionID string, expectedVersion int64, p patch.Patch) (resp *Response, err error) {
	ctx, span := observability.StartSpan(ctx, o.tracer, "orchestrator.ApprovePatch", sessionID,
		attribute.Int64("expected.version", expectedVersion))
	defer func() { observability.EndSpan(span, err) }()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.IsEmpty() {
		return blocked(p.ID, pkgerrors.CodeInvalidPatch, "patch has no operations", nil), nil
	}
	return o.commit(ctx, sessionID, expectedVersion, p, p.ID, nil)
}

func (o *Orchestrator) commit(ctx context.Context, sessionID string, expected int64, p patch.Patch, requestID string, warnings []string) (*Response, error) {
	logger := o.logger.With(
		zap.String("sessionID", sessionID),
		zap.String("patchID", p.ID),
		zap.Int64("version", expected))

	started := time.Now()
	next, err := o.store.ApplyPatchCAS(ctx, sessionID, expected, p)
	o.metrics.ObserveStore("apply_patch", started)
	if err != nil {
		switch {
		case pkgerrors.IsVersionMismatch(err):
			o.metrics.RecordConflict()
			logger.Warn("Version conflict", zap.Error(err))
			return nil, err
		case pkgerrors.IsPatchRejection(err):
			o.metrics.RecordRejection(pkgerrors.CodeOf(err))
			logger.Info("Patch rejected", zap.Error(err))
			return blocked(requestID, pkgerrors.CodeOf(err), reasonOf(err), warnings), nil
		default:
			logger.Error("Patch commit failed", zap.Error(err))
			return nil, storeError("apply_patch", err)
		}
	}

	o.metrics.RecordCommit()
	logger.Info("Patch committed",
		zap.Int64("newVersion", next.Version),
		zap.Int("ops", len(p.Operations)))
	o.publish(ctx, events.NewGraphPatched(sessionID, p.ID, requestID, expected, next.Version, len(p.Operations), time.Now().UTC()))

	return complete(requestID, sessionID, next.Version, warnings), nil
}

// loadGraph reads the current snapshot. Each request gets its own read
// so it observes every commit that finished before it started.
func (o *Orchestrator) loadGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	started := time.Now()
	g, err := o.store.GetGraph(ctx, sessionID)
	o.metrics.ObserveStore("get", started)
	if err != nil {
		return nil, storeError("get_graph", err)
	}
	return g, nil
}

// storeError reports an expired deadline as a timeout and passes every
// other error through
func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewTimeoutError(op).WithCause(err)
	}
	return err
}

func (o *Orchestrator) layerFor(req Request) string {
	if l, ok := req.Args.String("layer"); ok && l != "" {
		return l
	}
	return o.defaultLayer
}

func (o *Orchestrator) domainFor(req Request, g *aggregates.Graph) string {
	if d, ok := req.Args.String("domain"); ok && d != "" {
		return d
	}
	if d, ok := g.Meta.String("domain"); ok {
		return d
	}
	return ""
}

func (o *Orchestrator) publish(ctx context.Context, event events.DomainEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.metrics.RecordPublishError()
		o.logger.Error("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.String("sessionID", event.GetAggregateID()),
			zap.Error(err))
	}
}

// isRequestRejection reports errors that describe a bad or disallowed
// request rather than a broken dependency
func isRequestRejection(err error) bool {
	return pkgerrors.IsValidation(err) ||
		pkgerrors.IsType(err, pkgerrors.ErrorTypeForbidden) ||
		pkgerrors.IsConflict(err)
}

func reasonOf(err error) string {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		return appErr.Message
	}
	return err.Error()
}
