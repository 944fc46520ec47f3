package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"designgraph/application/router"
	"designgraph/application/tools"
	"designgraph/domain/budget"
	domainconfig "designgraph/domain/config"
	"designgraph/domain/core/aggregates"
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/events"
	"designgraph/domain/patch"
	"designgraph/domain/policy"
	"designgraph/domain/view"
	"designgraph/infrastructure/persistence/memory"
	pkgerrors "designgraph/pkg/errors"
	"designgraph/pkg/observability"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, es []events.DomainEvent) error {
	for _, e := range es {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.GetEventType()
	}
	return out
}

type harness struct {
	o       *Orchestrator
	store   *memory.GraphStore
	router  *router.Router
	pub     *recordingPublisher
	metrics *observability.Collector
}

func newHarness(t *testing.T, mutate func(*domainconfig.DomainConfig)) *harness {
	t.Helper()
	dc := domainconfig.DefaultDomainConfig()
	if mutate != nil {
		mutate(dc)
	}
	require.NoError(t, dc.Validate())

	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	gate, err := router.NewPhaseGate(dc.Phase, dc.Phases)
	require.NoError(t, err)
	riskGate, err := dc.RiskGate()
	require.NoError(t, err)

	h := &harness{
		store:   memory.NewGraphStore(nil),
		router:  router.New(reg, gate, nil),
		pub:     &recordingPublisher{},
		metrics: observability.NewCollector("test"),
	}
	h.o = New(h.store, h.router, nil, h.pub, Config{
		RiskGate:     riskGate,
		Budget:       dc.Budget,
		DefaultLayer: dc.DefaultLayer,
	}, h.metrics, nil)
	return h
}

func (h *harness) session(t *testing.T, id string) {
	t.Helper()
	_, err := h.o.CreateSession(context.Background(), id)
	require.NoError(t, err)
}

func (h *harness) seed(t *testing.T, sessionID string, ops ...patch.Operation) *aggregates.Graph {
	t.Helper()
	ctx := context.Background()
	g, err := h.store.GetGraph(ctx, sessionID)
	require.NoError(t, err)
	p := patch.Patch{ID: "seed"}
	for i, op := range ops {
		p.Operations = append(p.Operations, patch.NewOp(fmt.Sprintf("seed-%d-%d", g.Version, i), op))
	}
	next, err := h.store.ApplyPatchCAS(ctx, sessionID, g.Version, p)
	require.NoError(t, err)
	return next
}

func (h *harness) graph(t *testing.T, sessionID string) *aggregates.Graph {
	t.Helper()
	g, err := h.store.GetGraph(context.Background(), sessionID)
	require.NoError(t, err)
	return g
}

func str(s string) valueobjects.Value { return valueobjects.String(s) }

func addArgs(id, typ string) valueobjects.Attrs {
	return valueobjects.Attrs{"id": str(id), "type": str(typ)}
}

func TestOrchestrator_Scenarios(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.session(t, "s1")

	// A: add p1 at version 1
	resp, err := h.o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskAddComponent, RequestID: "r1", Args: addArgs("p1", "panel")})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, resp.Status)
	assert.Equal(t, policy.DecisionAuto, resp.Decision)
	require.NotNil(t, resp.Patch)
	assert.Equal(t, int64(2), resp.Patch.Version)
	assert.True(t, h.graph(t, "s1").HasNode("p1"))

	// B: edge to a missing node is rejected and nothing changes
	resp, err = h.o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskConnect, RequestID: "r2", Args: valueobjects.Attrs{
		"id": str("e1"), "source_id": str("p1"), "target_id": str("inv1"), "kind": str("electrical"),
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, resp.Status)
	assert.Equal(t, pkgerrors.CodeMissingReference, resp.Code)
	g := h.graph(t, "s1")
	assert.Equal(t, int64(2), g.Version)
	assert.True(t, g.HasNode("p1"))
	assert.Empty(t, g.Edges)

	// C: add inv1, then the edge
	resp, err = h.o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskAddComponent, RequestID: "r3", Args: addArgs("inv1", "inverter")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Patch.Version)

	resp, err = h.o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskConnect, RequestID: "r4", Args: valueobjects.Attrs{
		"id": str("e1"), "source_id": str("p1"), "target_id": str("inv1"),
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, resp.Status)
	assert.Equal(t, int64(4), resp.Patch.Version)

	lv := view.Project(h.graph(t, "s1"), "single-line")
	assert.True(t, lv.HasNode("p1"))
	assert.True(t, lv.HasNode("inv1"))
	require.Len(t, lv.Edges, 1)
	assert.Equal(t, "e1", lv.Edges[0].ID)

	assert.Equal(t, []string{
		events.TypeGraphCreated,
		events.TypeGraphPatched,
		events.TypeGraphPatched,
		events.TypeGraphPatched,
	}, h.pub.types())
	assert.Equal(t, float64(3), testutil.ToFloat64(h.metrics.PatchCommits))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.PatchRejections.WithLabelValues(pkgerrors.CodeMissingReference)))
}

func TestOrchestrator_Blocked(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func(*domainconfig.DomainConfig)
		req      Request
		wantCode string
	}{
		{
			name:     "unknown task",
			req:      Request{SessionID: "s1", Task: "destroy_session"},
			wantCode: pkgerrors.CodeUnsupportedTask,
		},
		{
			name:     "phase violation",
			mutate:   func(c *domainconfig.DomainConfig) { c.Phase = domainconfig.PhaseSetup },
			req:      Request{SessionID: "s1", Task: tools.TaskGenerateWiring},
			wantCode: pkgerrors.CodePhaseViolation,
		},
		{
			name:     "invalid tool arguments",
			req:      Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: valueobjects.Attrs{"id": str("x")}},
			wantCode: pkgerrors.CodeInvalidArguments,
		},
		{
			name: "domain override blocks",
			mutate: func(c *domainconfig.DomainConfig) {
				c.Overrides = []policy.Override{{Domain: "marine", Task: tools.TaskAddComponent, Class: policy.RiskHigh}}
			},
			req: Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: valueobjects.Attrs{
				"id": str("x"), "type": str("panel"), "domain": str("marine"),
			}},
			wantCode: pkgerrors.CodePolicyBlocked,
		},
		{
			name:     "over hard budget",
			mutate:   func(c *domainconfig.DomainConfig) { c.Budget = budget.Policy{HardNodeLimit: 1} },
			req:      Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("x", "panel")},
			wantCode: pkgerrors.CodeBudgetExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.mutate)
			h.session(t, "s1")
			h.seed(t, "s1", patch.AddNode{ID: "a", Type: "panel"}, patch.AddNode{ID: "b", Type: "panel"})

			resp, err := h.o.Run(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, StatusBlocked, resp.Status)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Reason)
			assert.Nil(t, resp.Patch)

			g := h.graph(t, "s1")
			assert.Equal(t, int64(2), g.Version)
			assert.Len(t, g.Nodes, 2)
		})
	}
}

func TestOrchestrator_BudgetWarningKeepsGoing(t *testing.T) {
	h := newHarness(t, func(c *domainconfig.DomainConfig) {
		c.Budget = budget.Policy{SoftNodeLimit: 1, HardNodeLimit: 10}
	})
	h.session(t, "s1")
	h.seed(t, "s1", patch.AddNode{ID: "a", Type: "panel"}, patch.AddNode{ID: "b", Type: "panel"})

	resp, err := h.o.Run(context.Background(), Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("c", "panel")})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, resp.Status)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "soft limit")
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.BudgetDecisions.WithLabelValues(string(budget.Warn))))
}

func TestOrchestrator_PendingThenApprove(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.session(t, "s1")
	h.seed(t, "s1", patch.AddNode{ID: "a", Type: "panel"})

	resp, err := h.o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskRemoveComponent, RequestID: "r1", Args: valueobjects.Attrs{"id": str("a")}})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, resp.Status)
	assert.Equal(t, policy.DecisionReviewRequired, resp.Decision)
	assert.Equal(t, int64(2), resp.BaseVersion)
	require.NotNil(t, resp.ProposedPatch)
	assert.Nil(t, resp.Patch)
	assert.True(t, h.graph(t, "s1").HasNode("a"), "pending must not write")

	approved, err := h.o.ApprovePatch(ctx, "s1", resp.BaseVersion, *resp.ProposedPatch)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, approved.Status)
	assert.Equal(t, int64(3), approved.Patch.Version)
	assert.False(t, h.graph(t, "s1").HasNode("a"))

	// the same approval again is stale
	_, err = h.o.ApprovePatch(ctx, "s1", resp.BaseVersion, *resp.ProposedPatch)
	assert.True(t, pkgerrors.IsVersionMismatch(err))

	empty, err := h.o.ApprovePatch(ctx, "s1", 3, patch.Patch{})
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, empty.Status)
	assert.Equal(t, pkgerrors.CodeInvalidPatch, empty.Code)
}

func TestOrchestrator_Errors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.o.Run(ctx, Request{SessionID: "nope", Task: tools.TaskAddComponent, Args: addArgs("a", "panel")})
	assert.True(t, pkgerrors.IsSessionNotFound(err))

	_, err = h.o.Run(ctx, Request{Task: tools.TaskAddComponent})
	assert.True(t, pkgerrors.IsValidation(err))

	h.session(t, "s1")
	_, err = h.o.CreateSession(ctx, "s1")
	assert.True(t, pkgerrors.IsSessionExists(err))
}

// racingStore commits a competing patch right before the orchestrator's
// own commit
type racingStore struct {
	*memory.GraphStore
	once sync.Once
}

func (s *racingStore) ApplyPatchCAS(ctx context.Context, sessionID string, expected int64, p patch.Patch) (*aggregates.Graph, error) {
	s.once.Do(func() {
		_, _ = s.GraphStore.ApplyPatchCAS(ctx, sessionID, expected, patch.Patch{ID: "rival", Operations: []patch.PatchOp{
			patch.NewOp("rival", patch.AddNode{ID: "rival", Type: "panel"}),
		}})
	})
	return s.GraphStore.ApplyPatchCAS(ctx, sessionID, expected, p)
}

func TestOrchestrator_VersionMismatchPropagates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	store := &racingStore{GraphStore: h.store}
	o := New(store, h.router, nil, nil, Config{
		RiskGate:     mustGate(t),
		Budget:       budget.DefaultPolicy(),
		DefaultLayer: "all",
	}, h.metrics, nil)

	_, err := o.CreateSession(ctx, "s1")
	require.NoError(t, err)

	resp, err := o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("a", "panel")})
	assert.Nil(t, resp)
	assert.True(t, pkgerrors.IsVersionMismatch(err))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.CASConflicts))

	g := h.graph(t, "s1")
	assert.True(t, g.HasNode("rival"))
	assert.False(t, g.HasNode("a"))
}

func mustGate(t *testing.T) *policy.RiskGate {
	t.Helper()
	g, err := domainconfig.DefaultDomainConfig().RiskGate()
	require.NoError(t, err)
	return g
}

func TestOrchestrator_EmptyPatch(t *testing.T) {
	h := newHarness(t, nil)
	h.session(t, "s1")
	h.seed(t, "s1", patch.AddNode{ID: "inv", Type: "inverter"})

	resp, err := h.o.Run(context.Background(), Request{SessionID: "s1", Task: tools.TaskGenerateWiring})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, resp.Status)
	assert.Equal(t, int64(2), resp.Patch.Version)
	assert.Contains(t, resp.Warnings, "task produced no changes")
	assert.Equal(t, int64(2), h.graph(t, "s1").Version)
}

func TestOrchestrator_PublishFailureDoesNotFailCommit(t *testing.T) {
	h := newHarness(t, nil)
	h.session(t, "s1")
	h.pub.err = errors.New("bus down")

	resp, err := h.o.Run(context.Background(), Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("a", "panel")})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, resp.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.EventPublishErrs))
}

func TestOrchestrator_UpdatePolicy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.session(t, "s1")

	strict, err := policy.NewRiskGate(map[string]policy.RiskClass{tools.TaskAddComponent: policy.RiskHigh}, policy.RiskHigh, nil)
	require.NoError(t, err)
	h.o.UpdatePolicy(strict, budget.DefaultPolicy())

	resp, err := h.o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("a", "panel")})
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, resp.Status)
	assert.Equal(t, pkgerrors.CodePolicyBlocked, resp.Code)
	assert.Equal(t, policy.DecisionBlocked, resp.Decision)
}

func TestOrchestrator_DomainFromMeta(t *testing.T) {
	h := newHarness(t, func(c *domainconfig.DomainConfig) {
		c.Overrides = []policy.Override{{Domain: "solar", Task: tools.TaskAddComponent, Class: policy.RiskMedium}}
	})
	h.session(t, "s1")
	h.seed(t, "s1", patch.SetMeta{Values: valueobjects.Attrs{"domain": str("solar")}})

	resp, err := h.o.Run(context.Background(), Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("a", "panel")})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, resp.Status)
}

func TestOrchestrator_ConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.session(t, "s1")

	const requests = 12
	var (
		mu        sync.Mutex
		completed int
		conflicts int
	)
	var eg errgroup.Group
	for i := 0; i < requests; i++ {
		id := fmt.Sprintf("n%d", i)
		eg.Go(func() error {
			resp, err := h.o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs(id, "panel")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && resp.Status == StatusComplete:
				completed++
			case pkgerrors.IsVersionMismatch(err):
				conflicts++
			default:
				return fmt.Errorf("unexpected outcome: %v %v", resp, err)
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.Equal(t, requests, completed+conflicts)
	assert.GreaterOrEqual(t, completed, 1)
	g := h.graph(t, "s1")
	assert.Equal(t, int64(1+completed), g.Version)
	assert.Len(t, g.Nodes, completed)
}

func candidate(ref, typ string, score float64) valueobjects.Value {
	return valueobjects.Map(map[string]valueobjects.Value{
		"component_ref": str(ref),
		"type":          str(typ),
		"score":         valueobjects.Number(score),
	})
}

func TestOrchestrator_ReplacePlaceholders(t *testing.T) {
	ctx := context.Background()
	placeholder := valueobjects.Attrs{"placeholder": valueobjects.Bool(true)}

	t.Run("no placeholders", func(t *testing.T) {
		h := newHarness(t, nil)
		h.session(t, "s1")
		h.seed(t, "s1", patch.AddNode{ID: "a", Type: "panel"})

		resp, err := h.o.Run(ctx, Request{SessionID: "s1", Task: router.TaskReplacePlaceholders})
		require.NoError(t, err)
		assert.Equal(t, StatusComplete, resp.Status)
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "no placeholder")
	})

	t.Run("no candidates", func(t *testing.T) {
		h := newHarness(t, nil)
		h.session(t, "s1")
		h.seed(t, "s1", patch.AddNode{ID: "ph1", Type: "inverter", Attrs: placeholder})

		resp, err := h.o.Run(ctx, Request{SessionID: "s1", Task: router.TaskReplacePlaceholders})
		require.NoError(t, err)
		assert.Equal(t, StatusBlocked, resp.Status)
		assert.Equal(t, pkgerrors.CodeNoCandidates, resp.Code)
	})

	t.Run("proposal then approval", func(t *testing.T) {
		h := newHarness(t, nil)
		h.session(t, "s1")
		h.seed(t, "s1",
			patch.AddNode{ID: "ph1", Type: "inverter", Attrs: placeholder},
			patch.AddNode{ID: "ph2", Type: "battery", Attrs: placeholder},
			patch.AddNode{ID: "p1", Type: "panel"},
		)

		resp, err := h.o.Run(ctx, Request{SessionID: "s1", Task: router.TaskReplacePlaceholders, RequestID: "r9", Args: valueobjects.Attrs{
			"candidates": valueobjects.List(
				candidate("inv-small", "inverter", 1),
				candidate("inv-large", "inverter", 2),
			),
			"attrs":      valueobjects.Map(map[string]valueobjects.Value{"vendor": str("acme")}),
		}})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, resp.Status)
		require.NotNil(t, resp.ProposedPatch)
		require.Len(t, resp.ProposedPatch.Operations, 1)
		assert.Equal(t, "r9:replace_placeholders:ph1", resp.ProposedPatch.Operations[0].OpID)
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "ph2")

		approved, err := h.o.ApprovePatch(ctx, "s1", resp.BaseVersion, *resp.ProposedPatch)
		require.NoError(t, err)
		assert.Equal(t, StatusComplete, approved.Status)

		n, ok := h.graph(t, "s1").Node("ph1")
		require.True(t, ok)
		require.NotNil(t, n.ComponentRef)
		assert.Equal(t, "inv-large", *n.ComponentRef)
		assert.False(t, n.IsPlaceholder())
		vendor, _ := n.Attrs.String("vendor")
		assert.Equal(t, "acme", vendor)
	})

	t.Run("type filter", func(t *testing.T) {
		h := newHarness(t, nil)
		h.session(t, "s1")
		h.seed(t, "s1", patch.AddNode{ID: "ph1", Type: "inverter", Attrs: placeholder})

		resp, err := h.o.Run(ctx, Request{SessionID: "s1", Task: router.TaskReplacePlaceholders, Args: valueobjects.Attrs{
			"placeholder_type": str("battery"),
		}})
		require.NoError(t, err)
		assert.Equal(t, StatusComplete, resp.Status)
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "battery")
	})
}

// gatedStore holds every GetGraph until release is closed or the caller's
// context ends
type gatedStore struct {
	*memory.GraphStore
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) GetGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
		return s.GraphStore.GetGraph(context.Background(), sessionID)
	}
}

func TestOrchestrator_CancelledRequestDoesNotAffectOthers(t *testing.T) {
	h := newHarness(t, nil)
	h.session(t, "s1")
	store := &gatedStore{GraphStore: h.store, entered: make(chan struct{}, 2), release: make(chan struct{})}
	o := New(store, h.router, nil, nil, Config{RiskGate: mustGate(t), Budget: budget.DefaultPolicy(), DefaultLayer: "all"}, nil, nil)

	type result struct {
		resp *Response
		err  error
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	first := make(chan result, 1)
	go func() {
		resp, err := o.Run(cancelCtx, Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("a", "panel")})
		first <- result{resp, err}
	}()
	<-store.entered

	second := make(chan result, 1)
	go func() {
		resp, err := o.Run(context.Background(), Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("b", "panel")})
		second <- result{resp, err}
	}()

	cancel()
	a := <-first
	assert.ErrorIs(t, a.err, context.Canceled)

	close(store.release)
	b := <-second
	require.NoError(t, b.err)
	assert.Equal(t, StatusComplete, b.resp.Status)
	assert.True(t, h.graph(t, "s1").HasNode("b"))
}

type slowStore struct {
	*memory.GraphStore
}

func (s *slowStore) GetGraph(context.Context, string) (*aggregates.Graph, error) {
	return nil, pkgerrors.NewDatabaseError("get_graph", context.DeadlineExceeded)
}

func TestOrchestrator_StoreDeadlineIsTimeout(t *testing.T) {
	h := newHarness(t, nil)
	o := New(&slowStore{GraphStore: h.store}, h.router, nil, nil, Config{RiskGate: mustGate(t), DefaultLayer: "all"}, nil, nil)

	resp, err := o.Run(context.Background(), Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("a", "panel")})
	assert.Nil(t, resp)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrchestrator_MissingRiskGateUsesDefault(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	o := New(h.store, h.router, nil, nil, Config{Budget: budget.DefaultPolicy(), DefaultLayer: "all"}, nil, nil)
	_, err := o.CreateSession(ctx, "s1")
	require.NoError(t, err)

	resp, err := o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskAddComponent, Args: addArgs("a", "panel")})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, resp.Status)

	o.UpdatePolicy(nil, budget.DefaultPolicy())
	resp, err = o.Run(ctx, Request{SessionID: "s1", Task: tools.TaskRemoveComponent, Args: valueobjects.Attrs{"id": str("a")}})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, resp.Status)
	assert.Equal(t, policy.DecisionReviewRequired, resp.Decision)
}
