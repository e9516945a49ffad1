package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/memory"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/observability"
)

func collect(t *testing.T, events <-chan core.Event, errs <-chan error) []core.Event {
	t.Helper()
	var out []core.Event
	for ev := range events {
		out = append(out, ev)
	}
	require.NoError(t, <-errs)
	return out
}

func eventTypes(evs []core.Event) []core.EventType {
	out := make([]core.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func deltas(evs []core.Event) []string {
	var out []string
	for _, ev := range evs {
		if ev.Type == core.EventRunResponse && !ev.IsError() {
			out = append(out, ev.Text())
		}
	}
	return out
}

func TestRun_EchoNonStreaming(t *testing.T) {
	a := New("echo", model.NewEchoModel())

	run, err := a.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ECHO: hello", run.Content)
	assert.Equal(t, core.ContentTypeText, run.ContentType)
	assert.Equal(t, a.AgentID(), run.AgentID)
	assert.Equal(t, a.SessionID(), run.SessionID)
	assert.NotEmpty(t, run.SessionID)
	assert.Equal(t, "echo", run.Model)
	assert.Equal(t, 1, run.Metrics.ModelCalls)
}

func TestRunStream_EchoParity(t *testing.T) {
	a := New("echo", model.NewEchoModel())
	ctx := context.Background()

	run, err := a.Run(ctx, "hello")
	require.NoError(t, err)

	events, errs := a.RunStream(ctx, "hello")
	evs := collect(t, events, errs)

	assert.Equal(t, []core.EventType{
		core.EventRunStarted,
		core.EventRunResponse,
		core.EventRunResponse,
		core.EventUpdatingMemory,
		core.EventRunCompleted,
	}, eventTypes(evs))
	assert.Equal(t, []string{"ECHO:", " hello"}, deltas(evs))

	final := evs[len(evs)-1]
	assert.Equal(t, run.Content, final.Content)
	require.NotNil(t, final.Metrics)
	assert.Equal(t, 1, final.Metrics.ModelCalls)

	runID := evs[0].RunID
	assert.NotEmpty(t, runID)
	assert.NotEqual(t, run.RunID, runID)
	for _, ev := range evs {
		assert.Equal(t, runID, ev.RunID)
		assert.Equal(t, a.SessionID(), ev.SessionID)
		assert.Equal(t, a.AgentID(), ev.AgentID)
	}
}

func TestRun_DrainsSameSequence(t *testing.T) {
	a := New("echo", model.NewEchoModel())

	x, err := a.start(context.Background(), "hello", false, nil)
	require.NoError(t, err)
	var evs []core.Event
	for ev := range x.events {
		evs = append(evs, ev)
	}
	require.NoError(t, x.err)

	assert.Equal(t, []core.EventType{
		core.EventRunStarted,
		core.EventRunResponse,
		core.EventUpdatingMemory,
		core.EventRunCompleted,
	}, eventTypes(evs))
	assert.Equal(t, []State{
		StateInit,
		StateContextResolution,
		StateStorageRead,
		StateMessagePrep,
		StateModelInvoke,
		StateMemoryUpdate,
		StateStorageWrite,
		StateFinalize,
		StateComplete,
	}, x.trail)
}

func TestRun_NoModel(t *testing.T) {
	a := New("empty", nil)

	_, err := a.Run(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoModel)

	events, errs := a.RunStream(context.Background(), "hi")
	var evs []core.Event
	for ev := range events {
		evs = append(evs, ev)
	}
	assert.Empty(t, evs)
	assert.ErrorIs(t, <-errs, ErrNoModel)
}

type blockingModel struct {
	release chan struct{}
}

func (m *blockingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		select {
		case <-m.release:
			respCh <- model.Response{Content: "done", FinishReason: "stop"}
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()
	return respCh, errCh
}

func (m *blockingModel) Info() model.Info { return model.Info{Name: "blocking", Provider: "mock"} }

func TestRun_RejectsConcurrentRun(t *testing.T) {
	m := &blockingModel{release: make(chan struct{})}
	a := New("busy", m)
	ctx := context.Background()

	events, errs := a.RunStream(ctx, "first")
	_, err := a.Run(ctx, "second")
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(m.release)
	evs := collect(t, events, errs)
	assert.Equal(t, "done", evs[len(evs)-1].Content)

	run, err := a.Run(ctx, "third")
	require.NoError(t, err)
	assert.Equal(t, "done", run.Content)
}

func TestRunStream_ModelErrorFragment(t *testing.T) {
	boom := errors.New("boom")
	a := New("flaky", model.NewMockModel("flaky", model.MockResponse{Content: "partial text", Err: boom}))

	events, errs := a.RunStream(context.Background(), "x")
	evs := collect(t, events, errs)

	assert.Equal(t, []string{"partial", " text"}, deltas(evs))
	last := evs[len(evs)-1]
	assert.Equal(t, core.EventRunResponse, last.Type)
	assert.True(t, last.IsError())
	assert.Contains(t, last.Text(), "boom")
	assert.NotContains(t, eventTypes(evs), core.EventRunCompleted)
}

func TestRun_ModelError(t *testing.T) {
	boom := errors.New("boom")
	a := New("flaky", model.NewMockModel("flaky", model.MockResponse{Err: boom}))

	run, err := a.Run(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var me *ModelError
	assert.ErrorAs(t, err, &me)
	require.NotNil(t, run)
	assert.Empty(t, a.Memory().Runs())
}

func TestRunAsync(t *testing.T) {
	a := New("echo", model.NewEchoModel())

	select {
	case res := <-a.RunAsync(context.Background(), "async"):
		require.NoError(t, res.Err)
		assert.Equal(t, "ECHO: async", res.Run.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("async run did not complete")
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := New("blocked", &blockingModel{release: make(chan struct{})}, func(o *Options) { o.EventBufferSize = 1 })

	_, err := a.Run(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClone_OwnershipPolicy(t *testing.T) {
	a := New("echo", model.NewEchoModel(), func(o *Options) {
		o.AgentData = map[string]any{"nested": map[string]any{"k": "v"}}
		o.Instructions = []string{"one"}
	})
	ctx := context.Background()
	_, err := a.Run(ctx, "first")
	require.NoError(t, err)

	c := a.Clone()
	assert.Equal(t, a.AgentID(), c.AgentID())
	assert.Equal(t, a.SessionID(), c.SessionID())
	assert.Equal(t, a.AgentData(), c.AgentData())
	assert.Same(t, a.Model(), c.Model())

	c.opts.Instructions[0] = "changed"
	assert.Equal(t, "one", a.opts.Instructions[0])
	c.agentData["nested"].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", a.AgentData()["nested"].(map[string]any)["k"])

	_, err = c.Run(ctx, "second")
	require.NoError(t, err)
	assert.Len(t, a.Memory().Runs(), 1)
	assert.Len(t, c.Memory().Runs(), 2)

	other := a.Clone(func(o *Options) { o.SessionID = "other" })
	assert.Equal(t, "other", other.SessionID())
	assert.Equal(t, a.AgentID(), other.AgentID())
}

func TestHooks_Order(t *testing.T) {
	var seen []HookType
	record := func(ctx context.Context, hc *HookContext) error {
		seen = append(seen, hc.Type)
		return nil
	}
	var hooks []Hook
	for _, ht := range []HookType{HookBeforeRun, HookAfterRun, HookBeforeModel, HookAfterModel, HookBeforeTool, HookAfterTool, HookOnError} {
		hooks = append(hooks, NewFunctionHook(ht, record))
	}
	m := model.NewMockModel("m", model.MockResponse{ToolCalls: []core.ToolCall{model.NewToolCall("c1", "add", `{"a":1,"b":2}`)}})
	a := New("hooked", m, func(o *Options) {
		o.Tools = append(o.Tools, addTool())
		o.Hooks = hooks
	})

	_, err := a.Run(context.Background(), "sum")
	require.NoError(t, err)
	assert.Equal(t, []HookType{HookBeforeRun, HookBeforeModel, HookAfterModel, HookBeforeTool, HookAfterTool, HookAfterRun}, seen)
}

func TestHooks_BeforeRunErrorAborts(t *testing.T) {
	var failed error
	a := New("hooked", model.NewEchoModel(), func(o *Options) {
		o.Hooks = []Hook{
			NewFunctionHook(HookBeforeRun, func(context.Context, *HookContext) error { return errors.New("denied") }),
			NewFunctionHook(HookOnError, func(_ context.Context, hc *HookContext) error {
				failed = hc.Err
				return nil
			}),
		}
	})

	_, err := a.Run(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
	assert.Equal(t, err, failed)
}

func TestRun_MetricsAndSpans(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	m := model.NewMockModel("m", model.MockResponse{
		Content:   "calling",
		ToolCalls: []core.ToolCall{model.NewToolCall("c1", "add", `{"a":1,"b":2}`)},
		Usage:     &model.TokenUsage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6},
	})
	a := New("observed", m, func(o *Options) {
		o.Tools = append(o.Tools, addTool())
		o.Metrics = metrics
		o.Tracer = provider.Tracer("test")
	})

	run, err := a.Run(context.Background(), "sum")
	require.NoError(t, err)
	assert.Equal(t, 6, run.Metrics.TotalTokens)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunCounter.WithLabelValues("observed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ModelRequestCounter.WithLabelValues("mock", "m", "success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.TokensUsed.WithLabelValues("mock", "m", "prompt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ToolCallCounter.WithLabelValues("add", "success")))

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"agent.model", "agent.tool", "agent.run"}, names)
}

func TestFork_OwnsMembersAndReasoner(t *testing.T) {
	shared := New("Helper", model.NewEchoModel())
	writer := New("Writer", model.NewEchoModel(), func(o *Options) { o.Team = []*Agent{shared} })
	reasoner := New("Reasoner", stepsModel(`{"reasoning_steps":[{"title":"done","next_action":"final_answer"}]}`),
		func(o *Options) { o.ResponseModel = core.ReasoningSteps{} })
	tmpl := New("Lead", replyModel("final"), func(o *Options) {
		o.Team = []*Agent{writer, shared}
		o.Reasoning = true
		o.ReasoningAgent = reasoner
	})

	f1 := tmpl.Fork("s1")
	f2 := tmpl.Fork("s2")
	assert.Equal(t, "s1", f1.SessionID())
	assert.Equal(t, tmpl.AgentID(), f1.AgentID())

	team := f1.Team()
	require.Len(t, team, 2)
	assert.NotSame(t, writer, team[0])
	assert.NotSame(t, f2.Team()[0], team[0])
	assert.Equal(t, "s1/Writer", team[0].SessionID())
	assert.Equal(t, "s1/Writer/Helper", team[1].SessionID(), "forked on first reach through Writer")
	assert.Same(t, team[1], team[0].Team()[0], "a member reachable twice is forked once")
	assert.Same(t, writer, tmpl.Team()[0])

	require.NotNil(t, f1.opts.ReasoningAgent)
	assert.NotSame(t, reasoner, f1.opts.ReasoningAgent)
	assert.NotSame(t, f2.opts.ReasoningAgent, f1.opts.ReasoningAgent)
	assert.Equal(t, "s1/Reasoner", f1.opts.ReasoningAgent.SessionID())

	var wg sync.WaitGroup
	for _, f := range []*Agent{f1, f2} {
		wg.Add(1)
		go func(f *Agent) {
			defer wg.Done()
			run, err := f.Run(context.Background(), "solve")
			if assert.NoError(t, err) && assert.NotNil(t, run.ExtraData) {
				assert.Len(t, run.ExtraData.ReasoningSteps, 1)
			}
		}(f)
	}
	wg.Wait()

	assert.Len(t, f1.opts.ReasoningAgent.Memory().Runs(), 1)
	assert.Len(t, f2.opts.ReasoningAgent.Memory().Runs(), 1)
	assert.Empty(t, reasoner.Memory().Runs())
}

// recordingMemory records the order of the post-run memory updates.
type recordingMemory struct {
	memory.Memory
	mu    sync.Mutex
	calls []string
}

func (m *recordingMemory) Settings() memory.Settings {
	return memory.Settings{
		CreateUserMemories:           true,
		UpdateUserMemoriesAfterRun:   true,
		CreateSessionSummary:         true,
		UpdateSessionSummaryAfterRun: true,
	}
}

func (m *recordingMemory) UpdateMemory(_ context.Context, input string) (string, error) {
	time.Sleep(10 * time.Millisecond)
	m.record("memory:" + input)
	return "", errors.New("classifier down")
}

func (m *recordingMemory) UpdateSummary(context.Context) (*core.SessionSummary, error) {
	m.record("summary")
	return nil, nil
}

func (m *recordingMemory) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func TestRun_MemoryUpdatesInOrder(t *testing.T) {
	mem := &recordingMemory{Memory: memory.NewAgentMemory()}
	a := New("echo", model.NewEchoModel(), func(o *Options) { o.Memory = mem })

	run, err := a.Run(context.Background(), "hello")
	require.NoError(t, err, "a failed memory update never fails the run")
	assert.Equal(t, "ECHO: hello", run.Content)
	assert.Equal(t, []string{"memory:hello", "summary"}, mem.calls)
}
