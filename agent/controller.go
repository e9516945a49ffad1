package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/observability"
	"github.com/hupe1980/agentcore/output"
	"github.com/hupe1980/agentcore/tool"
)

// State names one stage of the run state machine.
type State string

// Run stages in execution order. REASONING and TOOL_RESOLUTION are
// optional; ERROR is terminal.
const (
	StateInit              State = "INIT"
	StateContextResolution State = "CONTEXT_RESOLUTION"
	StateStorageRead       State = "STORAGE_READ"
	StateMessagePrep       State = "MESSAGE_PREP"
	StateReasoning         State = "REASONING"
	StateModelInvoke       State = "MODEL_INVOKE"
	StateToolResolution    State = "TOOL_RESOLUTION"
	StateMemoryUpdate      State = "MEMORY_UPDATE"
	StateStorageWrite      State = "STORAGE_WRITE"
	StateFinalize          State = "FINALIZE"
	StateComplete          State = "COMPLETE"
	StateError             State = "ERROR"
)

// ModelError reports a failed model invocation.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string { return "model invocation failed: " + e.Err.Error() }

// Unwrap returns the underlying error.
func (e *ModelError) Unwrap() error { return e.Err }

func isModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}

// execution is the state of one run. It is confined to the run goroutine;
// events and errs are the only values shared with the caller.
type execution struct {
	a      *Agent
	ctx    context.Context
	input  string
	stream bool
	ro     runOptions

	events chan core.Event
	errs   chan error
	err    error

	logger    logging.Logger
	tracer    trace.Tracer
	span      trace.Span
	started   time.Time
	state     State
	trail     []State
	abandoned bool

	run       *core.RunResponse
	schema    *output.Schema
	native    bool
	context   map[string]any
	registry  *tool.Registry
	executor  *tool.Executor
	system    *core.Message
	user      *core.Message
	messages  []core.Message // sent to the model
	produced  []core.Message // user, assistant and tool messages of this run
	pending   []core.ToolCall
	toolCalls int
	content   strings.Builder
}

func newExecution(ctx context.Context, a *Agent, input string, stream bool, ro runOptions) *execution {
	return &execution{
		a:      a,
		ctx:    ctx,
		input:  input,
		stream: stream,
		ro:     ro,
		events: make(chan core.Event, a.opts.EventBufferSize),
		errs:   make(chan error, 1),
		logger: a.logger,
		tracer: observability.OrNoop(a.opts.Tracer),
	}
}

// execute drives the state machine until COMPLETE or ERROR.
func (x *execution) execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = x.fail(fmt.Errorf("agent: panic in %s: %v", x.state, r))
		}
	}()

	state := StateInit
	for {
		x.state = state
		x.trail = append(x.trail, state)
		if state == StateComplete {
			return nil
		}
		x.logger.Debug("agent.run.stage", "stage", string(state))

		next, err := x.step(state)
		if err != nil {
			return x.fail(err)
		}
		state = next
	}
}

func (x *execution) step(s State) (State, error) {
	switch s {
	case StateInit:
		return x.initialize()
	case StateContextResolution:
		return x.resolveContext()
	case StateStorageRead:
		return x.readStorage()
	case StateMessagePrep:
		return x.prepareMessages()
	case StateReasoning:
		return x.reason()
	case StateModelInvoke:
		return x.invokeModel()
	case StateToolResolution:
		return x.resolveTool()
	case StateMemoryUpdate:
		return x.updateMemory()
	case StateStorageWrite:
		return x.writeStorage()
	case StateFinalize:
		return x.finalize()
	}
	return StateError, fmt.Errorf("agent: unknown state %s", s)
}

// fail moves the run into ERROR.
func (x *execution) fail(err error) error {
	stage := x.state
	x.state = StateError
	x.trail = append(x.trail, StateError)
	x.logger.Error("agent.run.failed", "stage", string(stage), "error", err)

	if isModelError(err) {
		ev := core.NewEvent(core.EventRunResponse, x.run, err.Error())
		ev.ContentType = core.ContentTypeError
		x.emit(ev)
	}
	if herr := x.a.hooks.execute(x.ctx, &HookContext{Type: HookOnError, AgentName: x.a.Name(), Run: x.run, Err: err}); herr != nil {
		x.logger.Warn("agent.hook.failed", "hook", string(HookOnError), "error", herr)
	}
	if x.run != nil {
		x.a.opts.Metrics.RecordRun(x.a.Name(), time.Since(x.started), err)
	}
	if x.span != nil {
		observability.EndSpan(x.span, err)
	}
	return err
}

// emit delivers ev unless the caller abandoned the run.
func (x *execution) emit(ev core.Event) {
	if x.abandoned {
		return
	}
	select {
	case x.events <- ev:
	case <-x.ctx.Done():
		x.abandoned = true
		x.logger.Warn("agent.run.abandoned", "event", string(ev.Type), "error", x.ctx.Err())
	}
}

// emitContent appends s to the run content and emits it as a delta.
func (x *execution) emitContent(s string) {
	if s == "" {
		return
	}
	x.content.WriteString(s)
	x.emit(core.NewEvent(core.EventRunResponse, x.run, s))
}

func (x *execution) initialize() (State, error) {
	a := x.a
	x.started = time.Now()
	if x.ro.sessionID != "" {
		a.setSessionID(x.ro.sessionID)
	}
	if x.ro.userID != "" {
		a.setUserID(x.ro.userID)
	}
	sessionID := a.ensureSessionID()

	x.run = core.NewRunResponse(sessionID, a.AgentID())
	x.logger = logging.With(a.logger, "run_id", x.run.RunID, "session_id", sessionID)
	x.ctx, x.span = x.tracer.Start(x.ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.name", a.Name()),
		attribute.String("agent.run_id", x.run.RunID),
		attribute.String("agent.session_id", sessionID),
	))

	if a.opts.Model == nil {
		return StateError, ErrNoModel
	}
	info := a.opts.Model.Info()
	x.run.Model = info.Name

	x.schema = x.ro.schema
	if x.schema == nil && a.opts.ResponseModel != nil {
		s, err := output.NewSchema(a.opts.ResponseModel)
		if err != nil {
			return StateError, fmt.Errorf("agent: response model: %w", err)
		}
		x.schema = s
	}
	if x.schema != nil {
		x.native = info.SupportsStructuredOutputs
		if x.stream {
			x.logger.Debug("agent.run.stream_disabled", "reason", "structured output")
			x.stream = false
		}
	}

	if err := a.hooks.execute(x.ctx, &HookContext{Type: HookBeforeRun, AgentName: a.Name(), Run: x.run}); err != nil {
		return StateError, err
	}
	x.logger.Info("agent.run.start", "model", info.Name, "stream", x.stream)
	x.emit(core.NewEvent(core.EventRunStarted, x.run, "Run started"))
	return StateContextResolution, nil
}

func (x *execution) resolveContext() (State, error) {
	x.context = core.CloneData(x.a.opts.Context)
	if !x.a.opts.ResolveContext {
		return StateStorageRead, nil
	}
	for key, v := range x.context {
		var (
			val any
			err error
		)
		switch fn := v.(type) {
		case ContextProvider:
			val, err = fn(x.ctx)
		case func(context.Context) (any, error):
			val, err = fn(x.ctx)
		case func() any:
			val = fn()
		default:
			continue
		}
		if err != nil {
			x.logger.Warn("agent.context.resolve_failed", "key", key, "error", err)
			delete(x.context, key)
			continue
		}
		x.context[key] = val
	}
	return StateStorageRead, nil
}

func (x *execution) readStorage() (State, error) {
	if _, err := x.a.ReadFromStorage(x.ctx); err != nil {
		x.logger.Warn("storage.read.failed", "error", err)
	}
	mem := x.a.Memory()
	if mem.Settings().CreateUserMemories {
		if err := mem.LoadMemories(x.ctx); err != nil {
			x.logger.Warn("memory.load.failed", "error", err)
		}
	}
	return StateMessagePrep, nil
}

func (x *execution) invokeModel() (State, error) {
	a := x.a
	m := a.opts.Model
	info := m.Info()

	req := model.Request{Messages: core.CloneMessages(x.messages), ToolChoice: a.opts.ToolChoice}
	if info.SupportsTools && x.registry.Len() > 0 {
		req.Tools = x.registry.Definitions()
	}
	if x.schema != nil && x.native {
		req.ResponseFormat = &model.ResponseFormat{Name: x.schema.Name(), Schema: x.schema.JSON(), Strict: true}
	}
	if err := a.hooks.execute(x.ctx, &HookContext{Type: HookBeforeModel, AgentName: a.Name(), Run: x.run, Request: &req}); err != nil {
		return StateError, err
	}

	ctx, span := x.tracer.Start(x.ctx, "agent.model", trace.WithAttributes(
		attribute.String("model.provider", info.Provider),
		attribute.String("model.name", info.Name),
	))
	start := time.Now()
	var (
		resp *model.Response
		ttft time.Duration
		err  error
	)
	if x.stream {
		resp, ttft, err = x.streamModel(ctx, m, req, start)
	} else {
		resp, err = model.Invoke(ctx, m, req)
		if err == nil {
			x.emitContent(resp.Content)
		}
	}
	dur := time.Since(start)

	var prompt, completion int
	if resp != nil && resp.Usage != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	a.opts.Metrics.RecordModelRequest(info.Provider, info.Name, dur, prompt, completion, err)
	observability.EndSpan(span, err)
	if err != nil {
		return StateError, &ModelError{Err: err}
	}

	if herr := a.hooks.execute(x.ctx, &HookContext{Type: HookAfterModel, AgentName: a.Name(), Run: x.run, Request: &req, Response: resp}); herr != nil {
		x.logger.Warn("agent.hook.failed", "hook", string(HookAfterModel), "error", herr)
	}

	msg := core.NewMessage(core.RoleAssistant, resp.Content)
	msg.ToolCalls = resp.ToolCalls
	msg.Metrics = core.MessageMetrics{Time: dur, TimeToFirstToken: ttft}
	if resp.Usage != nil {
		msg.Metrics.InputTokens = resp.Usage.PromptTokens
		msg.Metrics.OutputTokens = resp.Usage.CompletionTokens
		msg.Metrics.TotalTokens = resp.Usage.TotalTokens
	}
	if resp.Audio != nil {
		msg.Audio = []core.Audio{*resp.Audio}
		x.run.Audio = append(x.run.Audio, *resp.Audio)
	}
	x.run.Metrics.Add(msg.Metrics)
	x.messages = append(x.messages, msg)
	x.produced = append(x.produced, msg)

	x.logger.Info("agent.model.done",
		"duration_ms", dur.Milliseconds(),
		"tool_calls", len(resp.ToolCalls),
		"finish_reason", resp.FinishReason,
	)

	if len(resp.ToolCalls) == 0 {
		return StateMemoryUpdate, nil
	}
	x.pending = append([]core.ToolCall(nil), resp.ToolCalls...)
	if a.opts.ShowToolCalls {
		x.emitContent(runningNotice(resp.ToolCalls))
	}
	return StateToolResolution, nil
}

// streamModel forwards content deltas as they arrive. When the model sent no
// deltas the final content is emitted as a single delta.
func (x *execution) streamModel(ctx context.Context, m model.Model, req model.Request, start time.Time) (*model.Response, time.Duration, error) {
	respCh, errCh := model.Stream(ctx, m, req)

	var (
		final  *model.Response
		ttft   time.Duration
		deltas strings.Builder
	)
	for r := range respCh {
		if !r.Partial {
			rr := r
			final = &rr
			continue
		}
		if r.Content == "" {
			continue
		}
		if ttft == 0 {
			ttft = time.Since(start)
		}
		deltas.WriteString(r.Content)
		x.emitContent(r.Content)
	}
	if err := <-errCh; err != nil {
		return nil, ttft, err
	}
	if final == nil {
		return nil, ttft, model.ErrNoFinalResponse
	}
	if deltas.Len() > 0 {
		final.Content = deltas.String()
	} else if final.Content != "" {
		ttft = time.Since(start)
		x.emitContent(final.Content)
	}
	return final, ttft, nil
}

func (x *execution) updateMemory() (State, error) {
	a := x.a
	x.run.Content = x.content.String()
	x.run.Messages = core.CloneMessages(x.messages)
	x.emit(core.NewEvent(core.EventUpdatingMemory, x.run, "Updating memory"))

	mem := a.Memory()
	if x.system != nil {
		mem.AddSystemMessage(*x.system, a.opts.SystemMessageRole)
	}
	var keep []core.Message
	for _, m := range x.produced {
		if !m.SkipMemory {
			keep = append(keep, m)
		}
	}
	mem.AddMessages(keep...)

	record := core.AgentRun{Messages: core.CloneMessages(keep), Response: x.run.Clone()}
	if x.user != nil {
		um := x.user.Clone()
		record.Message = &um
	}
	mem.AddRun(record)

	// User memories are classified before the summary is rebuilt.
	settings := mem.Settings()
	if settings.CreateUserMemories && settings.UpdateUserMemoriesAfterRun && x.input != "" {
		if _, err := mem.UpdateMemory(x.ctx, x.input); err != nil {
			x.logger.Warn("memory.update.failed", "kind", "user_memories", "error", err)
		}
	}
	if settings.CreateSessionSummary && settings.UpdateSessionSummaryAfterRun {
		if _, err := mem.UpdateSummary(x.ctx); err != nil {
			x.logger.Warn("memory.update.failed", "kind", "session_summary", "error", err)
		}
	}
	return StateStorageWrite, nil
}

func (x *execution) writeStorage() (State, error) {
	if _, err := x.a.WriteToStorage(x.ctx); err != nil {
		x.logger.Warn("storage.write.failed", "error", err)
	}
	return StateFinalize, nil
}

func (x *execution) finalize() (State, error) {
	a := x.a
	raw := x.content.String()
	x.run.Content = raw
	if x.schema != nil {
		if v, ok := x.schema.Coerce(raw); ok {
			x.run.Content = v
			x.run.ContentType = x.schema.Name()
		} else {
			x.logger.Warn("agent.response.parse_failed", "type", x.schema.Name())
		}
	}
	x.run.Messages = core.CloneMessages(x.messages)

	if err := a.hooks.execute(x.ctx, &HookContext{Type: HookAfterRun, AgentName: a.Name(), Run: x.run}); err != nil {
		x.logger.Warn("agent.hook.failed", "hook", string(HookAfterRun), "error", err)
	}

	dur := time.Since(x.started)
	a.opts.Metrics.RecordRun(a.Name(), dur, nil)
	x.logger.Info("agent.run.done",
		"duration_ms", dur.Milliseconds(),
		"model_calls", x.run.Metrics.ModelCalls,
		"tool_calls", len(x.run.Tools),
		"total_tokens", x.run.Metrics.TotalTokens,
	)

	ev := core.NewEvent(core.EventRunCompleted, x.run, x.run.Content)
	ev.ContentType = x.run.ContentType
	ev.ExtraData = x.run.ExtraData
	metrics := x.run.Metrics
	ev.Metrics = &metrics
	ev.Tools = append([]core.ToolCall(nil), x.run.Tools...)
	x.emit(ev)

	observability.EndSpan(x.span, nil)
	return StateComplete, nil
}
