package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/tool"
)

// HookType defines the lifecycle points of a run where hooks are executed.
type HookType string

const (
	// HookBeforeRun runs after the run is created, before any stage. An
	// error aborts the run.
	HookBeforeRun HookType = "before_run"
	// HookAfterRun runs once the run is finalized.
	HookAfterRun HookType = "after_run"
	// HookBeforeModel runs before the model is invoked. An error aborts the run.
	HookBeforeModel HookType = "before_model"
	// HookAfterModel runs after the model returned its final response.
	HookAfterModel HookType = "after_model"
	// HookBeforeTool runs before each tool call. An error blocks the call,
	// which then yields a tool error message.
	HookBeforeTool HookType = "before_tool"
	// HookAfterTool runs after each tool call.
	HookAfterTool HookType = "after_tool"
	// HookOnError runs when the run ends in the ERROR state.
	HookOnError HookType = "on_error"
)

// HookContext carries the state relevant to one hook invocation. Fields not
// related to the hook type are nil.
type HookContext struct {
	Type      HookType
	AgentName string
	Run       *core.RunResponse
	Request   *model.Request
	Response  *model.Response
	ToolCall  *core.ToolCall
	Result    *tool.Result
	Err       error
}

// Hook is a run lifecycle extension point. Hooks run synchronously on the
// run's goroutine.
type Hook interface {
	Type() HookType
	Execute(ctx context.Context, hc *HookContext) error
}

// FunctionHook wraps a function as a Hook.
//
//	audit := agent.NewFunctionHook(agent.HookBeforeTool,
//	    func(ctx context.Context, hc *agent.HookContext) error {
//	        log.Printf("calling %s", hc.ToolCall.Function.Name)
//	        return nil
//	    })
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hc *HookContext) error
}

var _ Hook = (*FunctionHook)(nil)

// NewFunctionHook creates a new function-based hook.
func NewFunctionHook(hookType HookType, fn func(ctx context.Context, hc *HookContext) error) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type returns the hook type this function handles.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute calls the wrapped function.
func (h *FunctionHook) Execute(ctx context.Context, hc *HookContext) error { return h.fn(ctx, hc) }

// LoggingHook forwards a formatted line per lifecycle point to a log function.
type LoggingHook struct {
	hookType HookType
	logf     func(message string)
}

var _ Hook = (*LoggingHook)(nil)

// NewLoggingHook creates a new logging hook.
func NewLoggingHook(hookType HookType, logf func(message string)) *LoggingHook {
	return &LoggingHook{hookType: hookType, logf: logf}
}

// Type returns the hook type this logger handles.
func (h *LoggingHook) Type() HookType { return h.hookType }

// Execute logs the hook point with the agent name and run id.
func (h *LoggingHook) Execute(_ context.Context, hc *HookContext) error {
	if h.logf == nil {
		return nil
	}
	runID := ""
	if hc.Run != nil {
		runID = hc.Run.RunID
	}
	msg := fmt.Sprintf("[%s] Agent: %s, Run: %s", h.hookType, hc.AgentName, runID)
	if hc.ToolCall != nil {
		msg += ", Tool: " + hc.ToolCall.Function.Name
	}
	if hc.Err != nil {
		msg += ", Error: " + hc.Err.Error()
	}
	h.logf(msg)
	return nil
}

// hookSet routes hooks by type, in registration order.
type hookSet map[HookType][]Hook

func newHookSet(hooks []Hook) hookSet {
	hs := make(hookSet)
	for _, h := range hooks {
		if h != nil {
			hs[h.Type()] = append(hs[h.Type()], h)
		}
	}
	return hs
}

// execute runs every hook of hc.Type and stops at the first error.
func (hs hookSet) execute(ctx context.Context, hc *HookContext) error {
	for _, h := range hs[hc.Type] {
		if err := h.Execute(ctx, hc); err != nil {
			return fmt.Errorf("%s hook: %w", hc.Type, err)
		}
	}
	return nil
}
