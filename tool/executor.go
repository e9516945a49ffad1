package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/internal/util"
)

// Result is the outcome of one executed tool call.
type Result struct {
	// Message is the tool-role transcript message (result or error text).
	Message core.Message
	// Call is the original call annotated with result, error and duration.
	Call core.ToolCall
	// Err is set when resolution or execution failed.
	Err *ToolError
}

// Executor resolves model issued tool calls against a Registry and executes
// them. It never panics and never returns an error: every failure becomes a
// tool-role message carrying the error text.
type Executor struct {
	registry *Registry
}

// NewExecutor binds an executor to a registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute resolves call, validates its arguments and invokes the tool.
func (e *Executor) Execute(tc *Context, call core.ToolCall) Result {
	logger := tc.Logger()
	name := call.Function.Name
	start := time.Now()

	result, err := e.invoke(tc.WithCall(call.ID), call)
	dur := time.Since(start)

	logger.Info(
		"tool.call.executed",
		"tool", name,
		"call_id", call.ID,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	msg := core.NewMessage(core.RoleTool, "")
	msg.ToolCallID = call.ID
	msg.ToolName = name
	msg.ToolArgs = call.Function.Arguments
	msg.Metrics.Time = dur

	out := Result{Call: call}
	out.Call.Duration = dur.Seconds()
	if err != nil {
		msg.Content = err.Error()
		msg.ToolCallError = true
		out.Call.Error = err.Error()
		out.Err = err
	} else {
		msg.Content = Stringify(result)
		out.Call.Result = msg.Content
	}
	out.Message = msg
	return out
}

func (e *Executor) invoke(tc *Context, call core.ToolCall) (result any, toolErr *ToolError) {
	name := call.Function.Name

	var impl Tool
	ok := false
	if e.registry != nil {
		impl, ok = e.registry.Get(name)
	}
	if !ok {
		return nil, NewToolError(name, fmt.Sprintf("tool %s not found", name), CodeNotFound)
	}

	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, NewToolError(name, fmt.Sprintf("failed to unmarshal args: %v", err), CodeArgument)
		}
	}

	if err := util.ValidateParameters(args, impl.Parameters()); err != nil {
		return nil, &ToolError{Tool: name, Message: fmt.Sprintf("parameter validation failed: %v", err), Code: CodeValidation, Details: err}
	}

	defer func() { // panic safety
		if r := recover(); r != nil {
			tc.Logger().Error("tool.call.panic", "tool", name, "recover", r)
			result = nil
			toolErr = &ToolError{Tool: name, Message: fmt.Sprintf("panic: %v", r), Code: CodePanic, Details: string(debug.Stack())}
		}
	}()

	res, err := impl.Call(tc, args)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, NewToolError(name, err.Error(), CodeExecution)
	}
	return res, nil
}

// Stringify renders a tool result as transcript text: strings pass through,
// everything else is JSON encoded.
func Stringify(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case []byte:
		return string(tv)
	case fmt.Stringer:
		return tv.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
