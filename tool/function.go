package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentcore/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Holds a JSON Schema for its parameters
//   - Validates model supplied arguments against that schema before execution
//   - Invokes the wrapped function with a *Context giving access to the run
//     correlation ids, the stream flag and logging
//   - Normalizes error handling so callers receive *ToolError with consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is safe for
//	concurrent use by multiple goroutines.
type FunctionTool struct {
	// Tool identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted arguments
	parameters map[string]any
	// User supplied implementation
	fn func(tc *Context, args map[string]any) (any, error)
}

var (
	_ Tool   = (*FunctionTool)(nil)
	_ Source = (*FunctionTool)(nil)
)

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *tool.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(tc *Context, args map[string]any) (any, error),
) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection (see util.CreateSchema). Field names follow the json tags and
// `jsonschema:"description=..."` tags document the fields for the model.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(tc *Context, args map[string]any) (any, error),
) (*FunctionTool, error) {
	schema, err := util.CreateSchema(structType)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return NewFunctionTool(name, description, schema, fn), nil
}

// NewFunc builds a typed tool: the parameter schema is reflected from T and
// the validated arguments are decoded into a T before fn is called.
//
//	type WeatherArgs struct {
//	  City string `json:"city" jsonschema:"description=City name"`
//	}
//
//	weather, err := tool.NewFunc("get_weather", "Get the weather for a city",
//	  func(tc *tool.Context, args WeatherArgs) (any, error) {
//	    return "sunny in " + args.City, nil
//	  })
func NewFunc[T any](name, description string, fn func(tc *Context, args T) (any, error)) (*FunctionTool, error) {
	return NewFunctionToolFromStruct(name, description, new(T), func(tc *Context, args map[string]any) (any, error) {
		var typed T
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeArgument}
		}
		if err := json.Unmarshal(raw, &typed); err != nil {
			return nil, &ToolError{Tool: name, Message: fmt.Sprintf("decode arguments: %v", err), Code: CodeArgument}
		}
		return fn(tc, typed)
	})
}

// MustFunc is like NewFunc but panics on error. Intended for package level
// tool declarations.
func MustFunc[T any](name, description string, fn func(tc *Context, args T) (any, error)) *FunctionTool {
	t, err := NewFunc(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Tools implements Source.
func (t *FunctionTool) Tools() []Tool { return []Tool{t} }

// Call validates the provided args against the declared schema then invokes the
// underlying function. Validation or execution failures are wrapped (or passed
// through) as *ToolError for uniform downstream handling.
//
// Logging Fields:
//
//	tool: tool name
//	call_id: tool call identifier (correlates model request & tool execution)
//	duration_ms: execution time in milliseconds
func (t *FunctionTool) Call(tc *Context, args map[string]any) (any, error) {
	logger := tc.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "call_id", tc.CallID)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(tc, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) { // Already a ToolError -> just log and forward
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	logger.Debug("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
