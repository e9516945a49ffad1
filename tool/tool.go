// Package tool implements the function / tool calling subsystem that lets agents
// invoke structured capabilities (APIs, computations, side‑effects) with schema
// validated arguments, consistent error handling and rich metadata for LLM guidance.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentcore/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools are registered with an agent (directly, through a Toolkit or as a
// Descriptor) and exposed to the model as function definitions. Every call
// receives a *Context carrying the run correlation ids, the stream flag and
// the agent logger.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]any

	// Call executes the tool with structured arguments decoded from the
	// model's JSON arguments.
	Call(tc *Context, args map[string]any) (any, error)
}

// Source is anything that contributes tools to a Registry. Every tool kind
// (FunctionTool, Func, Toolkit, Descriptor) is a Source, so heterogeneous
// inputs are resolved into plain Tools once, at registration time.
type Source interface {
	Tools() []Tool
}

// Error codes carried by ToolError.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeExecution     = "EXECUTION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeArgument      = "ARGUMENT_ERROR"
	CodePanic         = "PANIC"
	CodeLimitExceeded = "LIMIT_EXCEEDED"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
