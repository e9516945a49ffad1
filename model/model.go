package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcore/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ResponseFormat requests native structured output. Only honoured by models
// whose Info reports SupportsStructuredOutputs.
type ResponseFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// Request captures the normalized model input produced by the agent.
type Request struct {
	Messages       []core.Message   `json:"messages"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ToolChoice     string           `json:"tool_choice,omitempty"` // "", none, auto, required or a function name
	ResponseFormat *ResponseFormat  `json:"response_format,omitempty"`
	Stream         bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
//
// Partial responses carry a content delta in Content and, for streamed tool
// calls, the in-progress calls in ToolCalls. The final (non partial)
// response carries the complete content, every tool call and usage.
type Response struct {
	ID           string          `json:"id,omitempty"`
	Partial      bool            `json:"partial"`
	Content      string          `json:"content,omitempty"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	Audio        *core.Audio     `json:"audio,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage     `json:"usage,omitempty"`
	// Structured reports that Content is JSON produced under a native
	// ResponseFormat.
	Structured bool `json:"structured,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name                      string `json:"name"`
	Provider                  string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools             bool   `json:"supports_tools"`
	SupportsStructuredOutputs bool   `json:"supports_structured_outputs"`
}

// Model is the adapter contract every language model backend satisfies.
//
// Generate emits zero or more partial responses followed by exactly one final
// response on success. When req.Stream is false implementations may skip the
// partials. At most one error is sent on the error channel; both channels are
// closed when generation ends.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoFinalResponse is returned by Invoke when a model closed its channels
// without delivering a final response.
var ErrNoFinalResponse = errors.New("model returned no final response")

// Invoke is the blocking form of Generate: it forces Stream=false, drains both
// channels and returns the final response.
func Invoke(ctx context.Context, m Model, req Request) (*Response, error) {
	req.Stream = false
	respCh, errCh := m.Generate(ctx, req)

	var final *Response
	var content strings.Builder
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				content.WriteString(r.Content)
				continue
			}
			rr := r
			final = &rr
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}
	if final == nil {
		return nil, ErrNoFinalResponse
	}
	if final.Content == "" && content.Len() > 0 {
		final.Content = content.String()
	}
	return final, nil
}

// Stream is the streaming form of Generate (Stream=true).
func Stream(ctx context.Context, m Model, req Request) (<-chan Response, <-chan error) {
	req.Stream = true
	return m.Generate(ctx, req)
}

// LastUserMessage returns the text of the last user message in msgs.
func LastUserMessage(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleUser {
			return msgs[i].Text()
		}
	}
	return ""
}

// NewToolCall builds a function tool call with JSON arguments, generating an
// id when none is given.
func NewToolCall(id, name, arguments string) core.ToolCall {
	if id == "" {
		id = fmt.Sprintf("call_%s", core.NewID()[:8])
	}
	return core.ToolCall{ID: id, Type: "function", Function: core.FunctionCall{Name: name, Arguments: arguments}}
}
