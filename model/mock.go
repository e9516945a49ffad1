package model

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hupe1980/agentcore/core"
)

// EchoModel is a deterministic stub answering "ECHO: " + the last user
// message. When streaming it emits whitespace preserving word chunks, so
// "ECHO: hello" streams as "ECHO:" and " hello".
type EchoModel struct {
	Prefix string // defaults to "ECHO: "
}

// NewEchoModel constructs an EchoModel with the default prefix.
func NewEchoModel() *EchoModel { return &EchoModel{Prefix: "ECHO: "} }

// Generate implements Model.
func (m *EchoModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		full := m.Prefix + LastUserMessage(req.Messages)
		if req.Stream {
			for _, chunk := range Chunk(full) {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: chunk}:
				}
			}
		}
		respCh <- Response{Content: full, FinishReason: "stop", Usage: &TokenUsage{
			PromptTokens:     len(strings.Fields(LastUserMessage(req.Messages))),
			CompletionTokens: len(Chunk(full)),
			TotalTokens:      len(strings.Fields(LastUserMessage(req.Messages))) + len(Chunk(full)),
		}}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *EchoModel) Info() Info {
	return Info{Name: "echo", Provider: "mock", SupportsTools: true}
}

// Chunk splits s into chunks that start at each whitespace run, so that the
// concatenation of the chunks equals s.
func Chunk(s string) []string {
	var chunks []string
	start := 0
	inSpace := false
	for i, r := range s {
		space := r == ' ' || r == '\n' || r == '\t'
		if space && !inSpace && i > start {
			chunks = append(chunks, s[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(s) {
		chunks = append(chunks, s[start:])
	}
	return chunks
}

// MockResponse is one scripted turn of a MockModel.
type MockResponse struct {
	Content   string
	ToolCalls []core.ToolCall
	Usage     *TokenUsage
	// Err fails the turn: before any output when Stream is false, after the
	// content chunks when streaming.
	Err error
}

// ErrMockExhausted is returned by MockModel when no scripted turn remains and
// no fallback is configured.
var ErrMockExhausted = errors.New("mock model: no scripted responses left")

// MockModel is a scripted in-memory Model useful for tests & examples. Each
// call consumes the next scripted turn; once the script is exhausted the
// Fallback function (if any) answers. Requests are recorded for inspection.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	script   []MockResponse
	requests []Request
	Fallback func(req Request) MockResponse
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string, script ...MockResponse) *MockModel {
	return &MockModel{
		info:   Info{Name: name, Provider: "mock", SupportsTools: true},
		script: script,
	}
}

// WithStructuredOutputs toggles the SupportsStructuredOutputs capability.
func (m *MockModel) WithStructuredOutputs(v bool) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info.SupportsStructuredOutputs = v
	return m
}

// Push appends scripted turns.
func (m *MockModel) Push(turns ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, turns...)
}

// Calls returns the number of Generate calls made so far.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockModel) next(req Request) (MockResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.script) > 0 {
		turn := m.script[0]
		m.script = m.script[1:]
		return turn, nil
	}
	if m.Fallback != nil {
		return m.Fallback(req), nil
	}
	return MockResponse{}, ErrMockExhausted
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		turn, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}
		if turn.Err != nil && !req.Stream {
			errCh <- turn.Err
			return
		}
		if req.Stream {
			for _, chunk := range Chunk(turn.Content) {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: chunk}:
				}
			}
			if turn.Err != nil {
				errCh <- turn.Err
				return
			}
		}
		final := Response{Content: turn.Content, ToolCalls: turn.ToolCalls, Usage: turn.Usage, FinishReason: "stop"}
		if len(turn.ToolCalls) > 0 {
			final.FinishReason = "tool_calls"
		}
		if req.ResponseFormat != nil && m.Info().SupportsStructuredOutputs {
			final.Structured = true
		}
		respCh <- final
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}
