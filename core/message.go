package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a message in a transcript.
type Role string

const (
	// RoleSystem carries system instructions.
	RoleSystem Role = "system"
	// RoleUser carries end-user input.
	RoleUser Role = "user"
	// RoleAssistant carries model output.
	RoleAssistant Role = "assistant"
	// RoleTool carries the result (or error) of a tool call.
	RoleTool Role = "tool"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// FunctionCall is the function target of a tool call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // JSON encoded argument object
}

// ToolCall is a model issued request to invoke a function, plus its resolved
// outcome once executed.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // "function"
	Function FunctionCall `json:"function"`
	Result   string       `json:"result,omitempty"`
	Error    string       `json:"error,omitempty"`
	Duration float64      `json:"duration,omitempty"` // seconds
}

// MessageMetrics captures timing and token usage for one message.
type MessageMetrics struct {
	InputTokens      int           `json:"input_tokens,omitempty"`
	OutputTokens     int           `json:"output_tokens,omitempty"`
	TotalTokens      int           `json:"total_tokens,omitempty"`
	Time             time.Duration `json:"time,omitempty"`
	TimeToFirstToken time.Duration `json:"time_to_first_token,omitempty"`
}

// Message is a single role based transcript entry. Once appended to a
// transcript it is treated as immutable.
type Message struct {
	Role Role `json:"role"`
	// Content is the text content.
	Content string `json:"content,omitempty"`
	// Data holds structured content (for example a coerced response).
	Data any `json:"data,omitempty"`
	// Name optionally identifies the participant.
	Name string `json:"name,omitempty"`

	ToolCallID    string     `json:"tool_call_id,omitempty"`
	ToolName      string     `json:"tool_name,omitempty"`
	ToolArgs      string     `json:"tool_args,omitempty"`
	ToolCallError bool       `json:"tool_call_error,omitempty"`
	ToolCalls     []ToolCall `json:"tool_calls,omitempty"`

	Images []Image `json:"images,omitempty"`
	Audio  []Audio `json:"audio,omitempty"`
	Videos []Video `json:"videos,omitempty"`

	Metrics MessageMetrics `json:"metrics,omitempty"`

	// FromHistory marks messages replayed from earlier runs.
	FromHistory bool `json:"from_history,omitempty"`
	// SkipMemory excludes the message from the memory transcript (reasoning
	// bridge messages, replayed history).
	SkipMemory bool `json:"skip_memory,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a text message with the given role.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// Attach adds media to the message according to its concrete kind.
func (m *Message) Attach(media ...Media) {
	for _, md := range media {
		switch v := md.(type) {
		case Image:
			m.Images = append(m.Images, v)
		case Audio:
			m.Audio = append(m.Audio, v)
		case Video:
			m.Videos = append(m.Videos, v)
		}
	}
}

// Text returns the textual content, falling back to a JSON encoding of Data.
func (m Message) Text() string {
	if m.Content != "" || m.Data == nil {
		return m.Content
	}
	b, err := json.Marshal(m.Data)
	if err != nil {
		return fmt.Sprintf("%v", m.Data)
	}
	return string(b)
}

// Clone returns a copy whose slices can be modified independently.
func (m Message) Clone() Message {
	c := m
	c.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	c.Images = append([]Image(nil), m.Images...)
	c.Audio = append([]Audio(nil), m.Audio...)
	c.Videos = append([]Video(nil), m.Videos...)
	return c
}

// CloneMessages copies a message slice element by element.
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

// ErrInvalidMessage is returned by ParseMessage for inputs that cannot be
// interpreted as a Message.
var ErrInvalidMessage = errors.New("invalid message")

// ParseMessage converts a caller supplied value into a validated Message.
// Accepted inputs are Message, *Message, map[string]any and JSON encoded
// objects given as string, []byte or json.RawMessage.
func ParseMessage(v any) (Message, error) {
	var msg Message
	switch in := v.(type) {
	case Message:
		msg = in
	case *Message:
		if in == nil {
			return Message{}, fmt.Errorf("%w: nil message", ErrInvalidMessage)
		}
		msg = *in
	case map[string]any:
		raw, err := json.Marshal(in)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	case string:
		return ParseMessage([]byte(in))
	case json.RawMessage:
		return ParseMessage([]byte(in))
	case []byte:
		if err := json.Unmarshal(in, &msg); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	default:
		return Message{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidMessage, v)
	}

	msg.Role = Role(strings.ToLower(string(msg.Role)))
	if !msg.Role.Valid() {
		return Message{}, fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, msg.Role)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return msg, nil
}
