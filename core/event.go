package core

import "time"

// EventType names one entry of the streaming event vocabulary.
type EventType string

const (
	// EventRunStarted is emitted once when a run begins.
	EventRunStarted EventType = "RunStarted"
	// EventRunResponse carries a content delta (or the final content when
	// the run is not streamed).
	EventRunResponse EventType = "RunResponse"
	// EventReasoningStarted marks the entry into the reasoning sub-loop.
	EventReasoningStarted EventType = "ReasoningStarted"
	// EventReasoningStep carries one reasoning step.
	EventReasoningStep EventType = "ReasoningStep"
	// EventReasoningCompleted marks the end of the reasoning sub-loop.
	EventReasoningCompleted EventType = "ReasoningCompleted"
	// EventToolCallStarted is emitted before a tool call is executed.
	EventToolCallStarted EventType = "ToolCallStarted"
	// EventToolCallCompleted is emitted after a tool call produced a result or error.
	EventToolCallCompleted EventType = "ToolCallCompleted"
	// EventUpdatingMemory is emitted before memory is updated.
	EventUpdatingMemory EventType = "UpdatingMemory"
	// EventRunCompleted is emitted once with the final content.
	EventRunCompleted EventType = "RunCompleted"
)

// ContentTypeError marks a RunResponse event carrying an error message
// instead of model content.
const ContentTypeError = "error"

// Event is one element of a run's ordered event stream. Every event carries
// the run, session and agent identifiers of the run that emitted it.
type Event struct {
	Type        EventType     `json:"event"`
	RunID       string        `json:"run_id"`
	SessionID   string        `json:"session_id,omitempty"`
	AgentID     string        `json:"agent_id,omitempty"`
	Content     any           `json:"content,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	Tools       []ToolCall    `json:"tools,omitempty"`
	ExtraData   *RunExtraData `json:"extra_data,omitempty"`
	Metrics     *RunMetrics   `json:"metrics,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewEvent creates an event of the given type correlated with run.
func NewEvent(t EventType, run *RunResponse, content any) Event {
	ev := Event{Type: t, Content: content, ContentType: ContentTypeText, CreatedAt: time.Now().UTC()}
	if run != nil {
		ev.RunID = run.RunID
		ev.SessionID = run.SessionID
		ev.AgentID = run.AgentID
	}
	return ev
}

// Text returns Content when it is a string, and "" otherwise.
func (e Event) Text() string {
	s, _ := e.Content.(string)
	return s
}

// IsError reports whether the event is an error-content fragment.
func (e Event) IsError() bool { return e.ContentType == ContentTypeError }
