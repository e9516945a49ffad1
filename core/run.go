package core

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a new random identifier (UUID v4 string).
func NewID() string { return uuid.NewString() }

// ContentTypeText is the content type of plain text responses.
const ContentTypeText = "str"

// RunMetrics aggregates the metrics of every assistant message in a run.
type RunMetrics struct {
	InputTokens      int           `json:"input_tokens"`
	OutputTokens     int           `json:"output_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Time             time.Duration `json:"time"`
	TimeToFirstToken time.Duration `json:"time_to_first_token,omitempty"`
	ModelCalls       int           `json:"model_calls"`
}

// Add folds the metrics of one assistant message into the aggregate.
func (m *RunMetrics) Add(mm MessageMetrics) {
	m.InputTokens += mm.InputTokens
	m.OutputTokens += mm.OutputTokens
	m.TotalTokens += mm.TotalTokens
	m.Time += mm.Time
	if m.TimeToFirstToken == 0 {
		m.TimeToFirstToken = mm.TimeToFirstToken
	}
	m.ModelCalls++
}

// MessageReferences records one knowledge retrieval made for a user message.
type MessageReferences struct {
	Query      string        `json:"query"`
	References []Document    `json:"references"`
	Time       time.Duration `json:"time"`
}

// RunExtraData is the observability bag attached to a run.
type RunExtraData struct {
	References        []MessageReferences `json:"references,omitempty"`
	ReasoningSteps    []ReasoningStep     `json:"reasoning_steps,omitempty"`
	ReasoningMessages []Message           `json:"reasoning_messages,omitempty"`
	AddMessages       []Message           `json:"add_messages,omitempty"`
	History           []Message           `json:"history,omitempty"`
}

// RunResponse is the Run: the result of exactly one execution. It is owned by
// the execution that created it.
type RunResponse struct {
	RunID       string        `json:"run_id"`
	SessionID   string        `json:"session_id,omitempty"`
	AgentID     string        `json:"agent_id,omitempty"`
	Content     any           `json:"content,omitempty"`
	ContentType string        `json:"content_type"`
	Messages    []Message     `json:"messages,omitempty"`
	Metrics     RunMetrics    `json:"metrics"`
	ExtraData   *RunExtraData `json:"extra_data,omitempty"`
	Tools       []ToolCall    `json:"tools,omitempty"`
	Images      []Image       `json:"images,omitempty"`
	Audio       []Audio       `json:"audio,omitempty"`
	Model       string        `json:"model,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewRunResponse allocates a run with a fresh unique run id.
func NewRunResponse(sessionID, agentID string) *RunResponse {
	return &RunResponse{
		RunID:       NewID(),
		SessionID:   sessionID,
		AgentID:     agentID,
		ContentType: ContentTypeText,
		ExtraData:   &RunExtraData{},
		CreatedAt:   time.Now().UTC(),
	}
}

// Text returns Content when it is a string, and "" otherwise.
func (r *RunResponse) Text() string {
	if r == nil {
		return ""
	}
	s, _ := r.Content.(string)
	return s
}

// Clone returns a copy safe to retain after the producing run continues.
func (r *RunResponse) Clone() *RunResponse {
	if r == nil {
		return nil
	}
	c := *r
	c.Messages = CloneMessages(r.Messages)
	c.Tools = append([]ToolCall(nil), r.Tools...)
	c.Images = append([]Image(nil), r.Images...)
	c.Audio = append([]Audio(nil), r.Audio...)
	if r.ExtraData != nil {
		ed := *r.ExtraData
		ed.References = append([]MessageReferences(nil), r.ExtraData.References...)
		ed.ReasoningSteps = append([]ReasoningStep(nil), r.ExtraData.ReasoningSteps...)
		ed.ReasoningMessages = CloneMessages(r.ExtraData.ReasoningMessages)
		ed.AddMessages = CloneMessages(r.ExtraData.AddMessages)
		ed.History = CloneMessages(r.ExtraData.History)
		c.ExtraData = &ed
	}
	return &c
}

// AgentRun is the durable record of one completed run appended to memory.
// It is never mutated after creation.
type AgentRun struct {
	Message  *Message     `json:"message,omitempty"`
	Messages []Message    `json:"messages,omitempty"`
	Response *RunResponse `json:"response,omitempty"`
}
