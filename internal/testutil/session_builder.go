package testutil

import (
	"github.com/hupe1980/agentcore/core"
)

// SessionBuilder helps construct persisted sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").WithUserID("u1").WithRun("hi", "hello").Build()
type SessionBuilder struct {
	id          string
	agentID     string
	userID      string
	sessionData map[string]any
	agentData   map[string]any
	userData    map[string]any
	memory      core.MemorySnapshot
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id}
}

// WithAgentID sets the owning agent id (chainable).
func (b *SessionBuilder) WithAgentID(id string) *SessionBuilder {
	b.agentID = id
	return b
}

// WithUserID sets the user id (chainable).
func (b *SessionBuilder) WithUserID(id string) *SessionBuilder {
	b.userID = id
	return b
}

// WithSessionData sets the session_data map (chainable).
func (b *SessionBuilder) WithSessionData(data map[string]any) *SessionBuilder {
	b.sessionData = data
	return b
}

// WithAgentData sets the agent_data map (chainable).
func (b *SessionBuilder) WithAgentData(data map[string]any) *SessionBuilder {
	b.agentData = data
	return b
}

// WithUserData sets the user_data map (chainable).
func (b *SessionBuilder) WithUserData(data map[string]any) *SessionBuilder {
	b.userData = data
	return b
}

// WithRun appends a completed run made of one user message and one
// assistant answer, to both the run list and the transcript (chainable).
func (b *SessionBuilder) WithRun(input, answer string) *SessionBuilder {
	user := core.NewMessage(core.RoleUser, input)
	asst := core.NewMessage(core.RoleAssistant, answer)
	resp := core.NewRunResponse(b.id, b.agentID)
	resp.Content = answer
	resp.Messages = []core.Message{user, asst}
	b.memory.Runs = append(b.memory.Runs, core.AgentRun{
		Message:  &user,
		Messages: []core.Message{user, asst},
		Response: resp,
	})
	b.memory.Messages = append(b.memory.Messages, user, asst)
	return b
}

// WithSummary sets the session summary (chainable).
func (b *SessionBuilder) WithSummary(summary string, topics ...string) *SessionBuilder {
	b.memory.Summary = &core.SessionSummary{Summary: summary, Topics: topics}
	return b
}

// WithMemories appends user memories (chainable).
func (b *SessionBuilder) WithMemories(memories ...string) *SessionBuilder {
	for _, m := range memories {
		b.memory.Memories = append(b.memory.Memories, core.UserMemory{ID: core.NewID(), Memory: m})
	}
	return b
}

// Build returns a *core.Session populated with the configured state.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id, b.agentID, b.userID)
	s.SessionData = core.CloneData(b.sessionData)
	s.AgentData = core.CloneData(b.agentData)
	s.UserData = core.CloneData(b.userData)
	s.Memory = b.memory.Clone()
	return s
}
