package core

import "time"

// SessionSummary is a condensed description of a session's conversation.
type SessionSummary struct {
	Summary   string    `json:"summary" jsonschema:"description=Summary of the session. Be concise and focus on only important information. Do not make anything up."`
	Topics    []string  `json:"topics,omitempty" jsonschema:"description=Topics discussed in the session."`
	UpdatedAt time.Time `json:"updated_at,omitempty" jsonschema:"-"`
}

// UserMemory is one long-term fact remembered about a user.
type UserMemory struct {
	ID        string    `json:"id,omitempty"`
	Memory    string    `json:"memory"`
	Input     string    `json:"input,omitempty"` // Message the memory was derived from
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// MemorySnapshot is the serialisable state of an agent's memory as persisted
// inside a Session.
type MemorySnapshot struct {
	Runs     []AgentRun      `json:"runs,omitempty"`
	Messages []Message       `json:"messages,omitempty"`
	Summary  *SessionSummary `json:"summary,omitempty"`
	Memories []UserMemory    `json:"memories,omitempty"`
}

// Session is durable conversational state keyed by session id, independent of
// any single run.
type Session struct {
	SessionID   string         `json:"session_id"`
	AgentID     string         `json:"agent_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Memory      MemorySnapshot `json:"memory"`
	AgentData   map[string]any `json:"agent_data,omitempty"`
	UserData    map[string]any `json:"user_data,omitempty"`
	SessionData map[string]any `json:"session_data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewSession creates an empty session.
func NewSession(sessionID, agentID, userID string) *Session {
	now := time.Now().UTC()
	return &Session{SessionID: sessionID, AgentID: agentID, UserID: userID, CreatedAt: now, UpdatedAt: now}
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.AgentData = CloneData(s.AgentData)
	c.UserData = CloneData(s.UserData)
	c.SessionData = CloneData(s.SessionData)
	c.Memory = s.Memory.Clone()
	return &c
}

// Clone returns a deep copy of the snapshot.
func (m MemorySnapshot) Clone() MemorySnapshot {
	c := MemorySnapshot{
		Messages: CloneMessages(m.Messages),
		Memories: append([]UserMemory(nil), m.Memories...),
	}
	if m.Runs != nil {
		c.Runs = make([]AgentRun, len(m.Runs))
		for i, r := range m.Runs {
			c.Runs[i] = r.Clone()
		}
	}
	if m.Summary != nil {
		sum := *m.Summary
		sum.Topics = append([]string(nil), m.Summary.Topics...)
		c.Summary = &sum
	}
	return c
}

// Clone returns a deep copy of the run record.
func (r AgentRun) Clone() AgentRun {
	c := AgentRun{Messages: CloneMessages(r.Messages), Response: r.Response.Clone()}
	if r.Message != nil {
		m := r.Message.Clone()
		c.Message = &m
	}
	return c
}

// MergeData performs a deep, non-destructive merge of a persisted map into a
// local one. Keys set locally win on conflict; keys only present in persisted
// are preserved. Nested maps are merged recursively. A nil local map yields a
// copy of persisted. Neither input is modified.
func MergeData(local, persisted map[string]any) map[string]any {
	if local == nil {
		return CloneData(persisted)
	}
	out := CloneData(persisted)
	if out == nil {
		out = make(map[string]any, len(local))
	}
	for k, lv := range local {
		lm, lok := lv.(map[string]any)
		pm, pok := out[k].(map[string]any)
		if lok && pok {
			out[k] = MergeData(lm, pm)
			continue
		}
		out[k] = cloneValue(lv)
	}
	return out
}

// CloneData deep copies nested maps and slices of a free-form data map.
func CloneData(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return CloneData(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
