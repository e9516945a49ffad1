package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
)

// Options configure an AgentMemory.
type Options struct {
	Settings   Settings
	Manager    Manager
	Summarizer Summarizer
	DB         DB
	Logger     logging.Logger
}

// AgentMemory is the default Memory implementation. All methods are safe for
// concurrent use.
type AgentMemory struct {
	mu       sync.RWMutex
	opts     Options
	messages []core.Message
	runs     []core.AgentRun
	memories []core.UserMemory
	summary  *core.SessionSummary
}

var _ Memory = (*AgentMemory)(nil)

// NewAgentMemory creates an empty memory.
func NewAgentMemory(optFns ...func(o *Options)) *AgentMemory {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &AgentMemory{opts: opts}
}

// AddSystemMessage implements Memory.
func (m *AgentMemory) AddSystemMessage(msg core.Message, systemRole core.Role) {
	if systemRole == "" {
		systemRole = core.RoleSystem
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 || m.messages[0].Role != systemRole {
		m.messages = append([]core.Message{msg.Clone()}, m.messages...)
		return
	}
	if m.messages[0].Text() != msg.Text() {
		m.opts.Logger.Debug("memory.system_message.changed")
		m.messages[0] = msg.Clone()
	}
}

// AddMessages implements Memory.
func (m *AgentMemory) AddMessages(msgs ...core.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.messages = append(m.messages, msg.Clone())
	}
}

// AddRun implements Memory. The record is copied so later changes by the
// caller cannot reach it.
func (m *AgentMemory) AddRun(run core.AgentRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run.Clone())
}

// GetMessagesFromLastNRuns implements Memory.
func (m *AgentMemory) GetMessagesFromLastNRuns(n int, skipRole core.Role) []core.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := m.runs
	if n > 0 && len(runs) > n {
		runs = runs[len(runs)-n:]
	}
	var out []core.Message
	for _, run := range runs {
		msgs := run.Messages
		if len(msgs) == 0 && run.Response != nil {
			msgs = run.Response.Messages
		}
		for _, msg := range msgs {
			if skipRole != "" && msg.Role == skipRole {
				continue
			}
			out = append(out, msg.Clone())
		}
	}
	return out
}

// Messages implements Memory.
func (m *AgentMemory) Messages() []core.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return core.CloneMessages(m.messages)
}

// Runs implements Memory.
func (m *AgentMemory) Runs() []core.AgentRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.AgentRun, len(m.runs))
	for i, r := range m.runs {
		out[i] = r.Clone()
	}
	return out
}

// ToolCalls implements Memory.
func (m *AgentMemory) ToolCalls(n int) []core.ToolCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.ToolCall
	for i := len(m.messages) - 1; i >= 0; i-- {
		calls := m.messages[i].ToolCalls
		for j := len(calls) - 1; j >= 0; j-- {
			out = append(out, calls[j])
			if n > 0 && len(out) == n {
				return out
			}
		}
	}
	return out
}

// Memories implements Memory.
func (m *AgentMemory) Memories() []core.UserMemory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.UserMemory(nil), m.memories...)
}

// Summary implements Memory.
func (m *AgentMemory) Summary() *core.SessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.summary == nil {
		return nil
	}
	s := *m.summary
	s.Topics = append([]string(nil), m.summary.Topics...)
	return &s
}

// Settings implements Memory.
func (m *AgentMemory) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opts.Settings
}

// SetUserID implements Memory.
func (m *AgentMemory) SetUserID(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Settings.UserID = userID
}

// UpdateMemory implements Memory. With a Manager the model decides the new
// memory list; without one the input is remembered verbatim.
func (m *AgentMemory) UpdateMemory(ctx context.Context, input string) (string, error) {
	settings := m.Settings()
	if !settings.CreateUserMemories || input == "" {
		return "", nil
	}

	existing := m.Memories()
	var updated []core.UserMemory
	summary := "Memory updated"
	if m.opts.Manager != nil {
		var err error
		updated, summary, err = m.opts.Manager.Update(ctx, input, existing)
		if err != nil {
			return "", fmt.Errorf("update memory: %w", err)
		}
	} else {
		updated = append(existing, core.UserMemory{Memory: input, Input: input})
	}

	now := time.Now().UTC()
	for i := range updated {
		if updated[i].ID == "" {
			updated[i].ID = core.NewID()
		}
		if updated[i].UpdatedAt.IsZero() {
			updated[i].UpdatedAt = now
		}
	}

	if db := m.opts.DB; db != nil {
		if err := db.Replace(ctx, settings.UserID, updated); err != nil {
			return "", fmt.Errorf("persist memories: %w", err)
		}
	}

	m.mu.Lock()
	m.memories = updated
	m.mu.Unlock()

	m.opts.Logger.Debug("memory.update.done", "user_id", settings.UserID, "memories", len(updated))
	return summary, nil
}

// UpdateMemoryAsync implements Memory.
func (m *AgentMemory) UpdateMemoryAsync(ctx context.Context, input string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		summary, err := m.UpdateMemory(ctx, input)
		ch <- Result{Summary: summary, Err: err}
	}()
	return ch
}

// UpdateSummary implements Memory.
func (m *AgentMemory) UpdateSummary(ctx context.Context) (*core.SessionSummary, error) {
	if m.opts.Summarizer == nil {
		return nil, nil
	}
	summary, err := m.opts.Summarizer.Summarize(ctx, m.GetMessagesFromLastNRuns(0, core.RoleSystem))
	if err != nil {
		return nil, fmt.Errorf("update summary: %w", err)
	}
	if summary == nil {
		return nil, nil
	}
	summary.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.summary = summary
	m.mu.Unlock()
	return m.Summary(), nil
}

// LoadMemories implements Memory.
func (m *AgentMemory) LoadMemories(ctx context.Context) error {
	db := m.opts.DB
	if db == nil {
		return nil
	}
	memories, err := db.List(ctx, m.Settings().UserID)
	if err != nil {
		return fmt.Errorf("load memories: %w", err)
	}
	m.mu.Lock()
	m.memories = memories
	m.mu.Unlock()
	return nil
}

// Snapshot implements Memory.
func (m *AgentMemory) Snapshot() core.MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return core.MemorySnapshot{
		Runs:     m.runs,
		Messages: m.messages,
		Summary:  m.summary,
		Memories: m.memories,
	}.Clone()
}

// Restore implements Memory. Runs and messages are replaced; memories and
// summary only when the snapshot carries them.
func (m *AgentMemory) Restore(snapshot core.MemorySnapshot) {
	s := snapshot.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = s.Runs
	m.messages = s.Messages
	if s.Summary != nil {
		m.summary = s.Summary
	}
	if len(s.Memories) > 0 {
		m.memories = s.Memories
	}
}

// Clone implements Memory.
func (m *AgentMemory) Clone() Memory {
	m.mu.RLock()
	opts := m.opts
	m.mu.RUnlock()
	c := &AgentMemory{opts: opts}
	c.Restore(m.Snapshot())
	return c
}
