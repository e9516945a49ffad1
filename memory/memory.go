package memory

import (
	"context"

	"github.com/hupe1980/agentcore/core"
)

// Settings toggles the optional long-term memory and summary features.
type Settings struct {
	// CreateUserMemories enables long-term user memories.
	CreateUserMemories bool `json:"create_user_memories" yaml:"create_user_memories"`
	// UpdateUserMemoriesAfterRun updates memories from the user message after every run.
	UpdateUserMemoriesAfterRun bool `json:"update_user_memories_after_run" yaml:"update_user_memories_after_run"`
	// CreateSessionSummary enables the session summary.
	CreateSessionSummary bool `json:"create_session_summary" yaml:"create_session_summary"`
	// UpdateSessionSummaryAfterRun refreshes the summary after every run.
	UpdateSessionSummaryAfterRun bool `json:"update_session_summary_after_run" yaml:"update_session_summary_after_run"`
	// UserID scopes long-term memories.
	UserID string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
}

// Result is delivered by UpdateMemoryAsync.
type Result struct {
	Summary string
	Err     error
}

// Memory is the gateway through which the run controller reads and writes
// conversational memory.
type Memory interface {
	// AddSystemMessage records msg as the transcript's system message,
	// replacing a previous one with different content.
	AddSystemMessage(msg core.Message, systemRole core.Role)
	// AddMessages appends messages to the transcript.
	AddMessages(msgs ...core.Message)
	// AddRun appends a durable run record.
	AddRun(run core.AgentRun)
	// GetMessagesFromLastNRuns returns the messages of the last n runs
	// (all runs when n <= 0) without messages of skipRole.
	GetMessagesFromLastNRuns(n int, skipRole core.Role) []core.Message

	Messages() []core.Message
	Runs() []core.AgentRun
	// ToolCalls returns the last n tool calls, most recent first (all when n <= 0).
	ToolCalls(n int) []core.ToolCall
	Memories() []core.UserMemory
	Summary() *core.SessionSummary

	// UpdateMemory derives long-term memories from input and returns a
	// short description of the outcome.
	UpdateMemory(ctx context.Context, input string) (string, error)
	// UpdateMemoryAsync runs UpdateMemory in the background.
	UpdateMemoryAsync(ctx context.Context, input string) <-chan Result
	// UpdateSummary refreshes the session summary. It returns nil, nil when
	// no summarizer is configured.
	UpdateSummary(ctx context.Context) (*core.SessionSummary, error)
	// LoadMemories reads the user's long-term memories from the DB.
	LoadMemories(ctx context.Context) error

	Settings() Settings
	SetUserID(userID string)

	Snapshot() core.MemorySnapshot
	Restore(snapshot core.MemorySnapshot)
	// Clone returns an independent copy sharing only the manager,
	// summarizer and DB.
	Clone() Memory
}
