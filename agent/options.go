package agent

import (
	"context"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/knowledge"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/memory"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/observability"
	"github.com/hupe1980/agentcore/storage"
	"github.com/hupe1980/agentcore/tool"
	"go.opentelemetry.io/otel/trace"
)

// ContextProvider is a context value resolved at the start of every run when
// Options.ResolveContext is set.
type ContextProvider func(ctx context.Context) (any, error)

// Retriever replaces the knowledge base search used for references.
type Retriever func(ctx context.Context, query string, numDocuments int) ([]core.Document, error)

// Options configures an Agent.
//
// Use functional options with New to override defaults.
type Options struct {
	// Identity
	Name      string
	Model     model.Model
	AgentID   string // generated when empty
	SessionID string // generated at the first run when empty
	UserID    string

	// Free-form data persisted with the session.
	AgentData   map[string]any
	SessionData map[string]any
	UserData    map[string]any

	// System message
	Description               string
	Task                      string
	Role                      string
	Instructions              []string
	ExpectedOutput            string
	AdditionalContext         string
	Markdown                  bool
	AddDatetimeToInstructions bool
	AddNameToInstructions     bool
	// SystemPrompt overrides the default system message.
	SystemPrompt Instruction
	// CreateDefaultSystemMessage builds the system message from the fields
	// above when no SystemPrompt is set.
	CreateDefaultSystemMessage bool
	SystemMessageRole          core.Role
	UserMessageRole            core.Role

	// Context is added to the user message inside a <context> block when
	// AddContext is set. ContextProvider values are resolved per run.
	Context        map[string]any
	AddContext     bool
	ResolveContext bool

	// History
	AddHistoryToMessages bool
	NumHistoryRuns       int

	// Knowledge
	Knowledge     knowledge.Knowledge
	Retriever     Retriever
	AddReferences bool
	NumReferences int
	// SearchKnowledge adds the search_knowledge_base tool.
	SearchKnowledge bool
	// UpdateKnowledge adds the add_to_knowledge tool (knowledge.Writer only).
	UpdateKnowledge bool

	Memory  memory.Memory
	Storage storage.Storage

	// Tools
	Tools []tool.Source
	// ShowToolCalls adds a "Running: ..." notice to the content.
	ShowToolCalls bool
	// ToolCallLimit caps the tool calls executed per run; 0 is unlimited.
	ToolCallLimit int
	ToolChoice    string
	// ReadChatHistory adds the get_chat_history tool.
	ReadChatHistory bool
	// ReadToolCallHistory adds the get_tool_call_history tool.
	ReadToolCallHistory bool

	// Team members reachable through transfer functions.
	Team                    []*Agent
	TeamResponseSeparator   string
	AddTransferInstructions bool

	// Reasoning
	Reasoning         bool
	ReasoningModel    model.Model
	ReasoningAgent    *Agent
	ReasoningMinSteps int
	ReasoningMaxSteps int

	// ResponseModel is a value (or pointer) of the type the content is
	// coerced into. Setting it forces non-streaming model calls.
	ResponseModel any

	Hooks           []Hook
	Logger          logging.Logger
	Metrics         *observability.Metrics
	Tracer          trace.Tracer
	EventBufferSize int
}

func defaultOptions(name string, m model.Model) Options {
	return Options{
		Name:                       name,
		Model:                      m,
		CreateDefaultSystemMessage: true,
		SystemMessageRole:          core.RoleSystem,
		UserMessageRole:            core.RoleUser,
		ResolveContext:             true,
		NumHistoryRuns:             3,
		NumReferences:              3,
		SearchKnowledge:            true,
		TeamResponseSeparator:      "\n",
		AddTransferInstructions:    true,
		ReasoningMinSteps:          1,
		ReasoningMaxSteps:          10,
		EventBufferSize:            64,
		Logger:                     logging.NoOpLogger{},
	}
}
