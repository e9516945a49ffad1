package config

import (
	"context"
	"fmt"
	"io"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/memory"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/model/anthropic"
	"github.com/hupe1980/agentcore/model/openai"
	"github.com/hupe1980/agentcore/observability"
	"github.com/hupe1980/agentcore/storage"
	"github.com/hupe1980/agentcore/storage/redisstore"
	"github.com/hupe1980/agentcore/storage/sqlstore"
)

// Logger builds the configured logger writing to out (stderr when nil).
func (c *Config) Logger(out io.Writer) logging.Logger {
	if out == nil {
		out = os.Stderr
	}
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.New(&logging.Config{
		Level:     level,
		Format:    c.Logging.Format,
		Output:    out,
		AddSource: c.Logging.AddSource,
		Component: "agentcore",
	})
}

// NewModel builds the model adapter described by mc. API keys fall back to
// the provider SDK environment handling (OPENAI_API_KEY, ANTHROPIC_API_KEY).
func NewModel(mc ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "echo":
		return model.NewEchoModel(), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}
			o.APIKey = mc.APIKey
		}), nil
	}
	return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
}

// OpenStorage connects the configured session storage. The returned close
// func releases its connections.
func (c *Config) OpenStorage(ctx context.Context) (storage.Storage, func() error, error) {
	sc := c.Storage
	noop := func() error { return nil }
	switch sc.Driver {
	case "memory":
		return storage.NewInMemory(), noop, nil
	case "sqlite", "postgres":
		st, err := sqlstore.Open(ctx, sc.Driver, sc.DSN, func(o *sqlstore.Options) {
			if sc.Table != "" {
				o.Table = sc.Table
			}
			o.AutoMigrate = true
		})
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil
	case "redis":
		st, err := redisstore.NewFromURL(ctx, sc.DSN, func(o *redisstore.Options) {
			if sc.Prefix != "" {
				o.Prefix = sc.Prefix
			}
			o.TTL = sc.TTL
		})
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown storage driver %q", sc.Driver)
}

// Metrics registers the agent metrics on reg when metrics are enabled, and
// returns nil otherwise.
func (c *Config) Metrics(reg prometheus.Registerer) *observability.Metrics {
	if !c.Telemetry.Metrics || reg == nil {
		return nil
	}
	return observability.NewMetrics(reg)
}

// Tracer builds the configured tracer and the shutdown func flushing it.
func (c *Config) Tracer(version string) (trace.Tracer, func(context.Context) error, error) {
	t := c.Telemetry
	return observability.NewTracer(observability.TraceConfig{
		ServiceName:    t.ServiceName,
		ServiceVersion: version,
		Endpoint:       t.OTLPEndpoint,
		SamplingRate:   t.SamplingRate,
		Insecure:       t.Insecure,
	})
}

// Deps are the shared components handed to every agent built from a Config.
type Deps struct {
	Model   model.Model
	Storage storage.Storage
	Logger  logging.Logger
	Metrics *observability.Metrics
	Tracer  trace.Tracer
}

// NewAgent builds the configured agent and its team. A nil deps.Model is
// built from the model section. optFns are applied last to the leader.
func (c *Config) NewAgent(deps Deps, optFns ...func(o *agent.Options)) (*agent.Agent, error) {
	m := deps.Model
	if m == nil {
		var err error
		if m, err = NewModel(c.Model); err != nil {
			return nil, err
		}
	}
	mem, err := c.newMemory(m, deps.Logger)
	if err != nil {
		return nil, err
	}

	team := make([]*agent.Agent, 0, len(c.Agent.Team))
	for _, mc := range c.Agent.Team {
		member, err := c.newMember(mc, m, deps)
		if err != nil {
			return nil, fmt.Errorf("team member %s: %w", mc.Name, err)
		}
		team = append(team, member)
	}

	ac := c.Agent
	fns := append([]func(o *agent.Options){func(o *agent.Options) {
		o.Description = ac.Description
		o.Role = ac.Role
		o.Task = ac.Task
		o.Instructions = ac.Instructions
		o.ExpectedOutput = ac.ExpectedOutput
		o.Markdown = ac.Markdown
		o.AddDatetimeToInstructions = ac.AddDatetimeToInstructions
		o.AddHistoryToMessages = ac.AddHistoryToMessages
		o.NumHistoryRuns = ac.NumHistoryRuns
		o.ReadChatHistory = ac.ReadChatHistory
		o.ReadToolCallHistory = ac.ReadToolCallHistory
		o.ShowToolCalls = ac.ShowToolCalls
		o.ToolCallLimit = ac.ToolCallLimit
		o.Reasoning = ac.Reasoning
		o.ReasoningMinSteps = ac.ReasoningMinSteps
		o.ReasoningMaxSteps = ac.ReasoningMaxSteps
		o.Team = team
		o.Memory = mem
		o.Storage = deps.Storage
		c.applyShared(o, deps)
	}}, optFns...)
	return agent.New(ac.Name, m, fns...), nil
}

func (c *Config) newMember(mc MemberConfig, leaderModel model.Model, deps Deps) (*agent.Agent, error) {
	m := leaderModel
	if mc.Model != nil {
		var err error
		if m, err = NewModel(*mc.Model); err != nil {
			return nil, err
		}
	}
	return agent.New(mc.Name, m, func(o *agent.Options) {
		o.Description = mc.Description
		o.Role = mc.Role
		o.Instructions = mc.Instructions
		o.Markdown = mc.Markdown
		c.applyShared(o, deps)
	}), nil
}

func (c *Config) applyShared(o *agent.Options, deps Deps) {
	if deps.Logger != nil {
		o.Logger = logging.With(deps.Logger, "agent", o.Name)
	}
	o.Metrics = deps.Metrics
	o.Tracer = deps.Tracer
}

func (c *Config) newMemory(m model.Model, logger logging.Logger) (*memory.AgentMemory, error) {
	mc := c.Memory
	settings := memory.Settings{
		CreateUserMemories:           mc.CreateUserMemories,
		UpdateUserMemoriesAfterRun:   mc.UpdateUserMemoriesAfterRun,
		CreateSessionSummary:         mc.CreateSessionSummary,
		UpdateSessionSummaryAfterRun: mc.UpdateSessionSummaryAfterRun,
	}
	var (
		manager    memory.Manager
		summarizer memory.Summarizer
		db         memory.DB
	)
	if settings.CreateUserMemories {
		mm, err := memory.NewModelManager(m)
		if err != nil {
			return nil, err
		}
		manager = mm
		db = memory.NewInMemoryDB()
	}
	if settings.CreateSessionSummary {
		ms, err := memory.NewModelSummarizer(m)
		if err != nil {
			return nil, err
		}
		summarizer = ms
	}
	return memory.NewAgentMemory(func(o *memory.Options) {
		o.Settings = settings
		o.Manager = manager
		o.Summarizer = summarizer
		o.DB = db
		o.Logger = logger
	}), nil
}
