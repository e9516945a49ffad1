package agent

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/memory"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/tool"
)

var (
	// ErrNoModel is returned when a run starts without a model.
	ErrNoModel = errors.New("agent: no model configured")
	// ErrRunInProgress is returned when a run starts while another run of
	// the same instance is still executing. Use Clone for parallel runs.
	ErrRunInProgress = errors.New("agent: run already in progress")
)

// Agent executes runs against a model. One instance supports one in-flight
// run at a time; accessors are safe for concurrent use.
type Agent struct {
	opts    Options
	hooks   hookSet
	logger  logging.Logger
	running atomic.Bool

	mu          sync.RWMutex
	agentID     string
	sessionID   string
	userID      string
	agentData   map[string]any
	sessionData map[string]any
	userData    map[string]any
	memory      memory.Memory
}

// New creates an agent named name backed by m.
//
//	a := agent.New("helper", openai.NewModel(), func(o *agent.Options) {
//	    o.Instructions = []string{"Answer in one sentence."}
//	    o.Storage = storage.NewInMemory()
//	})
func New(name string, m model.Model, optFns ...func(o *Options)) *Agent {
	opts := defaultOptions(name, m)
	for _, fn := range optFns {
		fn(&opts)
	}
	return newAgent(opts)
}

func newAgent(opts Options) *Agent {
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.AgentID == "" {
		opts.AgentID = core.NewID()
	}
	if opts.SystemMessageRole == "" {
		opts.SystemMessageRole = core.RoleSystem
	}
	if opts.UserMessageRole == "" {
		opts.UserMessageRole = core.RoleUser
	}
	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = 64
	}
	if opts.Memory == nil {
		logger := opts.Logger
		opts.Memory = memory.NewAgentMemory(func(o *memory.Options) { o.Logger = logger })
	}
	if opts.UserID != "" {
		opts.Memory.SetUserID(opts.UserID)
	}

	return &Agent{
		opts:        opts,
		hooks:       newHookSet(opts.Hooks),
		logger:      logging.With(opts.Logger, "agent", opts.Name),
		agentID:     opts.AgentID,
		sessionID:   opts.SessionID,
		userID:      opts.UserID,
		agentData:   core.CloneData(opts.AgentData),
		sessionData: core.CloneData(opts.SessionData),
		userData:    core.CloneData(opts.UserData),
		memory:      opts.Memory,
	}
}

// Clone returns an independent agent with the same configuration, after
// applying optFns to a copy of the options.
//
// Data maps, context, instruction lists and memory are deep copied. Model,
// storage, knowledge, tools, team members, the reasoning agent, hooks,
// logger, metrics and tracer are shared; use Fork to give the clone its own
// members and reasoning agent. The clone keeps the agent, session
// and user ids unless optFns override them.
func (a *Agent) Clone(optFns ...func(o *Options)) *Agent {
	a.mu.RLock()
	opts := a.opts
	opts.AgentID = a.agentID
	opts.SessionID = a.sessionID
	opts.UserID = a.userID
	opts.AgentData = core.CloneData(a.agentData)
	opts.SessionData = core.CloneData(a.sessionData)
	opts.UserData = core.CloneData(a.userData)
	opts.Memory = a.memory.Clone()
	a.mu.RUnlock()

	opts.Context = core.CloneData(a.opts.Context)
	opts.Instructions = append([]string(nil), a.opts.Instructions...)
	opts.Tools = append([]tool.Source(nil), a.opts.Tools...)
	opts.Team = append([]*Agent(nil), a.opts.Team...)
	opts.Hooks = append([]Hook(nil), a.opts.Hooks...)

	for _, fn := range optFns {
		fn(&opts)
	}
	return newAgent(opts)
}

// Fork clones the agent for sessionID together with its team members and
// reasoning agent, so forks of one template never share a running agent.
// Members get the session id "<sessionID>/<member name>" and their own
// members are forked the same way. A member reachable twice is forked once.
func (a *Agent) Fork(sessionID string) *Agent {
	return a.fork(sessionID, map[*Agent]*Agent{})
}

func (a *Agent) fork(sessionID string, seen map[*Agent]*Agent) *Agent {
	if f, ok := seen[a]; ok {
		return f
	}
	f := a.Clone(func(o *Options) { o.SessionID = sessionID })
	seen[a] = f

	team := make([]*Agent, 0, len(a.opts.Team))
	for _, m := range a.opts.Team {
		team = append(team, m.fork(memberSessionID(sessionID, m), seen))
	}
	var reasoner *Agent
	if ra := a.opts.ReasoningAgent; ra != nil {
		reasoner = ra.fork(memberSessionID(sessionID, ra), seen)
	}

	f.opts.Team = team
	f.opts.ReasoningAgent = reasoner
	return f
}

func memberSessionID(leaderSessionID string, member *Agent) string {
	return leaderSessionID + "/" + member.Name()
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.opts.Name }

// Description returns the agent description.
func (a *Agent) Description() string { return a.opts.Description }

// Role returns the agent role.
func (a *Agent) Role() string { return a.opts.Role }

// Model returns the configured model (may be nil).
func (a *Agent) Model() model.Model { return a.opts.Model }

// Team returns the team members.
func (a *Agent) Team() []*Agent { return append([]*Agent(nil), a.opts.Team...) }

// AgentID returns the agent id.
func (a *Agent) AgentID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.agentID
}

// SessionID returns the current session id; empty before the first run
// unless configured.
func (a *Agent) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// UserID returns the user id.
func (a *Agent) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

// AgentData returns a copy of the agent data.
func (a *Agent) AgentData() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return core.CloneData(a.agentData)
}

// SessionData returns a copy of the session data.
func (a *Agent) SessionData() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return core.CloneData(a.sessionData)
}

// UserData returns a copy of the user data.
func (a *Agent) UserData() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return core.CloneData(a.userData)
}

// Memory returns the agent memory.
func (a *Agent) Memory() memory.Memory {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.memory
}

func (a *Agent) ensureSessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessionID == "" {
		a.sessionID = core.NewID()
	}
	return a.sessionID
}

// setSessionID switches the session id. In-memory state is kept.
func (a *Agent) setSessionID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionID = id
}

func (a *Agent) setUserID(id string) {
	a.mu.Lock()
	a.userID = id
	mem := a.memory
	a.mu.Unlock()
	mem.SetUserID(id)
}

// updateSessionData merges kv into the session data; kv wins.
func (a *Agent) updateSessionData(kv map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionData = core.MergeData(kv, a.sessionData)
}

func (a *Agent) toolNames() []string {
	return tool.NewRegistry(nil, a.opts.Tools...).Names()
}
