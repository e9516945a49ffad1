package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
)

// ErrUnknownAgent is returned when a run names an agent that was never registered.
var ErrUnknownAgent = errors.New("runner: unknown agent")

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits runs executing at the same time across all
	// sessions.
	MaxConcurrentRuns int
	// EventBufferSize sets channel buffering for forwarded stream events.
	EventBufferSize int
	// Logger receives runner lifecycle logs.
	Logger logging.Logger
}

// instance is the agent serving one (agent, session) pair. mu serializes its runs.
type instance struct {
	mu    sync.Mutex
	agent *agent.Agent
}

// Runner serves registered agents across many sessions. Each session gets its
// own clone of the registered agent; runs on one session are serialized while
// different sessions execute concurrently up to MaxConcurrentRuns. Public
// methods are safe for concurrent use.
type Runner struct {
	opts   Options
	logger logging.Logger
	sem    *semaphore.Weighted

	mu         sync.RWMutex
	agents     map[string]*agent.Agent
	instances  map[string]*instance
	activeRuns map[string]context.CancelFunc
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		EventBufferSize:   64,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 1
	}
	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = 64
	}

	return &Runner{
		opts:       opts,
		logger:     logging.OrNoOp(opts.Logger),
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		agents:     make(map[string]*agent.Agent),
		instances:  make(map[string]*instance),
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Register makes an agent available under its name. The registered agent is a
// template and never runs itself. Registering a name again replaces the
// template for sessions created afterwards.
func (r *Runner) Register(agents ...*agent.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range agents {
		if _, ok := r.agents[a.Name()]; ok {
			r.logger.Warn("runner.agent.replaced", "agent", a.Name())
		}
		r.agents[a.Name()] = a
	}
}

// Agents returns the registered agent names in sorted order.
func (r *Runner) Agents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes one run of agentName in sessionID and waits for the result.
// An empty sessionID starts a new session; its id is on the returned run.
func (r *Runner) Run(ctx context.Context, agentName, sessionID, input string, opts ...agent.RunOption) (*core.RunResponse, error) {
	inst, key, err := r.instance(agentName, sessionID)
	if err != nil {
		return nil, err
	}
	ctx, release, err := r.acquire(ctx, key, inst)
	if err != nil {
		return nil, err
	}
	defer release()

	return inst.agent.Run(ctx, input, opts...)
}

// RunStream executes one run of agentName in sessionID and forwards its
// events. The channel pair follows agent.RunStream: events close first, then
// errors carries at most one fatal error.
func (r *Runner) RunStream(ctx context.Context, agentName, sessionID, input string, opts ...agent.RunOption) (<-chan core.Event, <-chan error) {
	eventsCh := make(chan core.Event, r.opts.EventBufferSize)
	errorsCh := make(chan error, 1)

	inst, key, err := r.instance(agentName, sessionID)
	if err != nil {
		close(eventsCh)
		errorsCh <- err
		close(errorsCh)
		return eventsCh, errorsCh
	}

	go func() {
		defer close(errorsCh)

		runCtx, release, err := r.acquire(ctx, key, inst)
		if err != nil {
			close(eventsCh)
			errorsCh <- err
			return
		}
		defer release()

		events, errs := inst.agent.RunStream(runCtx, input, opts...)
		delivering := true
		for ev := range events {
			if !delivering {
				continue
			}
			select {
			case <-runCtx.Done():
				// keep draining so the agent can finish and release the session
				delivering = false
			case eventsCh <- ev:
			}
		}
		close(eventsCh)
		if err := <-errs; err != nil {
			errorsCh <- err
		}
	}()

	return eventsCh, errorsCh
}

// Cancel cancels the in-flight run of a session.
func (r *Runner) Cancel(agentName, sessionID string) error {
	key := sessionKey(agentName, sessionID)
	r.mu.Lock()
	cancel, exists := r.activeRuns[key]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("no active run for session %s of agent %s", sessionID, agentName)
	}

	cancel()

	return nil
}

// Session returns the agent instance serving a session, or nil when the
// session has not run on this runner yet.
func (r *Runner) Session(agentName, sessionID string) *agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inst, ok := r.instances[sessionKey(agentName, sessionID)]; ok {
		return inst.agent
	}
	return nil
}

// Evict drops the cached instance of a session. The next run on that session
// starts from a fresh clone and reloads persisted state from storage.
func (r *Runner) Evict(agentName, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, sessionKey(agentName, sessionID))
}

// instance returns the agent serving the session, cloning the registered
// template on first use.
func (r *Runner) instance(agentName, sessionID string) (*instance, string, error) {
	if sessionID == "" {
		sessionID = core.NewID()
	}
	key := sessionKey(agentName, sessionID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[key]; ok {
		return inst, key, nil
	}
	tmpl, ok := r.agents[agentName]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownAgent, agentName)
	}
	inst := &instance{agent: tmpl.Fork(sessionID)}
	r.instances[key] = inst
	r.logger.Debug("runner.session.created", "agent", agentName, "session_id", sessionID)
	return inst, key, nil
}

// acquire takes a concurrency slot and the session lock, and registers a
// cancel func for the run. release undoes all three.
func (r *Runner) acquire(ctx context.Context, key string, inst *instance) (context.Context, func(), error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("runner: waiting for a run slot: %w", err)
	}
	inst.mu.Lock()

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[key] = cancel
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.activeRuns, key)
		r.mu.Unlock()
		cancel()
		inst.mu.Unlock()
		r.sem.Release(1)
	}
	return runCtx, release, nil
}

func sessionKey(agentName, sessionID string) string {
	return agentName + "/" + sessionID
}
