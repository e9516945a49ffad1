// Package agentcore provides a high-level façade over the runner for
// applications serving agents across many sessions. Most applications
// interact with this package by:
//  1. Creating an AgentCore via New()
//  2. Registering one or more agents built with the agent package
//  3. Invoking agents asynchronously (Invoke) or synchronously (InvokeSync)
//
// Applications running a single agent in a single session can use
// agent.Agent directly.
package agentcore

import (
	"context"
	"errors"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/runner"
)

// Options configures the AgentCore instance.
type Options struct {
	// MaxConcurrentRuns limits the number of runs that can execute
	// simultaneously across all sessions.
	MaxConcurrentRuns int

	// EventBufferSize sets the channel buffer size of forwarded events.
	EventBufferSize int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentCore is the high-level façade over a runner.Runner.
type AgentCore struct {
	opts   Options
	runner *runner.Runner
}

// New creates a new AgentCore instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentCore {
	opts := Options{
		MaxConcurrentRuns: 10,
		EventBufferSize:   64,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(func(o *runner.Options) {
		o.MaxConcurrentRuns = opts.MaxConcurrentRuns
		o.EventBufferSize = opts.EventBufferSize
		o.Logger = opts.Logger
	})

	return &AgentCore{opts: opts, runner: r}
}

// RegisterAgent adds agents to the underlying runner.
func (c *AgentCore) RegisterAgent(agents ...*agent.Agent) { c.runner.Register(agents...) }

// Runner exposes the underlying runner.
func (c *AgentCore) Runner() *runner.Runner { return c.runner }

// Invoke starts an asynchronous run returning event & error channels.
func (c *AgentCore) Invoke(
	ctx context.Context,
	sessionID string,
	agentName string,
	input string,
	opts ...agent.RunOption,
) (<-chan core.Event, <-chan error) {
	return c.runner.RunStream(ctx, agentName, sessionID, input, opts...)
}

// InvokeSync is a synchronous helper that drains the async channels and
// returns every event of the run. An error-content fragment is returned as
// the error of the run.
func (c *AgentCore) InvokeSync(
	ctx context.Context,
	sessionID string,
	agentName string,
	input string,
	opts ...agent.RunOption,
) ([]core.Event, error) {
	eventsCh, errorsCh := c.runner.RunStream(ctx, agentName, sessionID, input, opts...)

	var (
		events   []core.Event
		modelErr error
	)
	for ev := range eventsCh {
		if ev.IsError() {
			modelErr = errors.New(ev.Text())
		}
		events = append(events, ev)
	}
	if err := <-errorsCh; err != nil {
		return events, err
	}
	return events, modelErr
}
