package tool

import (
	"context"

	"github.com/hupe1980/agentcore/logging"
)

// Context is handed to every tool call. It correlates the call with the run
// that issued it and carries the agent's logger.
type Context struct {
	context.Context

	RunID     string
	SessionID string
	AgentID   string
	AgentName string
	// CallID is the model assigned tool call id.
	CallID string
	// Stream reports whether the issuing run is streaming. Transfer
	// functions mirror it when running a team member.
	Stream bool

	logger logging.Logger
}

// NewContext creates a tool context. A nil ctx defaults to context.Background
// and a nil logger to logging.NoOpLogger.
func NewContext(ctx context.Context, callID string, logger logging.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{Context: ctx, CallID: callID, logger: logging.OrNoOp(logger)}
}

// WithCall returns a shallow copy bound to another tool call id.
func (c *Context) WithCall(callID string) *Context {
	if c == nil {
		return NewContext(context.Background(), callID, nil)
	}
	cp := *c
	cp.CallID = callID
	return &cp
}

// Logger returns the logger, never nil.
func (c *Context) Logger() logging.Logger {
	if c == nil {
		return logging.NoOpLogger{}
	}
	return logging.OrNoOp(c.logger)
}
