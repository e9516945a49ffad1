package agent

import (
	"context"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/output"
)

// RunOption configures a single run.
type RunOption func(o *runOptions)

type runOptions struct {
	messages  []any
	images    []core.Image
	audio     []core.Audio
	videos    []core.Video
	sessionID string
	userID    string
	schema    *output.Schema
}

// WithMessages injects extra messages between the system message and the
// history. Values are parsed with core.ParseMessage; invalid ones are logged
// and dropped.
func WithMessages(msgs ...any) RunOption {
	return func(o *runOptions) { o.messages = append(o.messages, msgs...) }
}

// WithImages attaches images to the user message.
func WithImages(images ...core.Image) RunOption {
	return func(o *runOptions) { o.images = append(o.images, images...) }
}

// WithAudio attaches audio to the user message.
func WithAudio(audio ...core.Audio) RunOption {
	return func(o *runOptions) { o.audio = append(o.audio, audio...) }
}

// WithVideos attaches videos to the user message.
func WithVideos(videos ...core.Video) RunOption {
	return func(o *runOptions) { o.videos = append(o.videos, videos...) }
}

// WithSessionID switches the agent to another session before the run. The
// persisted session, if any, is merged into the in-memory state. In-memory
// runs are not reset: when the target session has no persisted copy, history
// from the previous session is still injected. Start a new agent (or a new
// runner session) for a clean history.
func WithSessionID(id string) RunOption {
	return func(o *runOptions) { o.sessionID = id }
}

// WithUserID sets the user id before the run.
func WithUserID(id string) RunOption {
	return func(o *runOptions) { o.userID = id }
}

func withSchema(s *output.Schema) RunOption {
	return func(o *runOptions) { o.schema = s }
}

// Result is delivered by RunAsync.
type Result struct {
	Run *core.RunResponse
	Err error
}

// Run executes one run and blocks until it completes.
//
// A failed model call returns the partial run together with an error
// wrapping *ModelError.
func (a *Agent) Run(ctx context.Context, input string, opts ...RunOption) (*core.RunResponse, error) {
	x, err := a.start(ctx, input, false, opts)
	if err != nil {
		return nil, err
	}
	for range x.events {
		// drain
	}
	return x.run, x.err
}

// RunStream executes one streaming run. Events are delivered in order on the
// first channel, which is closed when the run ends.
//
// A failed model call is reported in the event stream as a RunResponse event
// with content type "error". Any other failure is sent on the error channel
// after the event channel is closed.
//
//	events, errs := a.RunStream(ctx, "hello")
//	for ev := range events {
//	    fmt.Print(ev.Text())
//	}
//	if err := <-errs; err != nil { ... }
func (a *Agent) RunStream(ctx context.Context, input string, opts ...RunOption) (<-chan core.Event, <-chan error) {
	x, err := a.start(ctx, input, true, opts)
	if err != nil {
		events := make(chan core.Event)
		close(events)
		errs := make(chan error, 1)
		errs <- err
		close(errs)
		return events, errs
	}
	return x.events, x.errs
}

// RunAsync executes Run on a new goroutine.
func (a *Agent) RunAsync(ctx context.Context, input string, opts ...RunOption) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		run, err := a.Run(ctx, input, opts...)
		ch <- Result{Run: run, Err: err}
	}()
	return ch
}

// Typed is the result of RunTyped.
type Typed[T any] struct {
	// Value is the coerced content; the zero value when Parsed is false.
	Value T
	// Parsed reports whether the content matched T.
	Parsed bool
	Run    *core.RunResponse
}

// RunTyped executes a non-streaming run whose content is coerced into T,
// regardless of the agent's ResponseModel. When coercion fails the run keeps
// the raw text and Parsed is false.
func RunTyped[T any](ctx context.Context, a *Agent, input string, opts ...RunOption) (Typed[T], error) {
	var zero T
	schema, err := output.NewSchema(&zero)
	if err != nil {
		return Typed[T]{}, err
	}
	run, err := a.Run(ctx, input, append(opts, withSchema(schema))...)
	out := Typed[T]{Run: run}
	if err != nil {
		return out, err
	}
	if v, ok := run.Content.(T); ok {
		out.Value = v
		out.Parsed = true
	}
	return out, nil
}

// start claims the agent and launches the execution goroutine.
func (a *Agent) start(ctx context.Context, input string, stream bool, optFns []RunOption) (*execution, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var ro runOptions
	for _, fn := range optFns {
		fn(&ro)
	}
	x := newExecution(ctx, a, input, stream, ro)
	go func() {
		err := x.execute()
		x.err = err
		a.running.Store(false)
		close(x.events)
		if err != nil && !isModelError(err) {
			x.errs <- err
		}
		close(x.errs)
	}()
	return x, nil
}
