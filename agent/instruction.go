package agent

import (
	"context"

	"github.com/hupe1980/agentcore/internal/util"
)

// Provider supplies dynamic instruction text at runtime. The data map holds
// the agent's identity, data maps and resolved context (see templateData).
type Provider interface {
	Instruction(ctx context.Context, data map[string]any) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, data map[string]any) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, data map[string]any) (string, error) {
	return f(ctx, data)
}

// Instruction is a static string, a text/template rendered against the run
// data, or a dynamic provider. The zero value is unset.
type Instruction struct {
	text     string
	template bool
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromTemplate creates an Instruction rendered with
// text/template, e.g. "You help {{.user_id}} with {{.session_data.topic}}".
func NewInstructionFromTemplate(tmpl string) Instruction {
	return Instruction{text: tmpl, template: true}
}

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, data map[string]any) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsSet reports whether the instruction has any source.
func (i Instruction) IsSet() bool { return i.provider != nil || i.text != "" }

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil && !i.template }

// Resolve returns the instruction text, rendering the template or invoking
// the provider if needed.
func (i Instruction) Resolve(ctx context.Context, data map[string]any) (string, error) {
	switch {
	case i.provider != nil:
		return i.provider.Instruction(ctx, data)
	case i.template:
		return util.RenderTemplate(i.text, data)
	default:
		return i.text, nil
	}
}
