package tool

import (
	"sync"

	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
)

// Registry is an ordered, name keyed set of tools. Sources are flattened on
// registration; a later tool with an existing name replaces the earlier one
// in place.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	tools  map[string]Tool
	logger logging.Logger
}

var _ Source = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger, sources ...Source) *Registry {
	r := &Registry{tools: map[string]Tool{}, logger: logging.OrNoOp(logger)}
	r.Register(sources...)
	return r
}

// Register resolves every source into tools and adds them.
func (r *Registry) Register(sources ...Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, t := range src.Tools() {
			if t == nil || t.Name() == "" {
				continue
			}
			name := t.Name()
			if _, exists := r.tools[name]; exists {
				r.logger.Warn("tool.registry.duplicate", "tool", name)
			} else {
				r.order = append(r.order, name)
			}
			r.tools[name] = t
		}
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Tools implements Source.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions converts the registered tools into model function definitions.
func (r *Registry) Definitions() []model.ToolDefinition {
	tools := r.Tools()
	if len(tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition(t))
	}
	return defs
}

// Definition converts a single tool into a model function definition.
func Definition(t Tool) model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
