package tool

// Toolkit is a named group of tools registered together.
type Toolkit struct {
	Name         string
	Instructions string // optional usage hints added to the system message
	tools        []Tool
}

var _ Source = (*Toolkit)(nil)

// NewToolkit groups tools under a name.
func NewToolkit(name string, tools ...Tool) *Toolkit {
	return &Toolkit{Name: name, tools: tools}
}

// Add appends tools to the kit.
func (k *Toolkit) Add(tools ...Tool) *Toolkit {
	k.tools = append(k.tools, tools...)
	return k
}

// Tools implements Source.
func (k *Toolkit) Tools() []Tool { return append([]Tool(nil), k.tools...) }

// Descriptor is a pre-built function description paired with its
// entrypoint. It is the lightest way to hand a tool to an agent.
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
	Entrypoint  func(tc *Context, args map[string]any) (any, error)
}

var _ Source = Descriptor{}

// Tools implements Source by wrapping the descriptor in a FunctionTool.
func (d Descriptor) Tools() []Tool {
	return []Tool{NewFunctionTool(d.Name, d.Description, d.Parameters, d.Entrypoint)}
}

// Of wraps plain Tool implementations as a Source.
func Of(tools ...Tool) Source { return toolList(tools) }

type toolList []Tool

func (l toolList) Tools() []Tool { return append([]Tool(nil), l...) }
