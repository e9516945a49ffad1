package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/output"
)

// Manager decides how a user message changes the long-term memories.
type Manager interface {
	// Update returns the complete new memory list and a short summary of
	// what changed.
	Update(ctx context.Context, input string, existing []core.UserMemory) ([]core.UserMemory, string, error)
}

// Summarizer condenses a conversation into a session summary.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []core.Message) (*core.SessionSummary, error)
}

// ErrUnparsableResponse is returned when a model answer does not match the
// expected JSON shape.
var ErrUnparsableResponse = errors.New("model response could not be parsed")

type memoryList struct {
	Memories []string `json:"memories" jsonschema:"description=The complete list of memories about the user"`
	Changed  string   `json:"changed,omitempty" jsonschema:"description=One sentence describing what changed"`
}

const managerPrompt = `Your task is to maintain a list of concise, long-term memories about the user.
Memories capture personal facts, preferences, goals and other details that help personalize future answers.
Given the existing memories and a new message from the user, return the complete updated list:
- keep existing memories unless the new message contradicts them
- add new memories for information worth remembering
- keep each memory short and written in the third person
If the message contains nothing worth remembering, return the existing memories unchanged.`

// ModelManager is a Manager backed by a language model.
type ModelManager struct {
	model  model.Model
	schema *output.Schema
}

var _ Manager = (*ModelManager)(nil)

// NewModelManager creates a model backed memory manager.
func NewModelManager(m model.Model) (*ModelManager, error) {
	schema, err := output.NewSchema(memoryList{})
	if err != nil {
		return nil, err
	}
	return &ModelManager{model: m, schema: schema}, nil
}

// Update implements Manager.
func (mm *ModelManager) Update(ctx context.Context, input string, existing []core.UserMemory) ([]core.UserMemory, string, error) {
	var b strings.Builder
	b.WriteString("<existing_memories>\n")
	for _, mem := range existing {
		b.WriteString("- " + mem.Memory + "\n")
	}
	b.WriteString("</existing_memories>\n\n<user_message>\n" + input + "\n</user_message>")

	var parsed memoryList
	if err := invokeTyped(ctx, mm.model, mm.schema, managerPrompt, b.String(), &parsed); err != nil {
		return nil, "", err
	}

	byText := make(map[string]core.UserMemory, len(existing))
	for _, mem := range existing {
		byText[mem.Memory] = mem
	}
	updated := make([]core.UserMemory, 0, len(parsed.Memories))
	for _, text := range parsed.Memories {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if prev, ok := byText[text]; ok {
			updated = append(updated, prev)
			continue
		}
		updated = append(updated, core.UserMemory{Memory: text, Input: input})
	}
	changed := parsed.Changed
	if changed == "" {
		changed = "Memory updated"
	}
	return updated, changed, nil
}

const summarizerPrompt = `Analyze the following conversation between a user and an assistant, and extract:
- summary: a concise summary of the session, focusing on important information
- topics: the topics discussed in the session
Do not make anything up.`

// ModelSummarizer is a Summarizer backed by a language model.
type ModelSummarizer struct {
	model  model.Model
	schema *output.Schema
}

var _ Summarizer = (*ModelSummarizer)(nil)

// NewModelSummarizer creates a model backed session summarizer.
func NewModelSummarizer(m model.Model) (*ModelSummarizer, error) {
	schema, err := output.NewSchema(core.SessionSummary{})
	if err != nil {
		return nil, err
	}
	return &ModelSummarizer{model: m, schema: schema}, nil
}

// Summarize implements Summarizer. An empty conversation yields nil.
func (ms *ModelSummarizer) Summarize(ctx context.Context, msgs []core.Message) (*core.SessionSummary, error) {
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleUser:
			b.WriteString("User: " + msg.Text() + "\n")
		case core.RoleAssistant:
			if text := msg.Text(); text != "" {
				b.WriteString("Assistant: " + text + "\n")
			}
		}
	}
	if b.Len() == 0 {
		return nil, nil
	}

	var summary core.SessionSummary
	if err := invokeTyped(ctx, ms.model, ms.schema, summarizerPrompt,
		"<conversation>\n"+b.String()+"</conversation>", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// invokeTyped runs a single blocking model call expecting JSON matching
// schema and stores the coerced value in dst.
func invokeTyped[T any](ctx context.Context, m model.Model, schema *output.Schema, system, user string, dst *T) error {
	if m == nil {
		return errors.New("no model configured")
	}
	req := model.Request{Messages: []core.Message{
		core.NewMessage(core.RoleSystem, system),
		core.NewMessage(core.RoleUser, user),
	}}
	if m.Info().SupportsStructuredOutputs {
		req.ResponseFormat = &model.ResponseFormat{Name: schema.Name(), Schema: schema.JSON(), Strict: false}
	} else {
		req.Messages[0].Content += "\n\n" + schema.Instructions()
	}

	resp, err := model.Invoke(ctx, m, req)
	if err != nil {
		return err
	}
	v, ok := schema.Coerce(resp.Content)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnparsableResponse, resp.Content)
	}
	typed, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: unexpected type %T", ErrUnparsableResponse, v)
	}
	*dst = typed
	return nil
}
