package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/tool"
)

const (
	referencesPrompt = "\n\nUse the following references from the knowledge base if it helps:\n<references>\n%s\n</references>"
	contextPrompt    = "\n\n<context>\n%s\n</context>"
)

// prepareMessages assembles the model transcript: system message, injected
// messages, history, then the user message.
func (x *execution) prepareMessages() (State, error) {
	a := x.a
	x.registry = x.buildRegistry()
	x.executor = tool.NewExecutor(x.registry)

	system, err := x.systemMessage()
	if err != nil {
		return StateError, err
	}
	if system != nil {
		x.system = system
		x.messages = append(x.messages, *system)
	}

	extra := x.extraMessages()
	x.messages = append(x.messages, extra...)
	x.run.ExtraData.AddMessages = core.CloneMessages(extra)

	if a.opts.AddHistoryToMessages {
		history := a.Memory().GetMessagesFromLastNRuns(a.opts.NumHistoryRuns, a.opts.SystemMessageRole)
		for i := range history {
			history[i].FromHistory = true
		}
		x.messages = append(x.messages, history...)
		x.run.ExtraData.History = core.CloneMessages(history)
	}

	if user := x.userMessage(); user != nil {
		x.user = user
		x.messages = append(x.messages, *user)
		x.produced = append(x.produced, *user)
	}

	x.logger.Debug("agent.messages.prepared",
		"messages", len(x.messages),
		"tools", x.registry.Len(),
	)
	if a.opts.Reasoning {
		return StateReasoning, nil
	}
	return StateModelInvoke, nil
}

func (x *execution) extraMessages() []core.Message {
	var out []core.Message
	for i, v := range x.ro.messages {
		msg, err := core.ParseMessage(v)
		if err != nil {
			x.logger.Warn("agent.message.invalid", "index", i, "error", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

// templateData is the data exposed to template and provider instructions.
func (x *execution) templateData() map[string]any {
	a := x.a
	return map[string]any{
		"name":         a.Name(),
		"description":  a.opts.Description,
		"role":         a.opts.Role,
		"task":         a.opts.Task,
		"agent_id":     a.AgentID(),
		"session_id":   x.run.SessionID,
		"run_id":       x.run.RunID,
		"user_id":      a.UserID(),
		"agent_data":   a.AgentData(),
		"session_data": a.SessionData(),
		"user_data":    a.UserData(),
		"context":      x.context,
		"input":        x.input,
	}
}

func (x *execution) systemMessage() (*core.Message, error) {
	a := x.a
	var contract string
	if x.schema != nil && !x.native {
		contract = x.schema.Instructions()
	}

	if a.opts.SystemPrompt.IsSet() {
		text, err := a.opts.SystemPrompt.Resolve(x.ctx, x.templateData())
		if err != nil {
			return nil, fmt.Errorf("agent: system prompt: %w", err)
		}
		if contract != "" {
			text = strings.TrimSpace(text + "\n" + contract)
		}
		if text == "" {
			return nil, nil
		}
		msg := core.NewMessage(a.opts.SystemMessageRole, text)
		return &msg, nil
	}
	if !a.opts.CreateDefaultSystemMessage {
		return nil, nil
	}

	text := strings.TrimSpace(x.defaultSystemPrompt(contract))
	if text == "" {
		return nil, nil
	}
	msg := core.NewMessage(a.opts.SystemMessageRole, text)
	return &msg, nil
}

func (x *execution) defaultSystemPrompt(contract string) string {
	a := x.a
	o := a.opts

	instructions := append([]string(nil), o.Instructions...)
	if o.Markdown && x.schema == nil {
		instructions = append(instructions, "Use markdown to format your answers.")
	}
	if o.AddDatetimeToInstructions {
		instructions = append(instructions, fmt.Sprintf("The current time is %s", time.Now().Format(time.RFC3339)))
	}
	if o.AddNameToInstructions && o.Name != "" {
		instructions = append(instructions, fmt.Sprintf("Your name is: %s.", o.Name))
	}

	var lines []string
	if o.Description != "" {
		lines = append(lines, o.Description+"\n")
	}
	if o.Task != "" {
		lines = append(lines, "Your task is: "+o.Task+"\n")
	}
	if o.Role != "" {
		lines = append(lines, "Your role is: "+o.Role+"\n")
	}
	team := len(o.Team) > 0 && o.AddTransferInstructions
	if team {
		lines = append(lines,
			"## You are the leader of a team of AI Agents.",
			"- You can either respond directly or transfer tasks to other Agents in your team depending on the tools available to them.",
			"- If you transfer a task to another Agent, make sure to include a clear description of the task and the expected output.",
			"- You must always validate the output of the other Agents before responding to the user, you can re-assign the task if you are not satisfied with the result.",
			"",
		)
	}
	switch len(instructions) {
	case 0:
	case 1:
		lines = append(lines, "## Instructions", instructions[0], "")
	default:
		lines = append(lines, "## Instructions")
		for _, in := range instructions {
			lines = append(lines, "- "+in)
		}
		lines = append(lines, "")
	}
	if o.ExpectedOutput != "" {
		lines = append(lines, "## Expected output\n"+o.ExpectedOutput+"\n")
	}
	if o.AdditionalContext != "" {
		lines = append(lines, o.AdditionalContext+"\n")
	}

	mem := a.Memory()
	settings := mem.Settings()
	if settings.CreateUserMemories {
		if memories := mem.Memories(); len(memories) > 0 {
			lines = append(lines, "You have access to memories from previous interactions with the user that you can use:", "<memories_from_previous_interactions>")
			for _, m := range memories {
				lines = append(lines, "- "+m.Memory)
			}
			lines = append(lines,
				"</memories_from_previous_interactions>",
				"Note: this information is from previous interactions and may be updated in this conversation. You should always prefer information from this conversation over the past memories.\n",
			)
		} else {
			lines = append(lines, "You have the capability to retain memories from previous interactions with the user, but have not had any interactions with the user yet.\n")
		}
	}
	if settings.CreateSessionSummary {
		if sum := mem.Summary(); sum != nil && sum.Summary != "" {
			lines = append(lines,
				"Here is a brief summary of your previous interactions if it helps:",
				"<summary_of_previous_interactions>",
				sum.Summary,
				"</summary_of_previous_interactions>",
				"Note: this information is from previous interactions and may be outdated. You should ALWAYS prefer information from this conversation over the past summary.\n",
			)
		}
	}
	if team {
		lines = append(lines, a.transferPrompt()+"\n")
	}
	if contract != "" {
		lines = append(lines, contract)
	}
	return strings.Join(lines, "\n")
}

func (x *execution) userMessage() *core.Message {
	a := x.a
	media := len(x.ro.images)+len(x.ro.audio)+len(x.ro.videos) > 0
	if x.input == "" && !media {
		return nil
	}

	content := x.input
	if a.opts.AddReferences && x.input != "" {
		docs, err := x.searchKnowledge(x.ctx, x.input, a.opts.NumReferences)
		if err != nil {
			x.logger.Warn("knowledge.search.failed", "error", err)
		} else if len(docs) > 0 {
			content += fmt.Sprintf(referencesPrompt, indentJSON(docs))
		}
	}
	if a.opts.AddContext && len(x.context) > 0 {
		content += fmt.Sprintf(contextPrompt, indentJSON(x.context))
	}

	msg := core.NewMessage(a.opts.UserMessageRole, content)
	msg.Images = append(msg.Images, x.ro.images...)
	msg.Audio = append(msg.Audio, x.ro.audio...)
	msg.Videos = append(msg.Videos, x.ro.videos...)
	return &msg
}

// searchKnowledge queries the retriever or the knowledge base and records the
// retrieval on the run, also when nothing was found.
func (x *execution) searchKnowledge(ctx context.Context, query string, n int) ([]core.Document, error) {
	a := x.a
	var search Retriever
	switch {
	case a.opts.Retriever != nil:
		search = a.opts.Retriever
	case a.opts.Knowledge != nil:
		search = a.opts.Knowledge.Search
	default:
		return nil, nil
	}

	start := time.Now()
	docs, err := search(ctx, query, n)
	if err != nil {
		return nil, err
	}
	x.run.ExtraData.References = append(x.run.ExtraData.References, core.MessageReferences{
		Query:      query,
		References: append([]core.Document{}, docs...),
		Time:       time.Since(start),
	})
	return docs, nil
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
