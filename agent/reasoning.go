package agent

import (
	"fmt"

	"github.com/hupe1980/agentcore/core"
)

const (
	reasoningResearchBridge = "I have worked through this problem in-depth, running all necessary tools and have included my raw, step by step research. "
	reasoningAnswerBridge   = "Now I will summarize my reasoning and provide a final answer. I will skip any tool calls already executed and steps that are not relevant to the final answer."
)

func reasoningInstructions(minSteps, maxSteps int) []string {
	return []string{
		"First, carefully analyze the task by spelling it out loud.",
		"Then break the problem down and think it through step by step, considering more than one strategy.",
		"Work through your plan one step at a time and run any tools you need. For each step provide a title, the action you take (I will ...), its result (I did ...), your reasoning, the next action and a confidence score between 0.0 and 1.0.",
		"Set next_action to continue when more steps are needed, to validate when you have an answer that still needs checking and to final_answer once the answer is validated.",
		"Always validate your result before providing the final answer.",
		fmt.Sprintf("Take at least %d and at most %d steps to solve the problem.", minSteps, maxSteps),
		"If at any time the result is wrong, reset and start over.",
	}
}

// reasoningAgent returns the configured reasoning agent or builds one
// sharing the parent's tools.
func (x *execution) reasoningAgent() *Agent {
	a := x.a
	if a.opts.ReasoningAgent != nil {
		return a.opts.ReasoningAgent
	}
	m := a.opts.ReasoningModel
	if m == nil {
		m = a.opts.Model
	}
	return New(a.Name()+"-reasoning", m, func(o *Options) {
		o.Description = "You are a meticulous and thoughtful assistant that solves a problem by thinking through it step-by-step."
		o.Instructions = reasoningInstructions(a.opts.ReasoningMinSteps, a.opts.ReasoningMaxSteps)
		o.ResponseModel = core.ReasoningSteps{}
		o.Tools = a.opts.Tools
		o.ToolCallLimit = a.opts.ToolCallLimit
		o.Logger = a.opts.Logger
		o.Metrics = a.opts.Metrics
		o.Tracer = a.opts.Tracer
	})
}

// reason runs the reasoning sub-loop and splices its transcript, framed by
// the two bridge messages, into the model transcript.
func (x *execution) reason() (State, error) {
	a := x.a
	child := x.reasoningAgent()
	x.emit(core.NewEvent(core.EventReasoningStarted, x.run, "Reasoning started"))

	transcript := core.CloneMessages(x.messages)
	var (
		steps    []core.ReasoningStep
		produced []core.Message
	)
	next := core.NextActionContinue
	for i := 0; next == core.NextActionContinue && i < a.opts.ReasoningMaxSteps; i++ {
		res, err := RunTyped[core.ReasoningSteps](x.ctx, child, "", WithMessages(asValues(transcript)...))
		if err != nil {
			x.logger.Warn("reasoning.aborted", "iteration", i, "error", err)
			break
		}
		if !res.Parsed || len(res.Value.ReasoningSteps) == 0 {
			x.logger.Warn("reasoning.aborted", "iteration", i, "reason", "empty or malformed steps")
			break
		}

		for _, step := range res.Value.ReasoningSteps {
			ev := core.NewEvent(core.EventReasoningStep, x.run, step)
			ev.ContentType = "ReasoningStep"
			x.emit(ev)
		}
		steps = append(steps, res.Value.ReasoningSteps...)

		msgs := childOutput(res.Run)
		transcript = append(transcript, msgs...)
		produced = append(produced, msgs...)

		next = res.Value.ReasoningSteps[len(res.Value.ReasoningSteps)-1].NextAction
		if next == "" {
			next = core.NextActionFinalAnswer
		}
	}

	ev := core.NewEvent(core.EventReasoningCompleted, x.run, core.ReasoningSteps{ReasoningSteps: steps})
	ev.ContentType = "ReasoningSteps"
	x.emit(ev)
	x.logger.Info("reasoning.done", "steps", len(steps), "next_action", string(next))

	x.run.ExtraData.ReasoningSteps = append(x.run.ExtraData.ReasoningSteps, steps...)
	x.run.ExtraData.ReasoningMessages = core.CloneMessages(produced)

	x.messages = append(x.messages, skipMemory(core.NewMessage(core.RoleAssistant, reasoningResearchBridge)))
	for _, m := range produced {
		x.messages = append(x.messages, skipMemory(m))
	}
	x.messages = append(x.messages, skipMemory(core.NewMessage(core.RoleAssistant, reasoningAnswerBridge)))
	return StateModelInvoke, nil
}

// childOutput returns the assistant message of a reasoning run together with
// the tool messages that followed it.
func childOutput(run *core.RunResponse) []core.Message {
	if run == nil {
		return nil
	}
	for i := len(run.Messages) - 1; i >= 0; i-- {
		if run.Messages[i].Role == core.RoleAssistant {
			return core.CloneMessages(run.Messages[i:])
		}
	}
	return nil
}

func skipMemory(m core.Message) core.Message {
	m.SkipMemory = true
	return m
}

func asValues(msgs []core.Message) []any {
	out := make([]any, len(msgs))
	for i, m := range msgs {
		out[i] = m
	}
	return out
}
