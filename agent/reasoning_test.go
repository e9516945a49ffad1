package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/model"
)

func stepsModel(raw string) *model.MockModel {
	m := model.NewMockModel("reasoner")
	m.Fallback = func(model.Request) model.MockResponse { return model.MockResponse{Content: raw} }
	return m
}

func reasoningAgentUnderTest(main, reasoner model.Model, maxSteps int) *Agent {
	return New("thinker", main, func(o *Options) {
		o.Reasoning = true
		o.ReasoningModel = reasoner
		o.ReasoningMaxSteps = maxSteps
	})
}

func TestReasoning_StopsAtMaxSteps(t *testing.T) {
	reasoner := stepsModel(`{"reasoning_steps":[{"title":"think","action":"I will think","next_action":"continue"}]}`)
	main := replyModel("final")
	a := reasoningAgentUnderTest(main, reasoner, 3)

	events, errs := a.RunStream(context.Background(), "solve it")
	evs := collect(t, events, errs)

	assert.Equal(t, 3, reasoner.Calls())
	assert.Equal(t, 1, main.Calls())

	var steps int
	for _, ev := range evs {
		if ev.Type == core.EventReasoningStep {
			steps++
			assert.IsType(t, core.ReasoningStep{}, ev.Content)
		}
	}
	assert.Equal(t, 3, steps)
	types := eventTypes(evs)
	assert.Contains(t, types, core.EventReasoningStarted)
	assert.Contains(t, types, core.EventReasoningCompleted)

	final := evs[len(evs)-1]
	require.NotNil(t, final.ExtraData)
	assert.Len(t, final.ExtraData.ReasoningSteps, 3)
	assert.Len(t, final.ExtraData.ReasoningMessages, 3)
}

func TestReasoning_BridgesAndMemory(t *testing.T) {
	reasoner := stepsModel(`{"reasoning_steps":[{"title":"done","next_action":"final_answer"}]}`)
	main := replyModel("final")
	a := reasoningAgentUnderTest(main, reasoner, 10)

	run, err := a.Run(context.Background(), "solve it")
	require.NoError(t, err)
	assert.Equal(t, 1, reasoner.Calls())
	assert.Equal(t, "final", run.Content)

	msgs := main.Requests()[0].Messages
	require.Len(t, msgs, 4)
	n := len(msgs)
	assert.Equal(t, "solve it", msgs[n-4].Content)
	assert.Equal(t, reasoningResearchBridge, msgs[n-3].Content)
	assert.Equal(t, core.RoleAssistant, msgs[n-2].Role)
	assert.Contains(t, msgs[n-2].Content, "reasoning_steps")
	assert.Equal(t, reasoningAnswerBridge, msgs[n-1].Content)

	for _, m := range a.Memory().Messages() {
		assert.NotEqual(t, reasoningResearchBridge, m.Content)
		assert.NotEqual(t, reasoningAnswerBridge, m.Content)
		assert.NotContains(t, m.Content, "reasoning_steps")
	}
}

func TestReasoning_MalformedResponseAborts(t *testing.T) {
	reasoner := stepsModel("I refuse to use JSON")
	main := replyModel("final")
	a := reasoningAgentUnderTest(main, reasoner, 5)

	run, err := a.Run(context.Background(), "solve it")
	require.NoError(t, err)
	assert.Equal(t, 1, reasoner.Calls())
	assert.Equal(t, "final", run.Content)
	assert.Empty(t, run.ExtraData.ReasoningSteps)

	msgs := main.Requests()[0].Messages
	n := len(msgs)
	assert.Equal(t, reasoningResearchBridge, msgs[n-2].Content)
	assert.Equal(t, reasoningAnswerBridge, msgs[n-1].Content)
}

func TestReasoning_ModelErrorAborts(t *testing.T) {
	reasoner := model.NewMockModel("empty")
	main := replyModel("final")
	a := reasoningAgentUnderTest(main, reasoner, 5)

	run, err := a.Run(context.Background(), "solve it")
	require.NoError(t, err)
	assert.Equal(t, "final", run.Content)
	assert.Equal(t, 1, reasoner.Calls())
}

func TestReasoning_ChildSeesParentTranscript(t *testing.T) {
	reasoner := stepsModel(`{"reasoning_steps":[{"title":"a","next_action":"continue"}]}`)
	a := reasoningAgentUnderTest(replyModel("final"), reasoner, 2)

	_, err := a.Run(context.Background(), "solve it")
	require.NoError(t, err)

	reqs := reasoner.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "solve it", model.LastUserMessage(reqs[0].Messages))
	assert.Contains(t, reqs[0].Messages[0].Content, "step-by-step")
	assert.Greater(t, len(reqs[1].Messages), len(reqs[0].Messages))
}
