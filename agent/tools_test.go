package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/knowledge"
	"github.com/hupe1980/agentcore/memory"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/tool"
)

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func addTool() *tool.FunctionTool {
	return tool.MustFunc("add", "Adds two numbers", func(_ *tool.Context, args addArgs) (any, error) {
		return args.A + args.B, nil
	})
}

func toolMessages(msgs []core.Message) []core.Message {
	var out []core.Message
	for _, m := range msgs {
		if m.Role == core.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func TestRun_UnknownToolYieldsToolError(t *testing.T) {
	m := model.NewMockModel("m", model.MockResponse{
		ToolCalls: []core.ToolCall{model.NewToolCall("c1", "missing_tool", "{}")},
	})
	a := New("tools", m)

	run, err := a.Run(context.Background(), "call it")
	require.NoError(t, err)

	msgs := toolMessages(run.Messages)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].ToolCallError)
	assert.Equal(t, "c1", msgs[0].ToolCallID)
	assert.Contains(t, msgs[0].Content, "not found")

	require.Len(t, run.Tools, 1)
	assert.Contains(t, run.Tools[0].Error, tool.CodeNotFound)
	assert.Equal(t, 1, m.Calls())
}

func TestRun_ToolResultsAndNotice(t *testing.T) {
	m := model.NewMockModel("m", model.MockResponse{
		ToolCalls: []core.ToolCall{model.NewToolCall("c1", "add", `{"a":1,"b":2}`)},
	})
	a := New("tools", m, func(o *Options) {
		o.Tools = append(o.Tools, addTool())
		o.ShowToolCalls = true
	})

	events, errs := a.RunStream(context.Background(), "sum")
	evs := collect(t, events, errs)

	final := evs[len(evs)-1]
	assert.Equal(t, "\nRunning:\n - add(a=1, b=2)\n\n", final.Content)
	require.Len(t, final.Tools, 1)
	assert.Equal(t, "3", final.Tools[0].Result)

	types := eventTypes(evs)
	assert.Contains(t, types, core.EventToolCallStarted)
	assert.Contains(t, types, core.EventToolCallCompleted)

	req := m.Requests()[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "add", req.Tools[0].Function.Name)
}

func TestRun_ToolCallLimit(t *testing.T) {
	m := model.NewMockModel("m", model.MockResponse{
		ToolCalls: []core.ToolCall{
			model.NewToolCall("c1", "add", `{"a":1,"b":2}`),
			model.NewToolCall("c2", "add", `{"a":3,"b":4}`),
		},
	})
	a := New("limited", m, func(o *Options) {
		o.Tools = append(o.Tools, addTool())
		o.ToolCallLimit = 1
	})

	run, err := a.Run(context.Background(), "sum twice")
	require.NoError(t, err)

	msgs := toolMessages(run.Messages)
	require.Len(t, msgs, 2)
	assert.Equal(t, "3", msgs[0].Content)
	assert.True(t, msgs[1].ToolCallError)
	assert.Contains(t, msgs[1].Content, tool.CodeLimitExceeded)
}

func TestRun_BeforeToolHookBlocksCall(t *testing.T) {
	m := model.NewMockModel("m", model.MockResponse{
		ToolCalls: []core.ToolCall{model.NewToolCall("c1", "add", `{"a":1,"b":2}`)},
	})
	a := New("guarded", m, func(o *Options) {
		o.Tools = append(o.Tools, addTool())
		o.Hooks = []Hook{NewFunctionHook(HookBeforeTool, func(context.Context, *HookContext) error {
			return errors.New("blocked")
		})}
	})

	run, err := a.Run(context.Background(), "sum")
	require.NoError(t, err)
	msgs := toolMessages(run.Messages)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].ToolCallError)
	assert.Contains(t, msgs[0].Content, "blocked")
}

func TestRun_FailingToolNeverFailsRun(t *testing.T) {
	failing := tool.MustFunc("fail", "Always fails", func(*tool.Context, struct{}) (any, error) {
		return nil, errors.New("kaput")
	})
	m := model.NewMockModel("m", model.MockResponse{
		ToolCalls: []core.ToolCall{model.NewToolCall("c1", "fail", "{}")},
	})
	a := New("tools", m, func(o *Options) { o.Tools = append(o.Tools, failing) })

	run, err := a.Run(context.Background(), "go")
	require.NoError(t, err)
	msgs := toolMessages(run.Messages)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "kaput")
	assert.Contains(t, msgs[0].Content, tool.CodeExecution)
}

func TestRun_ToolContextCorrelation(t *testing.T) {
	var got *tool.Context
	probe := tool.MustFunc("probe", "Captures the context", func(tc *tool.Context, _ struct{}) (any, error) {
		got = tc
		return "ok", nil
	})
	m := model.NewMockModel("m", model.MockResponse{
		ToolCalls: []core.ToolCall{model.NewToolCall("c9", "probe", "{}")},
	})
	a := New("probe-agent", m, func(o *Options) { o.Tools = append(o.Tools, probe) })

	run, err := a.Run(context.Background(), "go")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, run.SessionID, got.SessionID)
	assert.Equal(t, a.AgentID(), got.AgentID)
	assert.Equal(t, "probe-agent", got.AgentName)
	assert.Equal(t, "c9", got.CallID)
	assert.False(t, got.Stream)
}

func TestBuildRegistry_BuiltinTools(t *testing.T) {
	kb := knowledge.NewInMemory()
	mem := memory.NewAgentMemory(func(o *memory.Options) {
		o.Settings = memory.Settings{CreateUserMemories: true}
	})
	member := New("Helper", model.NewEchoModel())
	a := New("full", model.NewEchoModel(), func(o *Options) {
		o.Tools = append(o.Tools, addTool())
		o.ReadChatHistory = true
		o.ReadToolCallHistory = true
		o.Memory = mem
		o.Knowledge = kb
		o.UpdateKnowledge = true
		o.Team = []*Agent{member}
	})

	x := newExecution(context.Background(), a, "", false, runOptions{})
	x.run = core.NewRunResponse("s", a.AgentID())
	reg := x.buildRegistry()
	assert.Equal(t, []string{
		"add",
		"get_chat_history",
		"get_tool_call_history",
		"update_memory",
		"search_knowledge_base",
		"add_to_knowledge",
		"transfer_task_to_helper",
	}, reg.Names())
}

func TestKnowledgeTools(t *testing.T) {
	kb := knowledge.NewInMemory()
	m := model.NewMockModel("m",
		model.MockResponse{ToolCalls: []core.ToolCall{model.NewToolCall("c1", "add_to_knowledge", `{"query":"capital of france","result":"Paris is the capital of France"}`)}},
		model.MockResponse{ToolCalls: []core.ToolCall{model.NewToolCall("c2", "search_knowledge_base", `{"query":"capital france"}`)}},
	)
	a := New("kb", m, func(o *Options) {
		o.Knowledge = kb
		o.UpdateKnowledge = true
	})
	ctx := context.Background()

	_, err := a.Run(ctx, "remember")
	require.NoError(t, err)
	assert.Equal(t, 1, kb.Len())

	run, err := a.Run(ctx, "search")
	require.NoError(t, err)
	msgs := toolMessages(run.Messages)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "Paris")
	require.Len(t, run.ExtraData.References, 1)
	assert.Equal(t, "capital france", run.ExtraData.References[0].Query)
}

func TestHistoryTools(t *testing.T) {
	m := model.NewMockModel("m",
		model.MockResponse{Content: "first answer", ToolCalls: []core.ToolCall{model.NewToolCall("c1", "add", `{"a":2,"b":2}`)}},
		model.MockResponse{ToolCalls: []core.ToolCall{
			model.NewToolCall("c2", "get_chat_history", `{"num_chats":1}`),
			model.NewToolCall("c3", "get_tool_call_history", "{}"),
		}},
	)
	a := New("history", m, func(o *Options) {
		o.Tools = append(o.Tools, addTool())
		o.ReadChatHistory = true
		o.ReadToolCallHistory = true
	})
	ctx := context.Background()

	_, err := a.Run(ctx, "first question")
	require.NoError(t, err)
	run, err := a.Run(ctx, "what did I ask?")
	require.NoError(t, err)

	msgs := toolMessages(run.Messages)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "first question")
	assert.Contains(t, msgs[0].Content, "first answer")
	assert.Contains(t, msgs[1].Content, `"name":"add"`)
}

func TestFormatCall(t *testing.T) {
	assert.Equal(t, "f()", formatCall(model.NewToolCall("c", "f", "")))
	assert.Equal(t, "f(a=x, b=2)", formatCall(model.NewToolCall("c", "f", `{"b":2,"a":"x"}`)))
	assert.Equal(t, "f(oops)", formatCall(model.NewToolCall("c", "f", "oops")))
}
