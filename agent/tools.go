package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/knowledge"
	"github.com/hupe1980/agentcore/observability"
	"github.com/hupe1980/agentcore/tool"
)

// buildRegistry collects the user tools and the built-in tools enabled for
// this run. A later registration of a name replaces the earlier one.
func (x *execution) buildRegistry() *tool.Registry {
	a := x.a
	reg := tool.NewRegistry(x.logger, a.opts.Tools...)

	if a.opts.ReadChatHistory {
		reg.Register(x.chatHistoryTool())
	}
	if a.opts.ReadToolCallHistory {
		reg.Register(x.toolCallHistoryTool())
	}
	if s := a.Memory().Settings(); s.CreateUserMemories && !s.UpdateUserMemoriesAfterRun {
		reg.Register(x.updateMemoryTool())
	}
	if (a.opts.Knowledge != nil || a.opts.Retriever != nil) && a.opts.SearchKnowledge {
		reg.Register(x.searchKnowledgeTool())
	}
	if w, ok := a.opts.Knowledge.(knowledge.Writer); ok && a.opts.UpdateKnowledge {
		reg.Register(addKnowledgeTool(w))
	}
	for _, member := range a.opts.Team {
		reg.Register(x.transferTool(member))
	}
	return reg
}

// resolveTool executes the next pending tool call.
func (x *execution) resolveTool() (State, error) {
	if len(x.pending) == 0 {
		return StateMemoryUpdate, nil
	}
	call := x.pending[0]
	x.pending = x.pending[1:]
	x.toolCalls++

	res := x.executeTool(call)
	x.run.Tools = append(x.run.Tools, res.Call)
	x.messages = append(x.messages, res.Message)
	x.produced = append(x.produced, res.Message)

	if len(x.pending) > 0 {
		return StateToolResolution, nil
	}
	return StateMemoryUpdate, nil
}

func (x *execution) executeTool(call core.ToolCall) tool.Result {
	a := x.a
	name := call.Function.Name

	started := core.NewEvent(core.EventToolCallStarted, x.run, name)
	started.Tools = []core.ToolCall{call}
	x.emit(started)

	var res tool.Result
	if limit := a.opts.ToolCallLimit; limit > 0 && x.toolCalls > limit {
		res = errorResult(call, tool.NewToolError(name, fmt.Sprintf("tool call limit of %d reached", limit), tool.CodeLimitExceeded))
	} else if err := a.hooks.execute(x.ctx, &HookContext{Type: HookBeforeTool, AgentName: a.Name(), Run: x.run, ToolCall: &call}); err != nil {
		res = errorResult(call, tool.NewToolError(name, err.Error(), tool.CodeExecution))
	} else {
		ctx, span := x.tracer.Start(x.ctx, "agent.tool", trace.WithAttributes(
			attribute.String("tool.name", name),
			attribute.String("tool.call_id", call.ID),
		))
		tc := tool.NewContext(ctx, call.ID, x.logger)
		tc.RunID = x.run.RunID
		tc.SessionID = x.run.SessionID
		tc.AgentID = x.run.AgentID
		tc.AgentName = a.Name()
		tc.Stream = x.stream

		res = x.executor.Execute(tc, call)
		var spanErr error
		if res.Err != nil {
			spanErr = res.Err
		}
		observability.EndSpan(span, spanErr)
	}

	a.opts.Metrics.RecordToolCall(name, time.Duration(res.Call.Duration*float64(time.Second)), res.Err != nil)
	if res.Err != nil {
		x.logger.Warn("tool.call.failed", "tool", name, "code", res.Err.Code, "error", res.Err.Message)
	}
	if err := a.hooks.execute(x.ctx, &HookContext{Type: HookAfterTool, AgentName: a.Name(), Run: x.run, ToolCall: &res.Call, Result: &res}); err != nil {
		x.logger.Warn("agent.hook.failed", "hook", string(HookAfterTool), "error", err)
	}

	completed := core.NewEvent(core.EventToolCallCompleted, x.run, res.Message.Content)
	completed.Tools = []core.ToolCall{res.Call}
	x.emit(completed)
	return res
}

// errorResult is the result of a call that was not executed.
func errorResult(call core.ToolCall, err *tool.ToolError) tool.Result {
	msg := core.NewMessage(core.RoleTool, err.Error())
	msg.ToolCallID = call.ID
	msg.ToolName = call.Function.Name
	msg.ToolArgs = call.Function.Arguments
	msg.ToolCallError = true

	out := tool.Result{Message: msg, Call: call, Err: err}
	out.Call.Error = err.Error()
	return out
}

// runningNotice renders the "Running:" content line listing tool calls.
func runningNotice(calls []core.ToolCall) string {
	var b strings.Builder
	b.WriteString("\nRunning:")
	for _, c := range calls {
		b.WriteString("\n - ")
		b.WriteString(formatCall(c))
	}
	b.WriteString("\n\n")
	return b.String()
}

func formatCall(c core.ToolCall) string {
	args := map[string]any{}
	if c.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(c.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("%s(%s)", c.Function.Name, c.Function.Arguments)
		}
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return fmt.Sprintf("%s(%s)", c.Function.Name, strings.Join(parts, ", "))
}

type chatHistoryArgs struct {
	NumChats int `json:"num_chats,omitempty" jsonschema:"description=Number of previous runs to return. Defaults to 3."`
}

func (x *execution) chatHistoryTool() *tool.FunctionTool {
	return tool.MustFunc("get_chat_history",
		"Use this function to get the chat history between the user and agent. Returns a list of messages, oldest first.",
		func(_ *tool.Context, args chatHistoryArgs) (any, error) {
			n := args.NumChats
			if n <= 0 {
				n = 3
			}
			msgs := x.a.Memory().GetMessagesFromLastNRuns(n, x.a.opts.SystemMessageRole)
			history := make([]map[string]any, 0, len(msgs))
			for _, m := range msgs {
				history = append(history, map[string]any{"role": m.Role, "content": m.Text()})
			}
			return history, nil
		})
}

type toolCallHistoryArgs struct {
	NumCalls int `json:"num_calls,omitempty" jsonschema:"description=Number of tool calls to return. Defaults to 3."`
}

func (x *execution) toolCallHistoryTool() *tool.FunctionTool {
	return tool.MustFunc("get_tool_call_history",
		"Use this function to get the tool call history, most recent first.",
		func(_ *tool.Context, args toolCallHistoryArgs) (any, error) {
			n := args.NumCalls
			if n <= 0 {
				n = 3
			}
			return x.a.Memory().ToolCalls(n), nil
		})
}

type updateMemoryArgs struct {
	Task string `json:"task" jsonschema:"description=Detailed description of what to remember about the user."`
}

func (x *execution) updateMemoryTool() *tool.FunctionTool {
	return tool.MustFunc("update_memory",
		"Use this function to update the Agent's memory about the user. Describe the task in detail.",
		func(tc *tool.Context, args updateMemoryArgs) (any, error) {
			return x.a.Memory().UpdateMemory(tc, args.Task)
		})
}

type searchKnowledgeArgs struct {
	Query string `json:"query" jsonschema:"description=The query to search for."`
}

func (x *execution) searchKnowledgeTool() *tool.FunctionTool {
	return tool.MustFunc("search_knowledge_base",
		"Use this function to search the knowledge base for information about a query.",
		func(tc *tool.Context, args searchKnowledgeArgs) (any, error) {
			docs, err := x.searchKnowledge(tc, args.Query, x.a.opts.NumReferences)
			if err != nil {
				return nil, err
			}
			if len(docs) == 0 {
				return "No documents found", nil
			}
			return docs, nil
		})
}

type addKnowledgeArgs struct {
	Query  string `json:"query" jsonschema:"description=The query that produced the result."`
	Result string `json:"result" jsonschema:"description=The result to store."`
}

func addKnowledgeTool(w knowledge.Writer) *tool.FunctionTool {
	return tool.MustFunc("add_to_knowledge",
		"Use this function to add information to the knowledge base for future use.",
		func(tc *tool.Context, args addKnowledgeArgs) (any, error) {
			if err := w.Add(tc, core.Document{Name: args.Query, Content: args.Result}); err != nil {
				return nil, err
			}
			return "Successfully added to knowledge base", nil
		})
}
