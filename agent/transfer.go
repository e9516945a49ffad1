package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/tool"
)

type transferArgs struct {
	TaskDescription       string `json:"task_description" jsonschema:"description=A clear and concise description of the task the agent should achieve."`
	ExpectedOutput        string `json:"expected_output" jsonschema:"description=The expected output from the agent."`
	AdditionalInformation string `json:"additional_information,omitempty" jsonschema:"description=Additional information that will help the agent complete the task."`
}

// TransferFunctionName returns the name of the function that delegates a
// task to member.
func TransferFunctionName(member *Agent) string {
	return "transfer_task_to_" + snakeName(member.Name())
}

func snakeName(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// transferTool delegates a task to member and returns its answer followed by
// the team response separator.
func (x *execution) transferTool(member *Agent) *tool.FunctionTool {
	leader := x.a
	desc := fmt.Sprintf("Use this function to transfer a task to %s. "+
		"You must provide a clear and concise description of the task the agent should achieve AND the expected output.", member.Name())

	return tool.MustFunc(TransferFunctionName(member), desc, func(tc *tool.Context, args transferArgs) (any, error) {
		member.ensureSessionID()
		member.updateSessionData(map[string]any{
			"leader_session_id": tc.SessionID,
			"leader_agent_id":   tc.AgentID,
			"leader_run_id":     tc.RunID,
		})
		leader.addMember(member)

		task := memberTask(args)
		tc.Logger().Info("agent.transfer.start", "member", member.Name(), "stream", tc.Stream)

		var (
			content string
			err     error
		)
		if tc.Stream {
			content, err = streamMember(tc, member, task)
		} else {
			var run *core.RunResponse
			run, err = member.Run(tc, task)
			content = contentString(run)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", member.Name(), err)
		}
		return content + leader.opts.TeamResponseSeparator, nil
	})
}

func memberTask(args transferArgs) string {
	task := args.TaskDescription
	if args.ExpectedOutput != "" {
		task += "\n\nThe expected output is: " + args.ExpectedOutput
	}
	if args.AdditionalInformation != "" {
		task += "\n\nAdditional information: " + args.AdditionalInformation
	}
	return task
}

// streamMember runs member in streaming mode and concatenates its deltas.
func streamMember(tc *tool.Context, member *Agent, task string) (string, error) {
	events, errs := member.RunStream(tc, task)

	var (
		b       strings.Builder
		final   any
		failure string
	)
	for ev := range events {
		switch {
		case ev.Type == core.EventRunResponse && ev.IsError():
			failure = ev.Text()
		case ev.Type == core.EventRunResponse:
			b.WriteString(ev.Text())
		case ev.Type == core.EventRunCompleted:
			final = ev.Content
		}
	}
	if err := <-errs; err != nil {
		return "", err
	}
	if failure != "" {
		return "", errors.New(failure)
	}
	if _, isText := final.(string); final != nil && !isText {
		return stringify(final), nil
	}
	return b.String(), nil
}

func contentString(run *core.RunResponse) string {
	if run == nil {
		return ""
	}
	return stringify(run.Content)
}

func stringify(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// addMember records member in the session data, once per agent id.
func (a *Agent) addMember(member *Agent) {
	info := map[string]any{
		"agent_id":   member.AgentID(),
		"session_id": member.SessionID(),
		"name":       member.Name(),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessionData == nil {
		a.sessionData = map[string]any{}
	}
	members, _ := a.sessionData["members"].([]any)
	for _, m := range members {
		if mm, ok := m.(map[string]any); ok && mm["agent_id"] == info["agent_id"] {
			return
		}
	}
	a.sessionData["members"] = append(members, info)
}

// transferPrompt lists the team members for the leader's system message.
func (a *Agent) transferPrompt() string {
	var b strings.Builder
	b.WriteString("## Agents in your team:\nYou can transfer tasks to the following agents:")
	for i, m := range a.opts.Team {
		fmt.Fprintf(&b, "\nAgent %d:\nName: %s\n", i+1, m.Name())
		if m.Role() != "" {
			fmt.Fprintf(&b, "Role: %s\n", m.Role())
		}
		if m.Description() != "" {
			fmt.Fprintf(&b, "Description: %s\n", m.Description())
		}
		if names := m.toolNames(); len(names) > 0 {
			fmt.Fprintf(&b, "Available tools: %s\n", strings.Join(names, ", "))
		}
	}
	return b.String()
}
