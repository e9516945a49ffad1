package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *Context {
	return NewContext(context.Background(), "fc1", logging.NoOpLogger{})
}

func sumTool() *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
	return NewFunctionTool("sum", "Add numbers", params, func(_ *Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	result, err := sumTool().Call(testContext(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := sumTool().Call(testContext(), map[string]any{"a": 1.0})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	execTool := NewFunctionTool("fail", "Fails", nil, func(_ *Context, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := execTool.Call(testContext(), map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("custom", "nope", "E_CUSTOM")
	execTool := NewFunctionTool("custom", "Custom", nil, func(_ *Context, _ map[string]any) (any, error) {
		return nil, custom
	})
	_, err := execTool.Call(testContext(), nil)
	assert.Same(t, custom, err)
}

type weatherArgs struct {
	City string `json:"city" jsonschema:"description=City name"`
	Days int    `json:"days,omitempty"`
}

func TestNewFunc_ReflectsAndDecodes(t *testing.T) {
	weather, err := NewFunc("get_weather", "Weather", func(_ *Context, args weatherArgs) (any, error) {
		return map[string]any{"city": args.City, "days": args.Days}, nil
	})
	require.NoError(t, err)

	props, ok := weather.Parameters()["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "city")
	assert.Contains(t, props, "days")
	assert.ElementsMatch(t, []any{"city"}, weather.Parameters()["required"])

	out, err := weather.Call(testContext(), map[string]any{"city": "Berlin", "days": 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"city": "Berlin", "days": 2}, out)

	_, err = weather.Call(testContext(), map[string]any{})
	require.Error(t, err)
	assert.Equal(t, CodeValidation, err.(*ToolError).Code)
}

// -------------------- Registry Tests --------------------

func TestRegistry_OrderAndDuplicates(t *testing.T) {
	echo := NewFunctionTool("echo", "first", nil, func(_ *Context, _ map[string]any) (any, error) { return "1", nil })
	echo2 := NewFunctionTool("echo", "second", nil, func(_ *Context, _ map[string]any) (any, error) { return "2", nil })

	kit := NewToolkit("math", sumTool())
	desc := Descriptor{Name: "ping", Description: "Ping", Entrypoint: func(_ *Context, _ map[string]any) (any, error) {
		return "pong", nil
	}}

	r := NewRegistry(nil, echo, kit, desc, echo2)
	assert.Equal(t, []string{"echo", "sum", "ping"}, r.Names())
	assert.Equal(t, 3, r.Len())

	got, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "second", got.Description())

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "function", defs[1].Type)
	assert.Equal(t, "sum", defs[1].Function.Name)
}

// -------------------- Executor Tests --------------------

func TestExecutor_UnknownTool(t *testing.T) {
	exec := NewExecutor(NewRegistry(nil))
	res := exec.Execute(testContext(), model.NewToolCall("c1", "missing", "{}"))

	assert.Equal(t, core.RoleTool, res.Message.Role)
	assert.True(t, res.Message.ToolCallError)
	assert.NotEmpty(t, res.Message.Content)
	assert.Equal(t, "c1", res.Message.ToolCallID)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeNotFound, res.Err.Code)
	assert.Equal(t, res.Message.Content, res.Call.Error)
}

func TestExecutor_Success(t *testing.T) {
	exec := NewExecutor(NewRegistry(nil, sumTool()))
	res := exec.Execute(testContext(), model.NewToolCall("c2", "sum", `{"a":1,"b":2}`))

	assert.Nil(t, res.Err)
	assert.False(t, res.Message.ToolCallError)
	assert.Equal(t, "3", res.Message.Content)
	assert.Equal(t, "3", res.Call.Result)
	assert.Equal(t, "sum", res.Message.ToolName)
}

func TestExecutor_BadArguments(t *testing.T) {
	exec := NewExecutor(NewRegistry(nil, sumTool()))

	res := exec.Execute(testContext(), model.NewToolCall("c3", "sum", `{not json`))
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeArgument, res.Err.Code)

	res = exec.Execute(testContext(), model.NewToolCall("c4", "sum", `{"a":"x","b":2}`))
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeValidation, res.Err.Code)
}

type panicTool struct{}

func (panicTool) Name() string               { return "explode" }
func (panicTool) Description() string        { return "Panics" }
func (panicTool) Parameters() map[string]any { return nil }
func (panicTool) Call(_ *Context, _ map[string]any) (any, error) {
	panic("kaboom")
}

func TestExecutor_RecoversPanic(t *testing.T) {
	exec := NewExecutor(NewRegistry(nil, Of(panicTool{})))
	res := exec.Execute(nil, model.NewToolCall("c5", "explode", ""))

	require.NotNil(t, res.Err)
	assert.Equal(t, CodePanic, res.Err.Code)
	assert.Contains(t, res.Message.Content, "kaboom")
	assert.True(t, res.Message.ToolCallError)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "x", Stringify("x"))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]int{"a": 1}))
	assert.Equal(t, "2.5", Stringify(2.5))
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
	assert.Equal(t, "tool error in demo: x", (&ToolError{Tool: "demo", Message: "x"}).Error())
}

func TestNewFunc_UnnamedArgs(t *testing.T) {
	ping, err := NewFunc("ping", "No arguments", func(_ *Context, _ struct{}) (any, error) {
		return "pong", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "object", ping.Parameters()["type"])

	out, err := ping.Call(testContext(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	add := MustFunc("add", "Add two numbers", func(_ *Context, args struct {
		A int `json:"a"`
		B int `json:"b"`
	}) (any, error) {
		return args.A + args.B, nil
	})
	assert.ElementsMatch(t, []any{"a", "b"}, add.Parameters()["required"])
	out, err = add.Call(testContext(), map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, 5, out)
}
