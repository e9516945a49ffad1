package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context, map[string]any) (string, error) {
	return m.text, m.err
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())
	assert.True(t, inst.IsSet())

	got, err := inst.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_Template(t *testing.T) {
	inst := NewInstructionFromTemplate("Help {{.user_id}} with {{.session_data.topic}}.")
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background(), map[string]any{
		"user_id":      "ada",
		"session_data": map[string]any{"topic": "compilers"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Help ada with compilers.", got)
}

func TestInstruction_Provider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "dynamic"})
	got, err := inst.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "dynamic", got)

	boom := errors.New("boom")
	_, err = NewInstructionFromProvider(mockProvider{err: boom}).Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestInstruction_Func(t *testing.T) {
	inst := NewInstructionFromFunc(func(_ context.Context, data map[string]any) (string, error) {
		return "name=" + data["name"].(string), nil
	})
	got, err := inst.Resolve(context.Background(), map[string]any{"name": "helper"})
	require.NoError(t, err)
	assert.Equal(t, "name=helper", got)
}

func TestInstruction_Zero(t *testing.T) {
	var inst Instruction
	assert.False(t, inst.IsSet())
}
