package agentcore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/runner"
)

func TestInvokeSync(t *testing.T) {
	ac := New()
	ac.RegisterAgent(agent.New("echo", model.NewEchoModel()))

	events, err := ac.InvokeSync(context.Background(), "s1", "echo", "hello")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, core.EventRunStarted, events[0].Type)
	last := events[len(events)-1]
	assert.Equal(t, core.EventRunCompleted, last.Type)
	assert.Equal(t, "ECHO: hello", last.Content)
	assert.Equal(t, "s1", last.SessionID)
	assert.NotNil(t, ac.Runner().Session("echo", "s1"))
}

func TestInvokeSync_ModelError(t *testing.T) {
	ac := New()
	ac.RegisterAgent(agent.New("broken", model.NewMockModel("m", model.MockResponse{Err: errors.New("boom")})))

	events, err := ac.InvokeSync(context.Background(), "s1", "broken", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NotEmpty(t, events)
}

func TestInvoke_UnknownAgent(t *testing.T) {
	events, errs := New().Invoke(context.Background(), "s", "nobody", "hi")
	for range events {
		t.Fatal("unexpected event")
	}
	assert.ErrorIs(t, <-errs, runner.ErrUnknownAgent)
}
