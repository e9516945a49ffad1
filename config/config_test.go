package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/model/anthropic"
	"github.com/hupe1980/agentcore/model/openai"
	"github.com/hupe1980/agentcore/storage"
	"github.com/hupe1980/agentcore/storage/sqlstore"
)

const sample = `
logging:
  level: debug
  format: json
model:
  provider: echo
storage:
  driver: memory
agent:
  name: lead
  description: Team lead
  instructions:
    - Be brief
  add_history_to_messages: true
  team:
    - name: Researcher
      role: Finds facts
    - name: Writer
      model:
        provider: echo
memory:
  create_session_summary: true
telemetry:
  metrics: true
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "lead", cfg.Agent.Name)
	assert.Equal(t, []string{"Be brief"}, cfg.Agent.Instructions)
	assert.True(t, cfg.Agent.AddHistoryToMessages)
	require.Len(t, cfg.Agent.Team, 2)
	assert.Nil(t, cfg.Agent.Team[0].Model)
	require.NotNil(t, cfg.Agent.Team[1].Model)
	// defaults survive a partial document
	assert.Equal(t, 3, cfg.Agent.NumHistoryRuns)
	assert.Equal(t, 10, cfg.Agent.ReasoningMaxSteps)
	assert.Equal(t, "agentcore", cfg.Telemetry.ServiceName)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("AGENTCORE_TEST_DSN", "file:test.db")
	cfg, err := Parse([]byte("storage:\n  driver: sqlite\n  dsn: ${AGENTCORE_TEST_DSN}\n  ttl: 1h\n"))
	require.NoError(t, err)
	assert.Equal(t, "file:test.db", cfg.Storage.DSN)
	assert.Equal(t, time.Hour, cfg.Storage.TTL)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("agent:\n  nmae: typo\n"))
	assert.Error(t, err)
}

func TestParse_RejectsMultipleDocuments(t *testing.T) {
	_, err := Parse([]byte("agent:\n  name: a\n---\nagent:\n  name: b\n"))
	assert.ErrorContains(t, err, "single document")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"provider", func(c *Config) { c.Model.Provider = "acme" }, "model.provider"},
		{"temperature", func(c *Config) { c.Model.Temperature = 3 }, "model.temperature"},
		{"driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.dsn"},
		{"name", func(c *Config) { c.Agent.Name = " " }, "agent.name"},
		{"steps", func(c *Config) { c.Agent.ReasoningMaxSteps = 0 }, "reasoning_min_steps"},
		{"member", func(c *Config) { c.Agent.Team = []MemberConfig{{Name: "a"}, {Name: "a"}} }, "duplicate member"},
		{"member model", func(c *Config) {
			c.Agent.Team = []MemberConfig{{Name: "a", Model: &ModelConfig{Provider: "nope"}}}
		}, "agent.team[0].model.provider"},
		{"sampling", func(c *Config) { c.Telemetry.SamplingRate = 2 }, "telemetry.sampling_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENTCORE_TEST_NAME=from-dotenv\n"), 0o600))
	path := filepath.Join(dir, "agentcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  name: ${AGENTCORE_TEST_NAME}\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AGENTCORE_TEST_NAME") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Agent.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}

func TestJSONSchema(t *testing.T) {
	raw, err := JSONSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	defs, ok := doc["$defs"].(map[string]any)
	require.True(t, ok)
	cfg, ok := defs["Config"].(map[string]any)
	require.True(t, ok)
	props := cfg["properties"].(map[string]any)
	for _, key := range []string{"logging", "model", "storage", "agent", "memory", "telemetry"} {
		assert.Contains(t, props, key)
	}
	agent := defs["AgentConfig"].(map[string]any)["properties"].(map[string]any)
	assert.Contains(t, agent, "add_history_to_messages")
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(ModelConfig{Provider: "echo"})
	require.NoError(t, err)
	assert.IsType(t, &model.EchoModel{}, m)

	m, err = NewModel(ModelConfig{Provider: "openai", Name: "gpt-4o", APIKey: "test"})
	require.NoError(t, err)
	assert.IsType(t, &openai.Model{}, m)
	assert.Equal(t, "gpt-4o", m.Info().Name)

	m, err = NewModel(ModelConfig{Provider: "anthropic", Name: "claude-test", APIKey: "test"})
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Model{}, m)
	assert.Equal(t, "claude-test", m.Info().Name)

	_, err = NewModel(ModelConfig{Provider: "acme"})
	assert.Error(t, err)
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	cfg := Default()
	st, closeFn, err := cfg.OpenStorage(ctx)
	require.NoError(t, err)
	assert.IsType(t, &storage.InMemory{}, st)
	assert.NoError(t, closeFn())

	cfg.Storage = StorageConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "sessions.db")}
	st, closeFn, err = cfg.OpenStorage(ctx)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &sqlstore.Store{}, st)
}

func TestNewAgent(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	a, err := cfg.NewAgent(Deps{
		Storage: storage.NewInMemory(),
		Metrics: cfg.Metrics(reg),
	})
	require.NoError(t, err)

	assert.Equal(t, "lead", a.Name())
	assert.Equal(t, "Team lead", a.Description())
	require.Len(t, a.Team(), 2)
	assert.Equal(t, "Researcher", a.Team()[0].Name())
	assert.Equal(t, "Finds facts", a.Team()[0].Role())
	assert.True(t, a.Memory().Settings().CreateSessionSummary)

	run, err := a.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ECHO: hello", run.Content)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetricsDisabled(t *testing.T) {
	assert.Nil(t, Default().Metrics(prometheus.NewRegistry()))
}
