package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := buildRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.yaml")
	body := "logging:\n  level: error\nstorage:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "sessions.db") + "\nagent:\n  name: cli\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun_Echo(t *testing.T) {
	cfg := writeConfig(t)
	out, errOut, err := execute(t, "", "run", "--config", cfg, "--session", "s1", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "ECHO: hello world\n", out)
	assert.Contains(t, errOut, "session: s1")
}

func TestRun_StreamFromStdin(t *testing.T) {
	cfg := writeConfig(t)
	out, errOut, err := execute(t, "hello\n", "run", "--config", cfg, "--stream", "--show-events")
	require.NoError(t, err)
	assert.Equal(t, "ECHO: hello\n", out)
	assert.Contains(t, errOut, "[RunStarted] Run started")
	assert.Contains(t, errOut, "[RunCompleted]")
}

func TestRun_NoInput(t *testing.T) {
	_, _, err := execute(t, "", "run", "--config", writeConfig(t))
	assert.ErrorContains(t, err, "no input")
}

func TestSessions(t *testing.T) {
	cfg := writeConfig(t)
	_, _, err := execute(t, "", "run", "--config", cfg, "--session", "abc", "--user", "u1", "hi")
	require.NoError(t, err)

	out, _, err := execute(t, "", "sessions", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "u1")

	out, _, err = execute(t, "", "sessions", "show", "abc", "--config", cfg)
	require.NoError(t, err)
	var sess map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &sess))
	assert.Equal(t, "abc", sess["session_id"])

	out, _, err = execute(t, "", "sessions", "delete", "abc", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "deleted abc\n", out)

	_, _, err = execute(t, "", "sessions", "show", "abc", "--config", cfg)
	assert.ErrorContains(t, err, "not found")
}

func TestConfigCommands(t *testing.T) {
	out, _, err := execute(t, "", "config", "schema")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	cfg := writeConfig(t)
	out, _, err = execute(t, "", "config", "validate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "agentcore dev (commit: none, built: unknown)\n", out)
}
