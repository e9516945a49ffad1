// Package config loads the YAML configuration of an agentcore deployment and
// builds the components it describes (logger, model, storage, telemetry and
// the agent itself).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentcore/logging"
)

// Config is the main configuration structure.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Model     ModelConfig     `yaml:"model"`
	Storage   StorageConfig   `yaml:"storage"`
	Agent     AgentConfig     `yaml:"agent"`
	Memory    MemoryConfig    `yaml:"memory"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LoggingConfig struct {
	Level     string `yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format    string `yaml:"format" jsonschema:"enum=json,enum=text"`
	AddSource bool   `yaml:"add_source"`
}

type ModelConfig struct {
	Provider    string  `yaml:"provider" jsonschema:"enum=openai,enum=anthropic,enum=echo"`
	Name        string  `yaml:"name,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" jsonschema:"enum=memory,enum=sqlite,enum=postgres,enum=redis"`
	// DSN is the database DSN, or the redis:// URL for the redis driver.
	DSN    string        `yaml:"dsn,omitempty"`
	Table  string        `yaml:"table,omitempty"`
	Prefix string        `yaml:"prefix,omitempty"`
	TTL    time.Duration `yaml:"ttl,omitempty"`
}

type AgentConfig struct {
	Name                      string         `yaml:"name"`
	Description               string         `yaml:"description,omitempty"`
	Role                      string         `yaml:"role,omitempty"`
	Task                      string         `yaml:"task,omitempty"`
	Instructions              []string       `yaml:"instructions,omitempty"`
	ExpectedOutput            string         `yaml:"expected_output,omitempty"`
	Markdown                  bool           `yaml:"markdown"`
	AddDatetimeToInstructions bool           `yaml:"add_datetime_to_instructions"`
	AddHistoryToMessages      bool           `yaml:"add_history_to_messages"`
	NumHistoryRuns            int            `yaml:"num_history_runs"`
	ReadChatHistory           bool           `yaml:"read_chat_history"`
	ReadToolCallHistory       bool           `yaml:"read_tool_call_history"`
	ShowToolCalls             bool           `yaml:"show_tool_calls"`
	ToolCallLimit             int            `yaml:"tool_call_limit,omitempty"`
	Reasoning                 bool           `yaml:"reasoning"`
	ReasoningMinSteps         int            `yaml:"reasoning_min_steps"`
	ReasoningMaxSteps         int            `yaml:"reasoning_max_steps"`
	Team                      []MemberConfig `yaml:"team,omitempty"`
}

// MemberConfig describes a team member. A member without a model uses the
// leader's model.
type MemberConfig struct {
	Name         string       `yaml:"name"`
	Description  string       `yaml:"description,omitempty"`
	Role         string       `yaml:"role,omitempty"`
	Instructions []string     `yaml:"instructions,omitempty"`
	Markdown     bool         `yaml:"markdown"`
	Model        *ModelConfig `yaml:"model,omitempty"`
}

type MemoryConfig struct {
	CreateUserMemories           bool `yaml:"create_user_memories"`
	UpdateUserMemoriesAfterRun   bool `yaml:"update_user_memories_after_run"`
	CreateSessionSummary         bool `yaml:"create_session_summary"`
	UpdateSessionSummaryAfterRun bool `yaml:"update_session_summary_after_run"`
}

type TelemetryConfig struct {
	Metrics      bool    `yaml:"metrics"`
	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty"`
	Insecure     bool    `yaml:"insecure"`
	ServiceName  string  `yaml:"service_name,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`
}

// Default returns the baseline configuration: an echo model with in-memory
// storage.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Model:   ModelConfig{Provider: "echo", Temperature: 0.7, MaxTokens: 4096},
		Storage: StorageConfig{Driver: "memory"},
		Agent: AgentConfig{
			Name:              "assistant",
			NumHistoryRuns:    3,
			ReasoningMinSteps: 1,
			ReasoningMaxSteps: 10,
		},
		Telemetry: TelemetryConfig{ServiceName: "agentcore", SamplingRate: 1.0},
	}
}

// Load reads the configuration at path on top of Default. A .env file next
// to the configuration (or in the working directory) is loaded first, then
// ${VAR} references in the YAML are expanded from the environment.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a single YAML document on top of Default and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads the first existing file. Variables already set in the
// environment are not overridden.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if !oneOf(c.Logging.Format, "json", "text") {
		errs = append(errs, fmt.Errorf("logging.format: must be json or text, got %q", c.Logging.Format))
	}
	if err := c.Model.validate("model"); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres", "redis":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn: required for driver %s", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.Storage.TTL < 0 {
		errs = append(errs, fmt.Errorf("storage.ttl: must not be negative"))
	}

	a := c.Agent
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, fmt.Errorf("agent.name: required"))
	}
	if a.NumHistoryRuns < 0 || a.ToolCallLimit < 0 {
		errs = append(errs, fmt.Errorf("agent: num_history_runs and tool_call_limit must not be negative"))
	}
	if a.ReasoningMinSteps < 1 || a.ReasoningMaxSteps < a.ReasoningMinSteps {
		errs = append(errs, fmt.Errorf("agent: need 1 <= reasoning_min_steps <= reasoning_max_steps, got %d and %d", a.ReasoningMinSteps, a.ReasoningMaxSteps))
	}
	seen := map[string]bool{}
	for i, m := range a.Team {
		if strings.TrimSpace(m.Name) == "" {
			errs = append(errs, fmt.Errorf("agent.team[%d].name: required", i))
			continue
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Errorf("agent.team[%d].name: duplicate member %q", i, m.Name))
		}
		seen[m.Name] = true
		if m.Model != nil {
			if err := m.Model.validate(fmt.Sprintf("agent.team[%d].model", i)); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if r := c.Telemetry.SamplingRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampling_rate: must be within [0, 1], got %v", r))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (m ModelConfig) validate(path string) error {
	if !oneOf(m.Provider, "openai", "anthropic", "echo") {
		return fmt.Errorf("%s.provider: unknown provider %q", path, m.Provider)
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		return fmt.Errorf("%s.temperature: must be within [0, 2], got %v", path, m.Temperature)
	}
	if m.MaxTokens < 0 {
		return fmt.Errorf("%s.max_tokens: must not be negative", path)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
