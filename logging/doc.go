// Package logging provides a minimal logging interface and adapters for agentcore.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that agents, tools and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(&logging.Config{Level: logging.LevelDebug, Format: "text", Output: os.Stderr})
//	a := agent.New("assistant", m, func(o *agent.Options) { o.Logger = logger })
//
// Loggers are always handed to components at construction time; nothing in
// the module mutates a global logger or its level.
package logging
