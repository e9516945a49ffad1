// Package model defines the provider‑agnostic adapter contract for language
// models used by agentcore agents.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//     (Generate), with Invoke and Stream as the blocking and streaming forms
//   - Normalize tool call representation (ToolDefinition, core.ToolCall)
//   - Advertise capabilities (tools, native structured output) through Info
//   - Facilitate deterministic stubs for tests (EchoModel, MockModel)
//
// Providers (openai, anthropic sub packages) implement Model so the agent
// remains decoupled from vendor SDKs.
package model
