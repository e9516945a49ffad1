// Package core provides the foundational domain types shared by every other
// agentcore package. It defines:
//
//   - Messages (role based transcript entries with tool calls, media and metrics)
//   - Runs (RunResponse, the exclusively owned result of one execution)
//   - Events (the streaming lifecycle vocabulary)
//   - Reasoning steps produced by the reasoning sub-loop
//   - Sessions (durable conversational state plus the deep merge used on load)
//   - Documents returned by knowledge retrieval
//
// The package holds no behaviour beyond value helpers (cloning, merging,
// parsing) so that agents, memory, storage and model adapters can depend on it
// without cycles.
package core
