// Package runner serves registered agents across many concurrent sessions.
//
// A Runner holds agents as templates. The first run of a session forks the
// template with that session id (see agent.Agent.Fork), and later runs of the
// same session reuse the fork so in-memory state carries over even without
// storage. Team members and reasoning agents are forked with the leader, so
// concurrent sessions never delegate to the same member instance.
//
// # Responsibilities
//   - Agent registration and lookup by name
//   - Per-session instances with serialized runs
//   - A global concurrency limit (golang.org/x/sync/semaphore)
//   - Cancellation of the in-flight run of a session
package runner
