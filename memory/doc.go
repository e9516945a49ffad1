// Package memory holds an agent's conversational memory: the chat transcript,
// the durable record of completed runs, long-term user memories and the
// session summary.
//
// AgentMemory is the default implementation. Long-term memories and
// summaries are produced by an optional model backed Manager and Summarizer
// and stored in a DB (InMemoryDB here; plug in your own for durability).
// The whole state round trips through core.MemorySnapshot so a storage
// backend can persist it inside a session.
package memory
