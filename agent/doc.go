// Package agent implements the run controller: an Agent turns one input into
// one core.RunResponse by walking a fixed state machine
//
//	INIT → CONTEXT_RESOLUTION → STORAGE_READ → MESSAGE_PREP → REASONING? →
//	MODEL_INVOKE → TOOL_RESOLUTION* → MEMORY_UPDATE → STORAGE_WRITE →
//	FINALIZE → COMPLETE
//
// with ERROR reachable from any stage. Every stage emits its events to a
// bounded channel; Run drains the same sequence RunStream exposes.
//
// Tool calls are resolved once per model turn. The model is not re-invoked
// after tool results; they are appended to the transcript of the same run.
//
// Team members are reached through generated transfer_task_to_<name>
// functions. The reasoning sub-loop runs a child agent producing
// core.ReasoningSteps before the main model call.
package agent
