// Package engine orchestrates the answer pipeline: context assembly,
// planning, evidence search, streamed drafting, verification and persistence.
//
// The Engine is the central coordination point between the domain contracts
// in core and the concrete providers (model adapters, search clients, session
// stores). Each call to Ask runs one turn through a fixed stage sequence:
//
//	start -> planning -> [searching] -> drafting -> [verifying]
//	      -> [replanning -> planning -> searching -> drafting -> verifying]
//	      -> finalizing -> done | failed
//
// Searching happens when the session category or the plan decision asks for
// it, verifying only when evidence was retrieved; replanning is bounded by
// the configured limit. Events stream stage transitions, answer text deltas,
// warnings and the final persisted answer to the caller in real time.
//
// Concurrency model:
//   - Turns on the same session are single-flight: concurrent Ask calls
//     queue on a per-session lock, or are rejected immediately when
//     configured to
//   - Each turn runs in its own goroutine with cancellation propagation;
//     CancelRun interrupts a specific turn
//   - Model and search calls carry per-call timeouts and transient failures
//     are retried with doubling backoff before the turn degrades or fails
//
// Failure policy:
//   - Transient search exhaustion degrades the turn: the answer is drafted
//     without evidence and marked unverified_degraded
//   - A failed verification call degrades to unverified instead of failing
//   - Provider failures mid-stream persist the partial answer annotated
//     errored; caller cancellation persists it annotated truncated only when
//     configured to
//   - A turn that fails before any answer content persists nothing
package engine
