// Package core provides the foundational domain types and interfaces used by
// AnswerMesh. It defines the core abstractions for:
//
//   - Sessions (conversational containers with a category and history)
//   - Messages (immutable conversational records with dual author identity)
//   - Completion records (per-model-call observability rows)
//   - Pluggable stores and clients (session persistence, web search)
//   - The error taxonomy shared by every provider boundary
//   - Retry and call-budget primitives for provider calls
//
// The package intentionally keeps implementation concerns (persistence, the
// orchestration engine, concrete search/model adapters) out of scope, exposing
// small interfaces to enable custom backends and extensions.
package core
