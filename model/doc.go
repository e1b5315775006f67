// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with completion models inside AnswerMesh.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Classify provider failures into the shared core error taxonomy
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the engine remains decoupled from vendor SDKs.
package model
