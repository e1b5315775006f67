// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (engine, façade) from depending on concrete storage.
//
// Two backends ship today: InMemoryStore for tests and ephemeral demos, and
// GormStore for durable SQLite persistence. Additional backends (Postgres,
// MySQL) only need the wiring layer to instantiate them.
//
// The package also provides FlightLock, the per-session single-flight guard
// the engine holds while mutating a session's history.
package session
