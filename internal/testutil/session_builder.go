package testutil

import (
	"github.com/hupe1980/answermesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder().Category(core.CategorySearch).Title("t").Build()
type SessionBuilder struct {
	id       string
	category core.Category
	title    string
	creator  core.UserRef
	teamID   *int64
	docID    *string
	inactive bool
	metadata map[string]any
}

// NewSessionBuilder creates a builder defaulting to an active chat session.
// Use chainable methods then call Build.
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{category: core.CategoryChat, metadata: map[string]any{}}
}

// ID overrides the auto-generated session ID (chainable).
func (b *SessionBuilder) ID(id string) *SessionBuilder { b.id = id; return b }

// Category sets the session category (chainable).
func (b *SessionBuilder) Category(c core.Category) *SessionBuilder { b.category = c; return b }

// Title sets the session title (chainable).
func (b *SessionBuilder) Title(t string) *SessionBuilder { b.title = t; return b }

// CreatedBy sets the creator identity (chainable).
func (b *SessionBuilder) CreatedBy(u core.UserRef) *SessionBuilder { b.creator = u; return b }

// Team sets the owning team (chainable).
func (b *SessionBuilder) Team(id int64) *SessionBuilder { b.teamID = &id; return b }

// Doc binds the session to a document (chainable).
func (b *SessionBuilder) Doc(id string) *SessionBuilder { b.docID = &id; return b }

// Inactive marks the session as deactivated (chainable).
func (b *SessionBuilder) Inactive() *SessionBuilder { b.inactive = true; return b }

// Meta sets a metadata key/value pair (chainable).
func (b *SessionBuilder) Meta(key string, val any) *SessionBuilder {
	b.metadata[key] = val
	return b
}

// Build returns the assembled *core.Session.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.category, b.title, b.creator)
	if b.id != "" {
		s.ID = b.id
	}
	s.TeamID = b.teamID
	s.DocID = b.docID
	s.Active = !b.inactive
	for k, v := range b.metadata {
		s.Metadata[k] = v
	}
	return s
}
