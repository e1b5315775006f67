package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category classifies a session and fixes how the planner treats it. It is a
// closed set: every switch over Category must handle both members, and
// ParseCategory rejects anything else.
type Category string

const (
	// CategoryChat sessions search the web only when the model's plan output
	// asks for it.
	CategoryChat Category = "chat"
	// CategorySearch sessions always search before drafting.
	CategorySearch Category = "search"
)

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	return c == CategoryChat || c == CategorySearch
}

// ParseCategory converts a stored string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown session category %q", s)
	}
	return c, nil
}

// Session is the conversational container. Its Category is immutable after
// creation; everything the planner and orchestrator decide hangs off it.
//
// Contract:
//   - ID is a UUID string assigned at creation
//   - Category never changes once persisted
//   - Metadata is free-form and round-trips through the store as JSON
//   - Stores hand out copies; use Clone before mutating a fetched session.
type Session struct {
	ID        string         `json:"id"`
	TeamID    *int64         `json:"team_id,omitempty"`
	Title     string         `json:"title"`
	Active    bool           `json:"active"`
	CreatedBy UserRef        `json:"created_by"`
	DocID     *string        `json:"doc_id,omitempty"`
	Category  Category       `json:"category"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Created   time.Time      `json:"created"`
	Updated   time.Time      `json:"updated"`
}

// NewSession creates an active session with a fresh UUID and the given
// category, title and creator.
func NewSession(category Category, title string, createdBy UserRef) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        NewID(),
		Title:     title,
		Active:    true,
		CreatedBy: createdBy,
		Category:  category,
		Metadata:  map[string]any{},
		Created:   now,
		Updated:   now,
	}
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	clone := *s
	if s.TeamID != nil {
		v := *s.TeamID
		clone.TeamID = &v
	}
	if s.DocID != nil {
		v := *s.DocID
		clone.DocID = &v
	}
	if s.Metadata != nil {
		clone.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// NewID generates a new unique identifier for sessions, runs and events.
func NewID() string { return uuid.NewString() }
