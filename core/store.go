package core

import "context"

// SessionFilter narrows a session listing. Nil fields match everything.
type SessionFilter struct {
	TeamID          *int64
	CreatedByUserID *int64
	DocID           *string
	Category        *Category
	ActiveOnly      bool
}

// Page is a one-based page request. Zero values fall back to page 1 with 20
// entries.
type Page struct {
	Page     int
	PageSize int
}

// Normalize returns the request with defaults applied.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	return p
}

// Offset returns the row offset for the normalized request.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Pagination describes the page actually returned.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// SessionStore persists sessions, their append-only message history, shares
// and completion records.
//
// Contract:
//   - Message history is append-only; AnnotateMessage is the single allowed
//     mutation and only transitions AnnotationNone to a terminal annotation
//   - AppendMessage assigns and returns the message ID; append order is the
//     session's conversational order
//   - Messages returns the most recent limit messages in chronological
//     order; limit <= 0 means all
//   - Lookups of unknown IDs return ErrSessionNotFound, ErrMessageNotFound
//     or ErrSharedMessageNotFound
//   - Implementations return copies; callers may mutate results freely.
type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, f SessionFilter, p Page) ([]*Session, Pagination, error)
	AppendMessage(ctx context.Context, m *Message) (int64, error)
	Messages(ctx context.Context, sessionID string, limit int) ([]*Message, error)
	AnnotateMessage(ctx context.Context, id int64, a Annotation) error
	UpdateSessionTimestamp(ctx context.Context, id string) error
	RecordCompletion(ctx context.Context, r *CompletionRecord) error
	ShareMessage(ctx context.Context, messageID int64, by UserRef) (*SharedMessage, error)
	GetSharedMessage(ctx context.Context, id int64) (*SharedMessage, error)
	RevokeSharedMessage(ctx context.Context, id int64) error
}

// TurnFinalizer is an optional store capability: commit a finished turn as
// one atomic unit. The user message, the assistant message with its terminal
// annotation, every completion record and the session timestamp bump land
// together or not at all. Stores that implement it are preferred by the
// engine over the stepwise SessionStore writes.
//
// The records are linked to the assistant message; its assigned ID is
// returned. Annotation may be AnnotationNone.
type TurnFinalizer interface {
	FinalizeTurn(ctx context.Context, user, assistant *Message, annotation Annotation, records []*CompletionRecord) (int64, error)
}
