package core

import "time"

// Role identifies the conversational author of a message. Closed set.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Annotation is the terminal lifecycle mark on a persisted message. A message
// is immutable once stored except for a single transition from
// AnnotationNone to a terminal annotation.
type Annotation string

const (
	AnnotationNone Annotation = ""
	// AnnotationTruncated marks an assistant message cut short by caller
	// cancellation mid-stream.
	AnnotationTruncated Annotation = "truncated"
	// AnnotationErrored marks an assistant message cut short by a provider
	// failure after partial content had already streamed.
	AnnotationErrored Annotation = "errored"
)

// Terminal reports whether a is a terminal annotation.
func (a Annotation) Terminal() bool {
	return a == AnnotationTruncated || a == AnnotationErrored
}

// Message is one immutable conversational record inside a session. Author
// identity carries both the legacy string and the numeric form (see UserRef);
// assistant messages have a zero author.
type Message struct {
	ID         int64      `json:"id"`
	SessionID  string     `json:"session_id"`
	Role       Role       `json:"role"`
	Author     UserRef    `json:"author,omitempty"`
	Content    string     `json:"content"`
	Annotation Annotation `json:"annotation,omitempty"`
	Verdict    Verdict    `json:"verdict,omitempty"`
	Created    time.Time  `json:"created"`
}

// NewUserMessage builds an unpersisted user message.
func NewUserMessage(sessionID string, author UserRef, content string) *Message {
	return &Message{
		SessionID: sessionID,
		Role:      RoleUser,
		Author:    author,
		Content:   content,
		Created:   time.Now().UTC(),
	}
}

// NewAssistantMessage builds an unpersisted assistant message.
func NewAssistantMessage(sessionID, content string) *Message {
	return &Message{
		SessionID: sessionID,
		Role:      RoleAssistant,
		Content:   content,
		Created:   time.Now().UTC(),
	}
}

// PromptMessage is the flat role+text unit handed to completion models after
// context assembly. It carries no identity or persistence concerns.
type PromptMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SharedMessage is the public projection of a message created by an explicit
// share. It is never mutated after creation and disappears only through
// revocation. Its numeric identity column defaults to UnmigratedUserID until
// the owning account is migrated.
type SharedMessage struct {
	ID        int64     `json:"id"`
	MessageID int64     `json:"message_id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	SharedBy  UserRef   `json:"shared_by"`
	Created   time.Time `json:"created"`
}
