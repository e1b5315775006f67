package testutil

import (
	"time"

	"github.com/hupe1980/answermesh/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().Session("s-1").UserText("hi").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id         int64
	sessionID  string
	role       core.Role
	author     core.UserRef
	content    string
	annotation core.Annotation
	verdict    core.Verdict
	created    time.Time
}

// NewMessageBuilder creates a builder defaulting to an assistant message.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{role: core.RoleAssistant}
}

// ID sets the message ID, useful where persistence is bypassed (chainable).
func (b *MessageBuilder) ID(id int64) *MessageBuilder { b.id = id; return b }

// Session sets the owning session ID (chainable).
func (b *MessageBuilder) Session(id string) *MessageBuilder { b.sessionID = id; return b }

// Author sets the author identity (chainable).
func (b *MessageBuilder) Author(u core.UserRef) *MessageBuilder { b.author = u; return b }

// SystemText sets role system with the given content (chainable).
func (b *MessageBuilder) SystemText(t string) *MessageBuilder {
	b.role = core.RoleSystem
	b.content = t
	return b
}

// UserText sets role user with the given content (chainable).
func (b *MessageBuilder) UserText(t string) *MessageBuilder {
	b.role = core.RoleUser
	b.content = t
	return b
}

// AssistantText sets role assistant with the given content (chainable).
func (b *MessageBuilder) AssistantText(t string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.content = t
	return b
}

// Annotation sets the terminal annotation (chainable).
func (b *MessageBuilder) Annotation(a core.Annotation) *MessageBuilder {
	b.annotation = a
	return b
}

// Verdict sets the verification verdict (chainable).
func (b *MessageBuilder) Verdict(v core.Verdict) *MessageBuilder { b.verdict = v; return b }

// Created overrides the creation timestamp (chainable).
func (b *MessageBuilder) Created(t time.Time) *MessageBuilder { b.created = t; return b }

// Build constructs the *core.Message value.
func (b *MessageBuilder) Build() *core.Message {
	created := b.created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &core.Message{
		ID:         b.id,
		SessionID:  b.sessionID,
		Role:       b.role,
		Author:     b.author,
		Content:    b.content,
		Annotation: b.annotation,
		Verdict:    b.verdict,
		Created:    created,
	}
}

// History builds an ordered conversation from alternating user/assistant
// contents, starting with user. Handy for assembler tests.
func History(sessionID string, contents ...string) []*core.Message {
	msgs := make([]*core.Message, 0, len(contents))
	base := time.Now().UTC().Add(-time.Duration(len(contents)) * time.Second)
	for i, c := range contents {
		mb := NewMessageBuilder().Session(sessionID).ID(int64(i + 1)).Created(base.Add(time.Duration(i) * time.Second))
		if i%2 == 0 {
			mb.UserText(c)
		} else {
			mb.AssistantText(c)
		}
		msgs = append(msgs, mb.Build())
	}
	return msgs
}
