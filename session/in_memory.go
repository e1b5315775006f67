package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/answermesh/core"
)

// InMemoryStore is a volatile SessionStore keeping everything in process
// local maps. It is safe for concurrent access and best suited for tests or
// ephemeral demo servers. Every returned value is cloned to prevent external
// mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	messages map[string][]*core.Message
	byMsgID  map[int64]*core.Message
	shared   map[int64]*core.SharedMessage
	records  map[string][]*core.CompletionRecord

	nextMessageID int64
	nextSharedID  int64
	nextRecordID  int64
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*core.Session),
		messages: make(map[string][]*core.Message),
		byMsgID:  make(map[int64]*core.Message),
		shared:   make(map[int64]*core.SharedMessage),
		records:  make(map[string][]*core.CompletionRecord),
	}
}

// CreateSession stores a clone of the provided session.
func (s *InMemoryStore) CreateSession(ctx context.Context, sess *core.Session) error {
	if !sess.Category.Valid() {
		return fmt.Errorf("invalid session category %q", sess.Category)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// GetSession returns a clone of the stored session.
func (s *InMemoryStore) GetSession(ctx context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// ListSessions filters and paginates sessions ordered by most recent update.
func (s *InMemoryStore) ListSessions(ctx context.Context, f core.SessionFilter, p core.Page) ([]*core.Session, core.Pagination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*core.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if matchesFilter(sess, f) {
			matched = append(matched, sess)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Updated.Equal(matched[j].Updated) {
			return matched[i].Updated.After(matched[j].Updated)
		}
		return matched[i].ID < matched[j].ID
	})

	p = p.Normalize()
	total := int64(len(matched))
	pagination := core.Pagination{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: (total + int64(p.PageSize) - 1) / int64(p.PageSize),
	}

	start := p.Offset()
	if start >= len(matched) {
		return []*core.Session{}, pagination, nil
	}
	end := start + p.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*core.Session, 0, end-start)
	for _, sess := range matched[start:end] {
		out = append(out, sess.Clone())
	}
	return out, pagination, nil
}

func matchesFilter(sess *core.Session, f core.SessionFilter) bool {
	if f.ActiveOnly && !sess.Active {
		return false
	}
	if f.Category != nil && sess.Category != *f.Category {
		return false
	}
	if f.TeamID != nil && (sess.TeamID == nil || *sess.TeamID != *f.TeamID) {
		return false
	}
	if f.DocID != nil && (sess.DocID == nil || *sess.DocID != *f.DocID) {
		return false
	}
	if f.CreatedByUserID != nil {
		numeric, ok := sess.CreatedBy.Numeric()
		if !ok || numeric != *f.CreatedByUserID {
			return false
		}
	}
	return true
}

// AppendMessage assigns the next message ID and stores a clone.
func (s *InMemoryStore) AppendMessage(ctx context.Context, m *core.Message) (int64, error) {
	if !m.Role.Valid() {
		return 0, fmt.Errorf("invalid message role %q", m.Role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[m.SessionID]; !ok {
		return 0, core.ErrSessionNotFound
	}

	s.nextMessageID++
	stored := cloneMessage(m)
	stored.ID = s.nextMessageID
	if stored.Created.IsZero() {
		stored.Created = time.Now().UTC()
	}
	s.messages[m.SessionID] = append(s.messages[m.SessionID], stored)
	s.byMsgID[stored.ID] = stored
	return stored.ID, nil
}

// Messages returns the most recent limit messages in chronological order.
func (s *InMemoryStore) Messages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, core.ErrSessionNotFound
	}

	history := s.messages[sessionID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]*core.Message, 0, len(history))
	for _, m := range history {
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

// AnnotateMessage applies the single allowed mutation to a stored message.
func (s *InMemoryStore) AnnotateMessage(ctx context.Context, id int64, a core.Annotation) error {
	if !a.Terminal() {
		return fmt.Errorf("annotation %q is not terminal", a)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byMsgID[id]
	if !ok {
		return core.ErrMessageNotFound
	}
	if m.Annotation != core.AnnotationNone {
		return fmt.Errorf("message %d already annotated %q", id, m.Annotation)
	}
	m.Annotation = a
	return nil
}

// UpdateSessionTimestamp bumps the session's updated time to now.
func (s *InMemoryStore) UpdateSessionTimestamp(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.ErrSessionNotFound
	}
	sess.Updated = time.Now().UTC()
	return nil
}

// FinalizeTurn commits a finished turn under one lock hold. All writes are
// validated before the first map mutation, so a failure leaves the store
// untouched.
func (s *InMemoryStore) FinalizeTurn(ctx context.Context, user, assistant *core.Message, annotation core.Annotation, records []*core.CompletionRecord) (int64, error) {
	if !user.Role.Valid() || !assistant.Role.Valid() {
		return 0, fmt.Errorf("invalid message role %q/%q", user.Role, assistant.Role)
	}
	if annotation != core.AnnotationNone && !annotation.Terminal() {
		return 0, fmt.Errorf("annotation %q is not terminal", annotation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[user.SessionID]
	if !ok {
		return 0, core.ErrSessionNotFound
	}

	now := time.Now().UTC()
	appendMsg := func(m *core.Message) int64 {
		s.nextMessageID++
		stored := cloneMessage(m)
		stored.ID = s.nextMessageID
		if stored.Created.IsZero() {
			stored.Created = now
		}
		s.messages[m.SessionID] = append(s.messages[m.SessionID], stored)
		s.byMsgID[stored.ID] = stored
		return stored.ID
	}

	appendMsg(user)
	asstID := appendMsg(assistant)
	if annotation != core.AnnotationNone {
		s.byMsgID[asstID].Annotation = annotation
	}

	for _, r := range records {
		s.nextRecordID++
		stored := *r
		stored.ID = s.nextRecordID
		id := asstID
		stored.MessageID = &id
		if stored.Created.IsZero() {
			stored.Created = now
		}
		s.records[r.SessionID] = append(s.records[r.SessionID], &stored)
		r.ID = stored.ID
		r.MessageID = stored.MessageID
	}

	sess.Updated = now
	return asstID, nil
}

// RecordCompletion stores one model call record and assigns its ID.
func (s *InMemoryStore) RecordCompletion(ctx context.Context, r *core.CompletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[r.SessionID]; !ok {
		return core.ErrSessionNotFound
	}

	s.nextRecordID++
	stored := *r
	stored.ID = s.nextRecordID
	if stored.MessageID != nil {
		v := *r.MessageID
		stored.MessageID = &v
	}
	if stored.Created.IsZero() {
		stored.Created = time.Now().UTC()
	}
	s.records[r.SessionID] = append(s.records[r.SessionID], &stored)
	r.ID = stored.ID
	return nil
}

// Completions returns clones of all recorded model calls for a session in
// insertion order. Not part of the SessionStore contract; used by tests and
// inspection tooling.
func (s *InMemoryStore) Completions(ctx context.Context, sessionID string) ([]*core.CompletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.CompletionRecord, 0, len(s.records[sessionID]))
	for _, r := range s.records[sessionID] {
		c := *r
		if r.MessageID != nil {
			v := *r.MessageID
			c.MessageID = &v
		}
		out = append(out, &c)
	}
	return out, nil
}

// ShareMessage projects a stored message into the shared set.
func (s *InMemoryStore) ShareMessage(ctx context.Context, messageID int64, by core.UserRef) (*core.SharedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byMsgID[messageID]
	if !ok {
		return nil, core.ErrMessageNotFound
	}

	s.nextSharedID++
	shared := &core.SharedMessage{
		ID:        s.nextSharedID,
		MessageID: m.ID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Content:   m.Content,
		SharedBy:  by,
		Created:   time.Now().UTC(),
	}
	s.shared[shared.ID] = shared

	c := *shared
	return &c, nil
}

// GetSharedMessage returns a clone of a shared message.
func (s *InMemoryStore) GetSharedMessage(ctx context.Context, id int64) (*core.SharedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shared, ok := s.shared[id]
	if !ok {
		return nil, core.ErrSharedMessageNotFound
	}
	c := *shared
	return &c, nil
}

// RevokeSharedMessage removes a shared message.
func (s *InMemoryStore) RevokeSharedMessage(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shared[id]; !ok {
		return core.ErrSharedMessageNotFound
	}
	delete(s.shared, id)
	return nil
}

func cloneMessage(m *core.Message) *core.Message {
	c := *m
	return &c
}
