package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hupe1980/answermesh/core"
)

type sessionModel struct {
	ID           string  `gorm:"primaryKey;size:36;index:idx_sessions_doc_scope,priority:3"`
	TeamID       *int64  `gorm:"index:idx_sessions_team;index:idx_sessions_doc_scope,priority:2"`
	Title        string  `gorm:"size:255"`
	Active       bool    `gorm:"index:idx_sessions_active"`
	CreatedByStr *string `gorm:"size:64;index:idx_sessions_creator_str"`
	CreatedByID  int64   `gorm:"default:-1;index:idx_sessions_creator"`
	DocID        *string `gorm:"size:64;index:idx_sessions_doc_scope,priority:1"`
	Category     string  `gorm:"size:16;index:idx_sessions_category"`
	Metadata     datatypes.JSON
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (sessionModel) TableName() string { return "sessions" }

type messageModel struct {
	ID         int64   `gorm:"primaryKey;autoIncrement"`
	SessionID  string  `gorm:"size:36;not null;index:idx_messages_session"`
	Role       string  `gorm:"size:16;not null"`
	UserIDStr  *string `gorm:"size:64"`
	UserID     int64   `gorm:"default:-1"`
	Content    string  `gorm:"type:text;not null"`
	Annotation *string `gorm:"size:16"`
	Verdict    *string `gorm:"size:32"`
	CreatedAt  time.Time
}

func (messageModel) TableName() string { return "messages" }

type sharedMessageModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	MessageID   int64   `gorm:"not null;index:idx_shared_message"`
	SessionID   string  `gorm:"size:36;not null;index:idx_shared_session"`
	Role        string  `gorm:"size:16;not null"`
	Content     string  `gorm:"type:text;not null"`
	SharedByStr *string `gorm:"size:64"`
	SharedByID  int64   `gorm:"not null;default:-1"`
	CreatedAt   time.Time
}

func (sharedMessageModel) TableName() string { return "shared_messages" }

type completionRecordModel struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	SessionID        string `gorm:"size:36;not null;index:idx_completions_session"`
	MessageID        *int64
	Kind             string `gorm:"size:16;not null"`
	Model            string `gorm:"size:64;not null"`
	PromptDigest     string `gorm:"size:64;not null"`
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Outcome          string `gorm:"size:32;not null"`
	CreatedAt        time.Time
}

func (completionRecordModel) TableName() string { return "completion_records" }

// GormOptions configures the SQLite-backed store.
type GormOptions struct {
	// LogLevel for the underlying GORM logger. Defaults to silent.
	LogLevel gormlogger.LogLevel
}

// GormStore is a durable SessionStore on SQLite via GORM. The connection pool
// is pinned to a single connection to avoid "database is locked" errors under
// concurrent writers.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (and migrates) the database at path. Pass ":memory:" for
// an ephemeral store.
func NewGormStore(path string, optFns ...func(o *GormOptions)) (*GormStore, error) {
	opts := GormOptions{LogLevel: gormlogger.Silent}
	for _, fn := range optFns {
		fn(&opts)
	}

	dsn := path
	if !strings.Contains(path, "?") {
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(opts.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := migrate(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// migrate runs all automigrations. Keep the model list in one place.
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&sessionModel{},
		&messageModel{},
		&sharedMessageModel{},
		&completionRecordModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateSession inserts a new session row.
func (s *GormStore) CreateSession(ctx context.Context, sess *core.Session) error {
	if !sess.Category.Valid() {
		return fmt.Errorf("invalid session category %q", sess.Category)
	}
	m, err := sessionToModel(sess)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(m).Error
}

// GetSession loads one session by ID.
func (s *GormStore) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var m sessionModel
	if err := s.db.WithContext(ctx).Take(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrSessionNotFound
		}
		return nil, err
	}
	return sessionFromModel(&m)
}

// ListSessions filters and paginates sessions ordered by most recent update.
func (s *GormStore) ListSessions(ctx context.Context, f core.SessionFilter, p core.Page) ([]*core.Session, core.Pagination, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if f.ActiveOnly {
			q = q.Where("active = ?", true)
		}
		if f.Category != nil {
			q = q.Where("category = ?", string(*f.Category))
		}
		if f.TeamID != nil {
			q = q.Where("team_id = ?", *f.TeamID)
		}
		if f.DocID != nil {
			q = q.Where("doc_id = ?", *f.DocID)
		}
		if f.CreatedByUserID != nil {
			q = q.Where("created_by_id = ?", *f.CreatedByUserID)
		}
		return q
	}

	var total int64
	if err := scope(s.db.WithContext(ctx).Model(&sessionModel{})).Count(&total).Error; err != nil {
		return nil, core.Pagination{}, err
	}

	p = p.Normalize()
	var models []sessionModel
	err := scope(s.db.WithContext(ctx).Model(&sessionModel{})).
		Order("updated_at DESC, id ASC").
		Limit(p.PageSize).
		Offset(p.Offset()).
		Find(&models).Error
	if err != nil {
		return nil, core.Pagination{}, err
	}

	out := make([]*core.Session, 0, len(models))
	for i := range models {
		sess, err := sessionFromModel(&models[i])
		if err != nil {
			return nil, core.Pagination{}, err
		}
		out = append(out, sess)
	}
	return out, core.Pagination{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: (total + int64(p.PageSize) - 1) / int64(p.PageSize),
	}, nil
}

// AppendMessage inserts a message row and returns the assigned ID.
func (s *GormStore) AppendMessage(ctx context.Context, m *core.Message) (int64, error) {
	if !m.Role.Valid() {
		return 0, fmt.Errorf("invalid message role %q", m.Role)
	}
	if err := s.sessionExists(ctx, m.SessionID); err != nil {
		return 0, err
	}
	row := messageToModel(m)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

// Messages returns the most recent limit messages in chronological order.
func (s *GormStore) Messages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error) {
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []messageModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*core.Message, len(rows))
	for i := range rows {
		out[len(rows)-1-i] = messageFromModel(&rows[i])
	}
	return out, nil
}

// AnnotateMessage applies the single allowed transition on a message row.
func (s *GormStore) AnnotateMessage(ctx context.Context, id int64, a core.Annotation) error {
	if !a.Terminal() {
		return fmt.Errorf("annotation %q is not terminal", a)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row messageModel
		if err := tx.Take(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrMessageNotFound
			}
			return err
		}
		if row.Annotation != nil {
			return fmt.Errorf("message %d already annotated %q", id, *row.Annotation)
		}
		return tx.Model(&messageModel{}).Where("id = ?", id).Update("annotation", string(a)).Error
	})
}

// UpdateSessionTimestamp bumps the session's updated time to now.
func (s *GormStore) UpdateSessionTimestamp(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ?", id).Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

// FinalizeTurn commits a finished turn in one transaction: both messages,
// the terminal annotation, every completion record linked to the assistant
// message, and the session timestamp bump. A failure on any row rolls back
// the whole commit.
func (s *GormStore) FinalizeTurn(ctx context.Context, user, assistant *core.Message, annotation core.Annotation, records []*core.CompletionRecord) (int64, error) {
	if !user.Role.Valid() || !assistant.Role.Valid() {
		return 0, fmt.Errorf("invalid message role %q/%q", user.Role, assistant.Role)
	}
	if annotation != core.AnnotationNone && !annotation.Terminal() {
		return 0, fmt.Errorf("annotation %q is not terminal", annotation)
	}

	var asstID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&sessionModel{}).Where("id = ?", user.SessionID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return core.ErrSessionNotFound
		}

		userRow := messageToModel(user)
		if err := tx.Create(userRow).Error; err != nil {
			return err
		}

		asstRow := messageToModel(assistant)
		if annotation != core.AnnotationNone {
			v := string(annotation)
			asstRow.Annotation = &v
		}
		if err := tx.Create(asstRow).Error; err != nil {
			return err
		}
		asstID = asstRow.ID

		for _, r := range records {
			rec := completionToModel(r)
			rec.MessageID = &asstID
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
			r.ID = rec.ID
			r.MessageID = rec.MessageID
		}

		return tx.Model(&sessionModel{}).Where("id = ?", user.SessionID).
			Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return 0, err
	}
	return asstID, nil
}

// RecordCompletion inserts one model call record.
func (s *GormStore) RecordCompletion(ctx context.Context, r *core.CompletionRecord) error {
	if err := s.sessionExists(ctx, r.SessionID); err != nil {
		return err
	}
	row := completionToModel(r)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	r.ID = row.ID
	return nil
}

// Completions returns all recorded model calls for a session in insertion
// order. Not part of the SessionStore contract; used by inspection tooling.
func (s *GormStore) Completions(ctx context.Context, sessionID string) ([]*core.CompletionRecord, error) {
	var rows []completionRecordModel
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*core.CompletionRecord, 0, len(rows))
	for i := range rows {
		out = append(out, completionFromModel(&rows[i]))
	}
	return out, nil
}

// ShareMessage projects a stored message into the shared set.
func (s *GormStore) ShareMessage(ctx context.Context, messageID int64, by core.UserRef) (*core.SharedMessage, error) {
	var shared *core.SharedMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg messageModel
		if err := tx.Take(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrMessageNotFound
			}
			return err
		}

		numeric, legacy := by.Columns()
		row := sharedMessageModel{
			MessageID:   msg.ID,
			SessionID:   msg.SessionID,
			Role:        msg.Role,
			Content:     msg.Content,
			SharedByStr: legacy,
			SharedByID:  core.UnmigratedUserID,
			CreatedAt:   time.Now().UTC(),
		}
		if numeric != nil {
			row.SharedByID = *numeric
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		shared = sharedFromModel(&row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shared, nil
}

// GetSharedMessage loads one shared message by ID.
func (s *GormStore) GetSharedMessage(ctx context.Context, id int64) (*core.SharedMessage, error) {
	var row sharedMessageModel
	if err := s.db.WithContext(ctx).Take(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrSharedMessageNotFound
		}
		return nil, err
	}
	return sharedFromModel(&row), nil
}

// RevokeSharedMessage deletes a shared message row.
func (s *GormStore) RevokeSharedMessage(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&sharedMessageModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrSharedMessageNotFound
	}
	return nil
}

func (s *GormStore) sessionExists(ctx context.Context, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&sessionModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

func sessionToModel(s *core.Session) (*sessionModel, error) {
	numeric, legacy := s.CreatedBy.Columns()
	m := &sessionModel{
		ID:           s.ID,
		TeamID:       s.TeamID,
		Title:        s.Title,
		Active:       s.Active,
		CreatedByStr: legacy,
		CreatedByID:  core.UnmigratedUserID,
		DocID:        s.DocID,
		Category:     string(s.Category),
		CreatedAt:    s.Created,
		UpdatedAt:    s.Updated,
	}
	if numeric != nil {
		m.CreatedByID = *numeric
	}
	if len(s.Metadata) > 0 {
		b, err := json.Marshal(s.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal session metadata: %w", err)
		}
		m.Metadata = datatypes.JSON(b)
	}
	return m, nil
}

func sessionFromModel(m *sessionModel) (*core.Session, error) {
	category, err := core.ParseCategory(m.Category)
	if err != nil {
		return nil, err
	}
	sess := &core.Session{
		ID:        m.ID,
		TeamID:    m.TeamID,
		Title:     m.Title,
		Active:    m.Active,
		CreatedBy: core.ResolveUserRef(&m.CreatedByID, m.CreatedByStr),
		DocID:     m.DocID,
		Category:  category,
		Created:   m.CreatedAt,
		Updated:   m.UpdatedAt,
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &sess.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal session metadata: %w", err)
		}
	}
	return sess, nil
}

func messageToModel(m *core.Message) *messageModel {
	numeric, legacy := m.Author.Columns()
	row := &messageModel{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		UserIDStr: legacy,
		UserID:    core.UnmigratedUserID,
		Content:   m.Content,
		CreatedAt: m.Created,
	}
	if numeric != nil {
		row.UserID = *numeric
	}
	if m.Annotation != core.AnnotationNone {
		v := string(m.Annotation)
		row.Annotation = &v
	}
	if m.Verdict != core.VerdictNone {
		v := string(m.Verdict)
		row.Verdict = &v
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func messageFromModel(m *messageModel) *core.Message {
	msg := &core.Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      core.Role(m.Role),
		Author:    core.ResolveUserRef(&m.UserID, m.UserIDStr),
		Content:   m.Content,
		Created:   m.CreatedAt,
	}
	if m.Annotation != nil {
		msg.Annotation = core.Annotation(*m.Annotation)
	}
	if m.Verdict != nil {
		msg.Verdict = core.Verdict(*m.Verdict)
	}
	return msg
}

func sharedFromModel(m *sharedMessageModel) *core.SharedMessage {
	return &core.SharedMessage{
		ID:        m.ID,
		MessageID: m.MessageID,
		SessionID: m.SessionID,
		Role:      core.Role(m.Role),
		Content:   m.Content,
		SharedBy:  core.ResolveUserRef(&m.SharedByID, m.SharedByStr),
		Created:   m.CreatedAt,
	}
}

func completionToModel(r *core.CompletionRecord) *completionRecordModel {
	row := &completionRecordModel{
		ID:               r.ID,
		SessionID:        r.SessionID,
		MessageID:        r.MessageID,
		Kind:             string(r.Kind),
		Model:            r.Model,
		PromptDigest:     r.PromptDigest,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		LatencyMS:        r.LatencyMS,
		Outcome:          r.Outcome,
		CreatedAt:        r.Created,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func completionFromModel(m *completionRecordModel) *core.CompletionRecord {
	return &core.CompletionRecord{
		ID:               m.ID,
		SessionID:        m.SessionID,
		MessageID:        m.MessageID,
		Kind:             core.CompletionKind(m.Kind),
		Model:            m.Model,
		PromptDigest:     m.PromptDigest,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		LatencyMS:        m.LatencyMS,
		Outcome:          m.Outcome,
		Created:          m.CreatedAt,
	}
}
