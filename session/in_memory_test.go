package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/answermesh/core"
	"github.com/hupe1980/answermesh/internal/testutil"
)

var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStoreSessionRoundtrip(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	sess := testutil.NewSessionBuilder().
		Category(core.CategorySearch).
		Title("tower research").
		CreatedBy(core.NumericUser(42)).
		Team(7).
		Doc("doc-9").
		Meta("origin", "api").
		Build()
	require.NoError(t, store.CreateSession(ctx, sess))

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, core.CategorySearch, got.Category)
	assert.Equal(t, "tower research", got.Title)
	assert.True(t, got.Active)
	require.NotNil(t, got.TeamID)
	assert.EqualValues(t, 7, *got.TeamID)
	require.NotNil(t, got.DocID)
	assert.Equal(t, "doc-9", *got.DocID)
	assert.Equal(t, "api", got.Metadata["origin"])

	numeric, ok := got.CreatedBy.Numeric()
	require.True(t, ok)
	assert.EqualValues(t, 42, numeric)
}

func TestInMemoryStoreGetUnknownSession(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	_, err := store.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStoreCloneOnRead(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	sess := testutil.NewSessionBuilder().Title("original").Build()
	require.NoError(t, store.CreateSession(ctx, sess))

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Metadata["k"] = "v"

	again, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
	assert.NotContains(t, again.Metadata, "k")
}

func TestInMemoryStoreAppendAndListMessages(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	sess := testutil.NewSessionBuilder().Build()
	require.NoError(t, store.CreateSession(ctx, sess))

	id1, err := store.AppendMessage(ctx, core.NewUserMessage(sess.ID, core.LegacyUser("u-1"), "first"))
	require.NoError(t, err)
	id2, err := store.AppendMessage(ctx, core.NewAssistantMessage(sess.ID, "second"))
	require.NoError(t, err)
	id3, err := store.AppendMessage(ctx, core.NewUserMessage(sess.ID, core.LegacyUser("u-1"), "third"))
	require.NoError(t, err)
	assert.Less(t, id1, id2)
	assert.Less(t, id2, id3)

	all, err := store.Messages(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Content)
	assert.Equal(t, "third", all[2].Content)

	recent, err := store.Messages(ctx, sess.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Content)
	assert.Equal(t, "third", recent[1].Content)
}

func TestInMemoryStoreAppendToUnknownSession(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	_, err := store.AppendMessage(context.Background(), core.NewAssistantMessage("missing", "x"))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStoreAnnotateMessage(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	sess := testutil.NewSessionBuilder().Build()
	require.NoError(t, store.CreateSession(ctx, sess))
	id, err := store.AppendMessage(ctx, core.NewAssistantMessage(sess.ID, "partial"))
	require.NoError(t, err)

	require.NoError(t, store.AnnotateMessage(ctx, id, core.AnnotationTruncated))

	msgs, err := store.Messages(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, core.AnnotationTruncated, msgs[0].Annotation)

	// second transition is rejected
	assert.Error(t, store.AnnotateMessage(ctx, id, core.AnnotationErrored))
	// non-terminal values are rejected
	assert.Error(t, store.AnnotateMessage(ctx, id, core.AnnotationNone))
	assert.ErrorIs(t, store.AnnotateMessage(ctx, 999, core.AnnotationErrored), core.ErrMessageNotFound)
}

func TestInMemoryStoreUpdateSessionTimestamp(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	sess := testutil.NewSessionBuilder().Build()
	sess.Updated = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.CreateSession(ctx, sess))

	require.NoError(t, store.UpdateSessionTimestamp(ctx, sess.ID))

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Updated.After(sess.Updated))

	assert.ErrorIs(t, store.UpdateSessionTimestamp(ctx, "missing"), core.ErrSessionNotFound)
}

func TestInMemoryStoreListSessionsFilters(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	chat := testutil.NewSessionBuilder().Category(core.CategoryChat).CreatedBy(core.NumericUser(1)).Build()
	searchActive := testutil.NewSessionBuilder().Category(core.CategorySearch).CreatedBy(core.NumericUser(1)).Team(3).Build()
	searchInactive := testutil.NewSessionBuilder().Category(core.CategorySearch).CreatedBy(core.NumericUser(2)).Inactive().Build()
	for _, s := range []*core.Session{chat, searchActive, searchInactive} {
		require.NoError(t, store.CreateSession(ctx, s))
	}

	cat := core.CategorySearch
	got, page, err := store.ListSessions(ctx, core.SessionFilter{Category: &cat}, core.Page{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.EqualValues(t, 2, page.Total)

	got, _, err = store.ListSessions(ctx, core.SessionFilter{Category: &cat, ActiveOnly: true}, core.Page{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, searchActive.ID, got[0].ID)

	creator := int64(1)
	got, _, err = store.ListSessions(ctx, core.SessionFilter{CreatedByUserID: &creator}, core.Page{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	team := int64(3)
	got, _, err = store.ListSessions(ctx, core.SessionFilter{TeamID: &team}, core.Page{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, searchActive.ID, got[0].ID)
}

func TestInMemoryStoreListSessionsPagination(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s := testutil.NewSessionBuilder().Title("s").Build()
		s.Updated = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.CreateSession(ctx, s))
	}

	got, page, err := store.ListSessions(ctx, core.SessionFilter{}, core.Page{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, page.Page)
	assert.EqualValues(t, 5, page.Total)
	assert.EqualValues(t, 3, page.TotalPages)

	// most recently updated first
	first, _, err := store.ListSessions(ctx, core.SessionFilter{}, core.Page{Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, first[0].Updated.Equal(base.Add(4*time.Minute)))

	// past the end yields an empty page with totals intact
	empty, page, err := store.ListSessions(ctx, core.SessionFilter{}, core.Page{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.EqualValues(t, 5, page.Total)
}

func TestInMemoryStoreCompletionRecords(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	sess := testutil.NewSessionBuilder().Build()
	require.NoError(t, store.CreateSession(ctx, sess))

	rec := &core.CompletionRecord{
		SessionID:    sess.ID,
		Kind:         core.CompletionDraft,
		Model:        "gpt-4o-mini",
		PromptDigest: core.PromptDigest([]core.PromptMessage{{Role: core.RoleUser, Content: "q"}}),
		PromptTokens: 12,
		Outcome:      core.CompletionOutcomeSuccess,
	}
	require.NoError(t, store.RecordCompletion(ctx, rec))
	assert.NotZero(t, rec.ID)

	records, err := store.Completions(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, core.CompletionDraft, records[0].Kind)
	assert.Equal(t, "gpt-4o-mini", records[0].Model)
}

func TestInMemoryStoreShareLifecycle(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	sess := testutil.NewSessionBuilder().Build()
	require.NoError(t, store.CreateSession(ctx, sess))
	msgID, err := store.AppendMessage(ctx, core.NewAssistantMessage(sess.ID, "the tower opened in 1889"))
	require.NoError(t, err)

	shared, err := store.ShareMessage(ctx, msgID, core.LegacyUser("u-7"))
	require.NoError(t, err)
	assert.Equal(t, msgID, shared.MessageID)
	assert.Equal(t, sess.ID, shared.SessionID)
	assert.Equal(t, "the tower opened in 1889", shared.Content)

	got, err := store.GetSharedMessage(ctx, shared.ID)
	require.NoError(t, err)
	legacy, ok := got.SharedBy.Legacy()
	require.True(t, ok)
	assert.Equal(t, "u-7", legacy)
	assert.False(t, got.SharedBy.Migrated())

	require.NoError(t, store.RevokeSharedMessage(ctx, shared.ID))
	_, err = store.GetSharedMessage(ctx, shared.ID)
	assert.ErrorIs(t, err, core.ErrSharedMessageNotFound)
	assert.ErrorIs(t, store.RevokeSharedMessage(ctx, shared.ID), core.ErrSharedMessageNotFound)

	_, err = store.ShareMessage(ctx, 12345, core.LegacyUser("u-7"))
	assert.ErrorIs(t, err, core.ErrMessageNotFound)
}

var _ core.TurnFinalizer = (*InMemoryStore)(nil)

func TestInMemoryStoreFinalizeTurn(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := testutil.NewSessionBuilder().Build()
	require.NoError(t, store.CreateSession(ctx, sess))

	user := core.NewUserMessage(sess.ID, core.LegacyUser("u-7"), "when did the tower open?")
	asst := core.NewAssistantMessage(sess.ID, "it opened in 1889")
	asst.Verdict = core.VerdictSupported
	records := []*core.CompletionRecord{
		{SessionID: sess.ID, Kind: core.CompletionDraft, Model: "gpt-4o-mini", Outcome: "ok"},
		{SessionID: sess.ID, Kind: core.CompletionVerify, Model: "gpt-4o-mini", Outcome: "ok"},
	}

	asstID, err := store.FinalizeTurn(ctx, user, asst, core.AnnotationErrored, records)
	require.NoError(t, err)

	msgs, err := store.Messages(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, asstID, msgs[1].ID)
	assert.Equal(t, core.AnnotationErrored, msgs[1].Annotation)
	assert.Equal(t, core.VerdictSupported, msgs[1].Verdict)

	recs, err := store.Completions(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		require.NotNil(t, rec.MessageID)
		assert.Equal(t, asstID, *rec.MessageID)
	}

	_, err = store.FinalizeTurn(ctx,
		core.NewUserMessage("missing", core.LegacyUser("u-7"), "hi"),
		core.NewAssistantMessage("missing", "hello"),
		core.AnnotationNone, nil)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	// a non-terminal annotation is rejected before anything is written
	bad := core.NewAssistantMessage(sess.ID, "partial")
	_, err = store.FinalizeTurn(ctx, user, bad, core.Annotation("draft"), nil)
	require.Error(t, err)
	msgs, err = store.Messages(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}
