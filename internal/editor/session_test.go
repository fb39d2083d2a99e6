package editor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/document"
)

func rawString(t *testing.T, s string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return data
}

func TestOpenSessionCreatesDraft(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDraftStore()

	sess, err := OpenSession(ctx, store, "g-1")
	require.NoError(t, err)
	assert.Equal(t, document.DefaultName, sess.Document().Name)

	// 新建的空草稿应已落库。
	doc, err := store.Load(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, document.DefaultName, doc.Name)
}

func TestApplyPersistsEveryOp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDraftStore()
	sess, err := OpenSession(ctx, store, "g-1")
	require.NoError(t, err)

	require.NoError(t, sess.Apply(ctx, Op{Type: OpAddItem, Section: document.SectionSkills}))
	require.NoError(t, sess.Apply(ctx, Op{
		Type: OpSetField, Section: document.SectionSkills, Index: 0,
		Field: "value", Value: rawString(t, "Go"),
	}))
	require.NoError(t, sess.Apply(ctx, Op{Type: OpRename, Name: "Draft CV"}))
	require.NoError(t, sess.Apply(ctx, Op{
		Type: OpSetInfo, Field: "fullName", Value: rawString(t, "Guest"),
	}))

	stored, err := store.Load(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, "Draft CV", stored.Name)
	require.Len(t, stored.Skills, 1)
	assert.Equal(t, "Go", stored.Skills[0].Value)
	assert.Equal(t, "Guest", stored.PersonalInfo.FullName)
}

func TestRemoveItemRequiresConfirm(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDraftStore()
	sess, err := OpenSession(ctx, store, "g-1")
	require.NoError(t, err)
	require.NoError(t, sess.Apply(ctx, Op{Type: OpAddItem, Section: document.SectionProjects}))

	err = sess.Apply(ctx, Op{Type: OpRemoveItem, Section: document.SectionProjects, Index: 0})
	assert.ErrorIs(t, err, ErrConfirmRequired)
	assert.Len(t, sess.Document().Projects, 1, "unconfirmed remove must not mutate")

	require.NoError(t, sess.Apply(ctx, Op{
		Type: OpRemoveItem, Section: document.SectionProjects, Index: 0, Confirm: true,
	}))
	assert.Empty(t, sess.Document().Projects)
}

func TestApplySetSettings(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDraftStore()
	sess, err := OpenSession(ctx, store, "g-1")
	require.NoError(t, err)

	patch, err := json.Marshal(document.Settings{Template: document.TemplateClassic, FontSize: 12})
	require.NoError(t, err)
	require.NoError(t, sess.Apply(ctx, Op{Type: OpSetSettings, Value: patch}))

	got := sess.Document().Settings
	assert.Equal(t, document.TemplateClassic, got.Template)
	assert.Equal(t, 12.0, got.FontSize)
	assert.Equal(t, document.DefaultSettings().Color, got.Color, "unset fields keep current values")
}

func TestApplyFailedOpLeavesDocumentUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDraftStore()
	sess, err := OpenSession(ctx, store, "g-1")
	require.NoError(t, err)

	err = sess.Apply(ctx, Op{Type: OpMoveItem, Section: document.SectionSkills, From: 0, To: 3})
	assert.ErrorIs(t, err, document.ErrIndexOutOfRange)

	err = sess.Apply(ctx, Op{Type: "explode"})
	assert.ErrorIs(t, err, ErrUnknownOp)

	stored, err := store.Load(ctx, "g-1")
	require.NoError(t, err)
	assert.Empty(t, stored.Skills)
}

func TestReplaceNormalizes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDraftStore()
	sess, err := OpenSession(ctx, store, "g-1")
	require.NoError(t, err)

	incoming := &document.Document{Skills: []document.SimpleItem{{Value: "Go"}}}
	require.NoError(t, sess.Replace(ctx, incoming))

	stored, err := store.Load(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, document.DefaultName, stored.Name)
	require.Len(t, stored.Skills, 1)
	assert.NotEmpty(t, stored.Skills[0].ID)
}

func TestDraftDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDraftStore()
	sess, err := OpenSession(ctx, store, "g-1")
	require.NoError(t, err)
	require.NoError(t, sess.Apply(ctx, Op{Type: OpRename, Name: "mine"}))

	require.NoError(t, store.Delete(ctx, "g-1"))
	_, err = store.Load(ctx, "g-1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
