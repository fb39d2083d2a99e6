package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/database"
	"cvbuilder/internal/document"
	"cvbuilder/internal/editor"
)

func guestRequest(t *testing.T, method, target string, body any, sessionID string) *http.Request {
	t.Helper()
	req := jsonRequest(t, method, target, body)
	if sessionID != "" {
		req.Header.Set(guestSessionHeader, sessionID)
	}
	return req
}

func TestGuestDraftLifecycle(t *testing.T) {
	db := newTestDB(t)
	store := editor.NewMemoryDraftStore()
	h := NewGuestHandler(db, store, 0)

	// 首次访问创建空草稿。
	c, w := testContext(t, guestRequest(t, http.MethodGet, "/guest/draft", nil, "g-1"), 0)
	h.GetDraft(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var doc document.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, document.DefaultName, doc.Name)

	// 应用编辑操作。
	op := gin.H{"type": "add_item", "section": "skills"}
	c, w = testContext(t, guestRequest(t, http.MethodPost, "/guest/draft/ops", op, "g-1"), 0)
	h.ApplyOp(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Skills, 1)

	// 缺 Header → 400
	c, w = testContext(t, guestRequest(t, http.MethodGet, "/guest/draft", nil, ""), 0)
	h.GetDraft(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGuestRemoveItemNeedsConfirm(t *testing.T) {
	db := newTestDB(t)
	store := editor.NewMemoryDraftStore()
	h := NewGuestHandler(db, store, 0)

	add := gin.H{"type": "add_item", "section": "projects"}
	c, w := testContext(t, guestRequest(t, http.MethodPost, "/guest/draft/ops", add, "g-1"), 0)
	h.ApplyOp(c)
	require.Equal(t, http.StatusOK, w.Code)

	remove := gin.H{"type": "remove_item", "section": "projects", "index": 0}
	c, w = testContext(t, guestRequest(t, http.MethodPost, "/guest/draft/ops", remove, "g-1"), 0)
	h.ApplyOp(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "confirmRequired")

	remove["confirm"] = true
	c, w = testContext(t, guestRequest(t, http.MethodPost, "/guest/draft/ops", remove, "g-1"), 0)
	h.ApplyOp(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGuestSaveAlwaysPromptsLogin(t *testing.T) {
	db := newTestDB(t)
	h := NewGuestHandler(db, editor.NewMemoryDraftStore(), 0)

	c, w := testContext(t, guestRequest(t, http.MethodPost, "/guest/draft/save", nil, "g-1"), 0)
	h.SaveDraft(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "log in")
}

func TestClaimDraftPersistsAndDeletes(t *testing.T) {
	db := newTestDB(t)
	store := editor.NewMemoryDraftStore()
	user := seedUser(t, db, "a@example.com")
	h := NewGuestHandler(db, store, 0)

	ctx := context.Background()
	doc := document.New("Guest Draft")
	doc.PersonalInfo.FullName = "Guest"
	require.NoError(t, store.Save(ctx, "g-1", doc))

	c, w := testContext(t, guestRequest(t, http.MethodPost, "/guest/draft/claim", nil, "g-1"), user.ID)
	h.ClaimDraft(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp cvResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Guest Draft", resp.Name)

	var count int64
	require.NoError(t, db.Model(&database.CV{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// 草稿已删除。
	_, err := store.Load(ctx, "g-1")
	assert.ErrorIs(t, err, editor.ErrDraftNotFound)

	// 再次转存 → 404
	c, w = testContext(t, guestRequest(t, http.MethodPost, "/guest/draft/claim", nil, "g-1"), user.ID)
	h.ClaimDraft(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClaimDraftRespectsCap(t *testing.T) {
	db := newTestDB(t)
	store := editor.NewMemoryDraftStore()
	user := seedUser(t, db, "a@example.com")
	seedCV(t, db, user.ID, "existing")
	h := NewGuestHandler(db, store, 1)

	require.NoError(t, store.Save(context.Background(), "g-1", document.New("draft")))

	c, w := testContext(t, guestRequest(t, http.MethodPost, "/guest/draft/claim", nil, "g-1"), user.ID)
	h.ClaimDraft(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
