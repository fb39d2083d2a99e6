package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/document"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&database.User{}, &database.CV{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) database.User {
	t.Helper()
	user := database.User{Email: email, PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedCV(t *testing.T, db *gorm.DB, userID uint, name string) database.CV {
	t.Helper()
	doc := document.New(name)
	content, err := doc.Marshal()
	require.NoError(t, err)
	cv := database.CV{Name: doc.Name, Content: content, UserID: userID}
	require.NoError(t, db.Create(&cv).Error)
	return cv
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func testContext(t *testing.T, req *http.Request, userID uint, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if userID != 0 {
		c.Set("userID", userID)
	}
	c.Params = params
	return c, w
}

func idParam(id uint) gin.Param {
	return gin.Param{Key: "id", Value: fmt.Sprintf("%d", id)}
}

func TestCreateCVAppliesDefaultsAndCap(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	h := NewCVHandler(db, 2)

	c, w := testContext(t, jsonRequest(t, http.MethodPost, "/cvs", gin.H{}), user.ID)
	h.CreateCV(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp cvResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, document.DefaultName, resp.Name)
	assert.False(t, resp.IsPublic)

	doc, err := document.Unmarshal(resp.Content)
	require.NoError(t, err)
	assert.Equal(t, document.DefaultSettings(), doc.Settings)

	// 达到限额后拒绝。
	seedCV(t, db, user.ID, "second")
	c, w = testContext(t, jsonRequest(t, http.MethodPost, "/cvs", gin.H{}), user.ID)
	h.CreateCV(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListCVsIncludesShareToken(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	shared := seedCV(t, db, user.ID, "shared")
	seedCV(t, db, user.ID, "private")
	require.NoError(t, db.Model(&shared).Updates(map[string]any{
		"is_public":   true,
		"share_token": "tok-list",
	}).Error)

	h := NewCVHandler(db, 0)
	c, w := testContext(t, jsonRequest(t, http.MethodGet, "/cvs", nil), user.ID)
	h.ListCVs(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var items []cvListItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 2)

	// 摘要视图带分享令牌，前端无需逐条拉取详情即可展示分享链接。
	byName := map[string]cvListItem{}
	for _, item := range items {
		byName[item.Name] = item
	}
	assert.Equal(t, "tok-list", byName["shared"].ShareToken)
	assert.True(t, byName["shared"].IsPublic)
	assert.Empty(t, byName["private"].ShareToken)
}

func TestDeleteCVHardRemoves(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	cv := seedCV(t, db, user.ID, "doomed")
	require.NoError(t, db.Model(&cv).Updates(map[string]any{
		"is_public":   true,
		"share_token": "tok-doomed",
	}).Error)

	h := NewCVHandler(db, 0)
	c, w := testContext(t, jsonRequest(t, http.MethodDelete, "/cvs/1", nil), user.ID, idParam(cv.ID))
	h.DeleteCV(c)
	require.Equal(t, http.StatusNoContent, w.Code)

	// 物理删除：软删除视角下也查不到，令牌随行释放。
	var count int64
	require.NoError(t, db.Unscoped().Model(&database.CV{}).Where("id = ?", cv.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetCVDistinguishesMissingAndForeign(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	other := seedUser(t, db, "other@example.com")
	cv := seedCV(t, db, owner.ID, "mine")
	h := NewCVHandler(db, 0)

	// 不存在 → 404
	c, w := testContext(t, jsonRequest(t, http.MethodGet, "/cvs/999", nil), owner.ID, idParam(999))
	h.GetCV(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 他人的 → 403
	c, w = testContext(t, jsonRequest(t, http.MethodGet, "/cvs/1", nil), other.ID, idParam(cv.ID))
	h.GetCV(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 本人 → 200
	c, w = testContext(t, jsonRequest(t, http.MethodGet, "/cvs/1", nil), owner.ID, idParam(cv.ID))
	h.GetCV(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateCVReplacesNameAndContent(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	cv := seedCV(t, db, user.ID, "before")
	h := NewCVHandler(db, 0)

	body := gin.H{
		"cvName": "after",
		"content": gin.H{
			"cvName": "ignored",
			"skills": []any{"Go"},
		},
	}
	c, w := testContext(t, jsonRequest(t, http.MethodPut, "/cvs/1", body), user.ID, idParam(cv.ID))
	h.UpdateCV(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp cvResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "after", resp.Name)

	doc, err := document.Unmarshal(resp.Content)
	require.NoError(t, err)
	require.Len(t, doc.Skills, 1)
	assert.Equal(t, "Go", doc.Skills[0].Value)
	assert.NotEmpty(t, doc.Skills[0].ID, "string skills are normalized on write")
}

func TestToggleShareLazyTokenRetained(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	cv := seedCV(t, db, user.ID, "share me")
	h := NewCVHandler(db, 0)

	// 开启分享：生成令牌。
	c, w := testContext(t, jsonRequest(t, http.MethodPut, "/cvs/1/toggle-share", nil), user.ID, idParam(cv.ID))
	h.ToggleShare(c)
	require.Equal(t, http.StatusOK, w.Code)

	var first cvResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.True(t, first.IsPublic)
	require.NotEmpty(t, first.ShareToken)

	// 关闭分享：令牌保留。
	c, w = testContext(t, jsonRequest(t, http.MethodPut, "/cvs/1/toggle-share", nil), user.ID, idParam(cv.ID))
	h.ToggleShare(c)
	var second cvResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.False(t, second.IsPublic)
	assert.Equal(t, first.ShareToken, second.ShareToken)

	// 再次开启：旧令牌继续使用。
	c, w = testContext(t, jsonRequest(t, http.MethodPut, "/cvs/1/toggle-share", nil), user.ID, idParam(cv.ID))
	h.ToggleShare(c)
	var third cvResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &third))
	assert.True(t, third.IsPublic)
	assert.Equal(t, first.ShareToken, third.ShareToken)
}

func TestDuplicateCV(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	cv := seedCV(t, db, user.ID, "original")

	// 原件已公开分享。
	token := "tok-123"
	require.NoError(t, db.Model(&cv).Updates(map[string]any{
		"is_public":   true,
		"share_token": token,
	}).Error)

	h := NewCVHandler(db, 0)
	c, w := testContext(t, jsonRequest(t, http.MethodPost, "/cvs/1/duplicate", nil), user.ID, idParam(cv.ID))
	h.DuplicateCV(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp cvResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "original (Copy)", resp.Name)
	assert.NotEqual(t, cv.ID, resp.ID)
	assert.False(t, resp.IsPublic, "duplicate starts private")
	assert.Empty(t, resp.ShareToken, "duplicate has no share token")
}

func TestCompareCVs(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	base := seedCV(t, db, user.ID, "base")

	doc := document.New("variant")
	doc.PersonalInfo.FullName = "Changed"
	content, err := doc.Marshal()
	require.NoError(t, err)
	variant := database.CV{Name: doc.Name, Content: content, UserID: user.ID}
	require.NoError(t, db.Create(&variant).Error)

	h := NewCVHandler(db, 0)
	body := gin.H{"baseId": base.ID, "otherId": variant.ID}
	c, w := testContext(t, jsonRequest(t, http.MethodPost, "/cvs/compare", body), user.ID)
	h.CompareCVs(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var diff document.Diff
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diff))
	assert.True(t, diff.PersonalInfo)
	assert.False(t, diff.Identical)
	assert.False(t, diff.Skills)
}

func TestExportDOCX(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	cv := seedCV(t, db, user.ID, "export me")
	h := NewCVHandler(db, 0)

	c, w := testContext(t, jsonRequest(t, http.MethodGet, "/cvs/1/docx", nil), user.ID, idParam(cv.ID))
	h.ExportDOCX(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".docx")
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestGetPublicCVGating(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	cv := seedCV(t, db, user.ID, "shared")
	token := "pub-tok"
	require.NoError(t, db.Model(&cv).Updates(map[string]any{
		"is_public":   true,
		"share_token": token,
	}).Error)

	h := NewPublicHandler(db)
	tokenParam := func(v string) gin.Param { return gin.Param{Key: "shareToken", Value: v} }

	// 公开中 → 200，且只返回受限视图。
	c, w := testContext(t, jsonRequest(t, http.MethodGet, "/public/"+token, nil), 0, tokenParam(token))
	h.GetPublicCV(c)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "cvName")
	assert.Contains(t, body, "content")
	assert.NotContains(t, body, "shareToken")

	// 未知令牌 → 404
	c, w = testContext(t, jsonRequest(t, http.MethodGet, "/public/nope", nil), 0, tokenParam("nope"))
	h.GetPublicCV(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 关闭分享后同样 404，不暴露差别。
	require.NoError(t, db.Model(&cv).Update("is_public", false).Error)
	c, w = testContext(t, jsonRequest(t, http.MethodGet, "/public/"+token, nil), 0, tokenParam(token))
	h.GetPublicCV(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
