package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/database"
)

func TestDeleteAccountCascades(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@example.com")
	cv := seedCV(t, db, user.ID, "mine")
	token := "tok-cascade"
	require.NoError(t, db.Model(&cv).Updates(map[string]any{
		"is_public":   true,
		"share_token": token,
	}).Error)

	h := NewUserHandler(db, newTestAuthService(t), nil)
	c, w := testContext(t, jsonRequest(t, http.MethodDelete, "/user/me", nil), user.ID)
	h.DeleteAccount(c)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	// 简历随账号物理删除，按 id 查询 → 404。
	cvHandler := NewCVHandler(db, 0)
	c, w = testContext(t, jsonRequest(t, http.MethodGet, "/cvs/1", nil), user.ID, idParam(cv.ID))
	cvHandler.GetCV(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 分享链接同时失效。
	publicHandler := NewPublicHandler(db)
	c, w = testContext(t, jsonRequest(t, http.MethodGet, "/public/"+token, nil), 0,
		gin.Param{Key: "shareToken", Value: token})
	publicHandler.GetPublicCV(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 账号与简历行都已硬删除，软删除视角下也不存在。
	var users, cvs int64
	require.NoError(t, db.Unscoped().Model(&database.User{}).Where("id = ?", user.ID).Count(&users).Error)
	require.NoError(t, db.Unscoped().Model(&database.CV{}).Where("user_id = ?", user.ID).Count(&cvs).Error)
	assert.Zero(t, users)
	assert.Zero(t, cvs)
}

func TestChangePassword(t *testing.T) {
	db := newTestDB(t)
	authService := newTestAuthService(t)

	hashed, err := authService.HashPassword("secret123")
	require.NoError(t, err)
	user := database.User{Email: "a@example.com", PasswordHash: hashed}
	require.NoError(t, db.Create(&user).Error)

	h := NewUserHandler(db, authService, nil)

	// 当前密码错误 → 400
	bad := gin.H{"currentPassword": "wrong-pass", "newPassword": "newpass456"}
	c, w := testContext(t, jsonRequest(t, http.MethodPut, "/user/password", bad), user.ID)
	h.ChangePassword(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Current password is incorrect")

	// 当前密码正确 → 更新成功
	good := gin.H{"currentPassword": "secret123", "newPassword": "newpass456"}
	c, w = testContext(t, jsonRequest(t, http.MethodPut, "/user/password", good), user.ID)
	h.ChangePassword(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated database.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.True(t, authService.CheckPasswordHash("newpass456", updated.PasswordHash))
}
