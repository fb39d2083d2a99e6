package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/auth"
	"cvbuilder/internal/database"
	"cvbuilder/internal/storage"
)

// UserHandler 处理账号自助操作：资料、改密、注销。
type UserHandler struct {
	db          *gorm.DB
	authService *auth.AuthService
	storage     *storage.Client
}

// NewUserHandler 构造 UserHandler。
func NewUserHandler(db *gorm.DB, authService *auth.AuthService, storageClient *storage.Client) *UserHandler {
	return &UserHandler{db: db, authService: authService, storage: storageClient}
}

type profileResponse struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

func newProfileResponse(user database.User) profileResponse {
	return profileResponse{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Avatar:   user.Avatar,
		Phone:    user.Phone,
		Address:  user.Address,
	}
}

// GetProfile 返回当前用户的资料。
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		Unauthorized(c)
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(user))
}

type updateProfileRequest struct {
	FullName string `json:"fullName" binding:"max=255"`
	Avatar   string `json:"avatar" binding:"max=512"`
	Phone    string `json:"phone" binding:"max=32"`
	Address  string `json:"address" binding:"max=255"`
}

// UpdateProfile 更新资料字段。邮箱与密码不在此处修改。
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var user database.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		Unauthorized(c)
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"full_name": strings.TrimSpace(req.FullName),
		"avatar":    strings.TrimSpace(req.Avatar),
		"phone":     strings.TrimSpace(req.Phone),
		"address":   strings.TrimSpace(req.Address),
	}).Error; err != nil {
		Internal(c, "failed to update profile")
		return
	}

	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		Internal(c, "failed to reload profile")
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=72"`
}

// ChangePassword 校验当前密码并更新为新密码。
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		Unauthorized(c)
		return
	}

	if !h.authService.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		logger.Info("change password: current password mismatch")
		BadRequest(c, "Current password is incorrect")
		return
	}

	hashed, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("change password: hash failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).
		Update("password_hash", hashed).Error; err != nil {
		logger.Error("change password: update failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// DeleteAccount 注销账号：删除全部简历与账号记录，并尽力清理对象存储中的资产。
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&database.CV{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&database.User{}, userID).Error
	})
	if err != nil {
		logger.Error("delete account failed", slog.Any("error", err))
		Internal(c, "failed to delete account")
		return
	}

	// 资产清理失败不影响注销结果。
	if h.storage != nil {
		prefix := fmt.Sprintf("user-assets/%d/", userID)
		if err := h.storage.DeletePrefix(ctx, prefix); err != nil {
			logger.Warn("purge user assets failed", slog.Any("error", err))
		}
	}

	logger.Info("account deleted")
	c.Status(http.StatusNoContent)
}
