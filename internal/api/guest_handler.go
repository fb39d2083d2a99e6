package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/database"
	"cvbuilder/internal/document"
	"cvbuilder/internal/editor"
)

// 游客通过自定义 Header 标识草稿会话，由前端生成并保存在本地。
const guestSessionHeader = "X-Guest-Session"

// GuestHandler 处理免登录试用的草稿编辑。
type GuestHandler struct {
	db     *gorm.DB
	store  editor.DraftStore
	maxCVs int
}

// NewGuestHandler 构造 GuestHandler。
func NewGuestHandler(db *gorm.DB, store editor.DraftStore, maxCVs int) *GuestHandler {
	return &GuestHandler{db: db, store: store, maxCVs: maxCVs}
}

func (h *GuestHandler) sessionID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(guestSessionHeader))
	if id == "" || len(id) > 128 {
		BadRequest(c, "missing or invalid guest session header")
		return "", false
	}
	return id, true
}

// GetDraft 返回当前草稿；不存在时创建一份空文档。
func (h *GuestHandler) GetDraft(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	sess, err := editor.OpenSession(c.Request.Context(), h.store, id)
	if err != nil {
		middleware.LoggerFromContext(c).Error("open guest draft failed", slog.Any("error", err))
		Internal(c, "failed to load draft")
		return
	}

	c.JSON(http.StatusOK, sess.Document())
}

// PutDraft 以请求体整体覆盖草稿。
func (h *GuestHandler) PutDraft(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var raw datatypes.JSON
	if err := c.ShouldBindJSON(&raw); err != nil {
		BadRequest(c, err.Error())
		return
	}
	doc, err := document.Unmarshal(raw)
	if err != nil {
		BadRequest(c, "invalid draft content")
		return
	}

	ctx := c.Request.Context()
	sess, err := editor.OpenSession(ctx, h.store, id)
	if err != nil {
		Internal(c, "failed to load draft")
		return
	}
	if err := sess.Replace(ctx, doc); err != nil {
		Internal(c, "failed to store draft")
		return
	}

	c.JSON(http.StatusOK, sess.Document())
}

// ApplyOp 对草稿应用单个编辑操作并返回最新文档。
func (h *GuestHandler) ApplyOp(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var op editor.Op
	if err := c.ShouldBindJSON(&op); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	sess, err := editor.OpenSession(ctx, h.store, id)
	if err != nil {
		Internal(c, "failed to load draft")
		return
	}

	if err := sess.Apply(ctx, op); err != nil {
		switch {
		case errors.Is(err, editor.ErrConfirmRequired):
			c.JSON(http.StatusConflict, gin.H{
				"error":           "confirm required",
				"confirmRequired": true,
			})
		case errors.Is(err, editor.ErrUnknownOp),
			errors.Is(err, document.ErrUnknownSection),
			errors.Is(err, document.ErrUnknownField),
			errors.Is(err, document.ErrUnknownColumn),
			errors.Is(err, document.ErrIndexOutOfRange):
			BadRequest(c, err.Error())
		default:
			middleware.LoggerFromContext(c).Error("apply guest op failed", slog.Any("error", err))
			Internal(c, "failed to apply op")
		}
		return
	}

	c.JSON(http.StatusOK, sess.Document())
}

// SaveDraft 处理游客点击保存：草稿只能登录后转存，这里固定引导登录。
func (h *GuestHandler) SaveDraft(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Please log in to save your CV",
	})
}

// ClaimDraft 登录后将草稿转存为正式简历并删除草稿。
func (h *GuestHandler) ClaimDraft(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	doc, err := h.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, editor.ErrDraftNotFound) {
			NotFound(c, "draft not found")
			return
		}
		Internal(c, "failed to load draft")
		return
	}

	var count int64
	if err := h.db.WithContext(ctx).
		Model(&database.CV{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		Internal(c, "failed to count cvs")
		return
	}
	if h.maxCVs > 0 && count >= int64(h.maxCVs) {
		Forbidden(c, "cv limit reached")
		return
	}

	content, err := doc.Marshal()
	if err != nil {
		Internal(c, "failed to encode draft")
		return
	}

	cv := database.CV{
		Name:    doc.Name,
		Content: content,
		UserID:  userID,
	}
	if err := h.db.WithContext(ctx).Create(&cv).Error; err != nil {
		Internal(c, "failed to save cv")
		return
	}

	if err := h.store.Delete(ctx, id); err != nil {
		middleware.LoggerFromContext(c).Warn("delete claimed draft failed", slog.Any("error", err))
	}

	c.JSON(http.StatusCreated, newCVResponse(cv))
}
