package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/document"
	"cvbuilder/internal/docx"
)

// CVHandler 负责简历的增删改查、分享与导出。
type CVHandler struct {
	db     *gorm.DB
	maxCVs int
}

// NewCVHandler 构造 CVHandler。maxCVs 为 0 时不限制数量。
func NewCVHandler(db *gorm.DB, maxCVs int) *CVHandler {
	return &CVHandler{db: db, maxCVs: maxCVs}
}

var (
	errInvalidCVID = errors.New("invalid cv id")
	errNotOwner    = errors.New("not the owner")
)

type createCVRequest struct {
	Name    string         `json:"cvName"`
	Content datatypes.JSON `json:"content"`
}

type cvListItem struct {
	ID         uint      `json:"id"`
	Name       string    `json:"cvName"`
	IsPublic   bool      `json:"isPublic"`
	ShareToken string    `json:"shareToken,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type cvResponse struct {
	ID         uint           `json:"id"`
	Name       string         `json:"cvName"`
	Content    datatypes.JSON `json:"content"`
	IsPublic   bool           `json:"isPublic"`
	ShareToken string         `json:"shareToken,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func newCVResponse(cv database.CV) cvResponse {
	resp := cvResponse{
		ID:        cv.ID,
		Name:      cv.Name,
		Content:   cv.Content,
		IsPublic:  cv.IsPublic,
		CreatedAt: cv.CreatedAt,
		UpdatedAt: cv.UpdatedAt,
	}
	if cv.ShareToken != nil {
		resp.ShareToken = *cv.ShareToken
	}
	return resp
}

// CreateCV 保存一份新简历，内容会先归一化；超过限额则提示。
func (h *CVHandler) CreateCV(c *gin.Context) {
	var req createCVRequest
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

	doc, err := decodeContent(req.Content, req.Name)
	if err != nil {
		BadRequest(c, "invalid cv content")
		return
	}
	content, err := doc.Marshal()
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}

	cv := database.CV{
		Name:    doc.Name,
		Content: content,
		UserID:  userID,
	}
	if err := h.db.WithContext(ctx).Create(&cv).Error; err != nil {
		Internal(c, "failed to create cv")
		return
	}

	c.JSON(http.StatusCreated, newCVResponse(cv))
}

// ListCVs 列出用户全部简历的摘要，按更新时间倒序。
func (h *CVHandler) ListCVs(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var cvs []database.CV
	if err := h.db.WithContext(ctx).
		Select("id", "name", "is_public", "share_token", "created_at", "updated_at").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&cvs).Error; err != nil {
		Internal(c, "failed to list cvs")
		return
	}

	items := make([]cvListItem, 0, len(cvs))
	for _, cv := range cvs {
		item := cvListItem{
			ID:        cv.ID,
			Name:      cv.Name,
			IsPublic:  cv.IsPublic,
			CreatedAt: cv.CreatedAt,
			UpdatedAt: cv.UpdatedAt,
		}
		if cv.ShareToken != nil {
			item.ShareToken = *cv.ShareToken
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, items)
}

// GetCV 返回指定简历的完整内容。
func (h *CVHandler) GetCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	cv, err := h.getCVForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.replyAccessError(c, err)
		return
	}

	c.JSON(http.StatusOK, newCVResponse(*cv))
}

// UpdateCV 以请求内容整体覆盖名称与文档内容。
func (h *CVHandler) UpdateCV(c *gin.Context) {
	var req createCVRequest
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
	cv, err := h.getCVForUser(ctx, c.Param("id"), userID)
	if err != nil {
		h.replyAccessError(c, err)
		return
	}

	doc, err := decodeContent(req.Content, req.Name)
	if err != nil {
		BadRequest(c, "invalid cv content")
		return
	}
	content, err := doc.Marshal()
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}

	if err := h.db.WithContext(ctx).Model(cv).Updates(map[string]any{
		"name":    doc.Name,
		"content": datatypes.JSON(content),
	}).Error; err != nil {
		Internal(c, "failed to update cv")
		return
	}

	if err := h.db.WithContext(ctx).First(cv, cv.ID).Error; err != nil {
		Internal(c, "failed to reload cv")
		return
	}

	c.JSON(http.StatusOK, newCVResponse(*cv))
}

// DeleteCV 物理删除指定简历。不做软删除：分享令牌随行删除，唯一索引立即释放。
func (h *CVHandler) DeleteCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	cv, err := h.getCVForUser(ctx, c.Param("id"), userID)
	if err != nil {
		h.replyAccessError(c, err)
		return
	}

	if err := h.db.WithContext(ctx).Unscoped().Delete(&database.CV{}, cv.ID).Error; err != nil {
		Internal(c, "failed to delete cv")
		return
	}

	c.Status(http.StatusNoContent)
}

// DuplicateCV 复制一份简历：新 id、私有、无分享令牌、名称追加 " (Copy)"。
func (h *CVHandler) DuplicateCV(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	cv, err := h.getCVForUser(ctx, c.Param("id"), userID)
	if err != nil {
		h.replyAccessError(c, err)
		return
	}

	if h.maxCVs > 0 {
		var count int64
		if err := h.db.WithContext(ctx).
			Model(&database.CV{}).
			Where("user_id = ?", userID).
			Count(&count).Error; err != nil {
			Internal(c, "failed to count cvs")
			return
		}
		if count >= int64(h.maxCVs) {
			Forbidden(c, "cv limit reached")
			return
		}
	}

	doc, err := document.Unmarshal(cv.Content)
	if err != nil {
		Internal(c, "failed to decode cv")
		return
	}
	copyDoc := doc.Clone()
	copyDoc.Name = cv.Name + " (Copy)"

	content, err := copyDoc.Marshal()
	if err != nil {
		Internal(c, "failed to encode cv")
		return
	}

	duplicate := database.CV{
		Name:     copyDoc.Name,
		Content:  content,
		UserID:   userID,
		IsPublic: false,
	}
	if err := h.db.WithContext(ctx).Create(&duplicate).Error; err != nil {
		Internal(c, "failed to duplicate cv")
		return
	}

	c.JSON(http.StatusCreated, newCVResponse(duplicate))
}

// ToggleShare 切换公开状态。首次开启时生成分享令牌；
// 关闭时保留令牌，重新开启后旧链接继续有效。
func (h *CVHandler) ToggleShare(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	cv, err := h.getCVForUser(ctx, c.Param("id"), userID)
	if err != nil {
		h.replyAccessError(c, err)
		return
	}

	updates := map[string]any{"is_public": !cv.IsPublic}
	if !cv.IsPublic && cv.ShareToken == nil {
		token := uuid.NewString()
		updates["share_token"] = token
	}

	if err := h.db.WithContext(ctx).Model(cv).Updates(updates).Error; err != nil {
		Internal(c, "failed to toggle share")
		return
	}
	if err := h.db.WithContext(ctx).First(cv, cv.ID).Error; err != nil {
		Internal(c, "failed to reload cv")
		return
	}

	c.JSON(http.StatusOK, newCVResponse(*cv))
}

type compareRequest struct {
	BaseID  uint `json:"baseId" binding:"required"`
	OtherID uint `json:"otherId" binding:"required"`
}

// CompareCVs 对两份本人简历做结构化比较。
func (h *CVHandler) CompareCVs(c *gin.Context) {
	var req compareRequest
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
	base, err := h.getCVForUser(ctx, strconv.FormatUint(uint64(req.BaseID), 10), userID)
	if err != nil {
		h.replyAccessError(c, err)
		return
	}
	other, err := h.getCVForUser(ctx, strconv.FormatUint(uint64(req.OtherID), 10), userID)
	if err != nil {
		h.replyAccessError(c, err)
		return
	}

	baseDoc, err := document.Unmarshal(base.Content)
	if err != nil {
		Internal(c, "failed to decode cv")
		return
	}
	otherDoc, err := document.Unmarshal(other.Content)
	if err != nil {
		Internal(c, "failed to decode cv")
		return
	}

	c.JSON(http.StatusOK, document.Compare(baseDoc, otherDoc))
}

// ExportDOCX 将简历渲染为 Word 文件返回。
func (h *CVHandler) ExportDOCX(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	cv, err := h.getCVForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.replyAccessError(c, err)
		return
	}

	doc, err := document.Unmarshal(cv.Content)
	if err != nil {
		Internal(c, "failed to decode cv")
		return
	}

	var buf bytes.Buffer
	if err := docx.Write(doc, &buf); err != nil {
		Internal(c, "failed to render docx")
		return
	}

	filename := cv.Name
	if filename == "" {
		filename = "cv"
	}
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s.docx", url.PathEscape(filename)))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		buf.Bytes())
}

// getCVForUser 加载简历并区分「不存在」与「非本人」两种失败。
func (h *CVHandler) getCVForUser(ctx context.Context, idParam string, userID uint) (*database.CV, error) {
	cvID, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		return nil, errInvalidCVID
	}

	var cv database.CV
	if err := h.db.WithContext(ctx).First(&cv, uint(cvID)).Error; err != nil {
		return nil, err
	}
	if cv.UserID != userID {
		return nil, errNotOwner
	}
	return &cv, nil
}

func (h *CVHandler) replyAccessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidCVID):
		BadRequest(c, "invalid cv id")
	case errors.Is(err, errNotOwner):
		Forbidden(c, "not allowed")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "cv not found")
	default:
		Internal(c, "failed to query cv")
	}
}

// decodeContent 解析请求中的文档内容；内容为空时创建空文档。
// 请求中的 cvName 优先于内容里的名称。
func decodeContent(content datatypes.JSON, name string) (*document.Document, error) {
	if len(content) == 0 {
		return document.New(name), nil
	}
	doc, err := document.Unmarshal(content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) != "" {
		doc.Name = name
	}
	return doc, nil
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
