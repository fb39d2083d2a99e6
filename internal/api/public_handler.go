package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvbuilder/internal/database"
)

// PublicHandler 提供免登录的分享链接访问。
type PublicHandler struct {
	db *gorm.DB
}

// NewPublicHandler 构造 PublicHandler。
func NewPublicHandler(db *gorm.DB) *PublicHandler {
	return &PublicHandler{db: db}
}

type publicCVResponse struct {
	Name    string         `json:"cvName"`
	Content datatypes.JSON `json:"content"`
}

// GetPublicCV 按分享令牌返回简历的只读视图。
// 令牌不存在与分享已关闭统一返回 404，不暴露简历是否存在。
func (h *PublicHandler) GetPublicCV(c *gin.Context) {
	token := c.Param("shareToken")
	if token == "" {
		NotFound(c, "cv not found")
		return
	}

	var cv database.CV
	err := h.db.WithContext(c.Request.Context()).
		Where("share_token = ? AND is_public = ?", token, true).
		First(&cv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "cv not found")
			return
		}
		Internal(c, "failed to query cv")
		return
	}

	c.JSON(http.StatusOK, publicCVResponse{
		Name:    cv.Name,
		Content: cv.Content,
	})
}
