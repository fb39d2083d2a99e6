package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"cvbuilder/internal/ai"
	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/document"
)

// AIHandler 代理写作辅助请求。
type AIHandler struct {
	assist *ai.Assist
}

// NewAIHandler 构造 AIHandler。
func NewAIHandler(assist *ai.Assist) *AIHandler {
	return &AIHandler{assist: assist}
}

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Generate 透传提示词并返回生成文本。
func (h *AIHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.assist.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		h.replyUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

type proofreadRequest struct {
	Text string `json:"text" binding:"required"`
}

// Proofread 返回修正拼写与语法后的文本。
func (h *AIHandler) Proofread(c *gin.Context) {
	var req proofreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	corrected, err := h.assist.Proofread(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, ai.ErrTextTooShort) {
			BadRequest(c, "At least 10 characters are required")
			return
		}
		h.replyUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"correctedText": corrected})
}

type scoreRequest struct {
	CVData datatypes.JSON `json:"cvData" binding:"required"`
}

// Score 对请求携带的简历内容打分。
func (h *AIHandler) Score(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	doc, err := document.Unmarshal(req.CVData)
	if err != nil {
		BadRequest(c, "invalid cv data")
		return
	}

	result, err := h.assist.Score(c.Request.Context(), doc)
	if err != nil {
		h.replyUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// maxUpstreamBodyLen 限制透出给调用方的上游响应体长度。
const maxUpstreamBodyLen = 512

func (h *AIHandler) replyUpstreamError(c *gin.Context, err error) {
	logger := middleware.LoggerFromContext(c)

	var upErr *ai.UpstreamError
	if errors.As(err, &upErr) {
		logger.Warn("ai upstream error",
			slog.Int("status", upErr.Status),
			slog.String("body", upErr.Body),
		)
		body := upErr.Body
		if len(body) > maxUpstreamBodyLen {
			body = body[:maxUpstreamBodyLen]
		}
		Error(c, http.StatusBadGateway,
			fmt.Sprintf("Google API Error: %d - %s", upErr.Status, body))
		return
	}

	logger.Error("ai request failed", slog.Any("error", err))
	Internal(c, "ai request failed")
}
