package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/tasks"
)

// NotificationHandler 接收内部系统触发的公告请求并入队。
type NotificationHandler struct {
	asynqClient *asynq.Client
}

// NewNotificationHandler 构造 NotificationHandler。
func NewNotificationHandler(asynqClient *asynq.Client) *NotificationHandler {
	return &NotificationHandler{asynqClient: asynqClient}
}

type newTemplateRequest struct {
	TemplateName       string `json:"templateName" binding:"required,max=128"`
	FeatureDescription string `json:"featureDescription" binding:"required,max=1024"`
}

// AnnounceNewTemplate 将新模板公告任务入队，立即返回 202。
func (h *NotificationHandler) AnnounceNewTemplate(c *gin.Context) {
	var req newTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewEmailBroadcastTask(req.TemplateName, req.FeatureDescription, correlationID)
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	info, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(3))
	if err != nil {
		middleware.LoggerFromContext(c).Error("enqueue broadcast failed", slog.Any("error", err))
		Internal(c, "failed to enqueue broadcast")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "broadcast accepted",
		"task_id": info.ID,
	})
}
