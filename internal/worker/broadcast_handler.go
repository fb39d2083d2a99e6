// Package worker 实现后台队列任务的消费逻辑。
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/mail"
	"cvbuilder/internal/tasks"
)

// BroadcastHandler 消费新模板公告任务，向全部注册邮箱逐一发信。
type BroadcastHandler struct {
	db     *gorm.DB
	sender mail.Sender
	logger *slog.Logger
}

// NewBroadcastHandler 创建公告任务处理器。
func NewBroadcastHandler(db *gorm.DB, sender mail.Sender, logger *slog.Logger) *BroadcastHandler {
	return &BroadcastHandler{db: db, sender: sender, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
// 单个收件人失败不会中断广播；全部失败时返回错误触发重试。
func (h *BroadcastHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.EmailBroadcastPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("template_name", payload.TemplateName),
	)
	log.Info("starting template announcement broadcast")

	var emails []string
	if err := h.db.WithContext(ctx).
		Model(&database.User{}).
		Pluck("email", &emails).Error; err != nil {
		log.Error("load recipient emails failed", slog.Any("error", err))
		return err
	}
	if len(emails) == 0 {
		log.Info("no recipients, nothing to send")
		return nil
	}

	subject, body := mail.NewTemplateEmail(payload.TemplateName, payload.FeatureDescription)
	var failed int
	for _, email := range emails {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := h.sender.Send(email, subject, body); err != nil {
			failed++
			log.Warn("send announcement failed",
				slog.String("recipient", email),
				slog.Any("error", err),
			)
		}
	}

	log.Info("broadcast finished",
		slog.Int("total", len(emails)),
		slog.Int("failed", failed),
	)
	if failed == len(emails) {
		return fmt.Errorf("broadcast failed for all %d recipients", failed)
	}
	return nil
}
