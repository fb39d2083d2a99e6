package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeEmailBroadcast = "email:broadcast"
)

// EmailBroadcastPayload 描述一次全员公告邮件所需的信息。
type EmailBroadcastPayload struct {
	Subject            string `json:"subject"`
	TemplateName       string `json:"template_name"`
	FeatureDescription string `json:"feature_description"`
	CorrelationID      string `json:"correlation_id"`
}

// NewEmailBroadcastTask 构造一个新模板公告的广播任务。
func NewEmailBroadcastTask(templateName, featureDescription, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailBroadcastPayload{
		TemplateName:       templateName,
		FeatureDescription: featureDescription,
		CorrelationID:      correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailBroadcast, payload), nil
}
