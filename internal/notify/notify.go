package notify

import (
	"context"

	"github.com/javabetatester/JobAlerts/internal/model"
)

// Notifier 定义通知接口。
type Notifier interface {
	// SendAlertEmail 把一批新职位以邮件摘要的形式发送给用户。
	SendAlertEmail(ctx context.Context, user *model.User, postings []model.Posting, alertTitle string) error

	// SendWelcomeEmail 在用户创建后发送欢迎邮件。
	SendWelcomeEmail(ctx context.Context, user *model.User) error
}
