package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/javabetatester/JobAlerts/internal/config"
	"github.com/javabetatester/JobAlerts/internal/model"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 实现邮件通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendAlertEmail 发送职位告警邮件。
func (n *EmailNotifier) SendAlertEmail(ctx context.Context, user *model.User, postings []model.Posting, alertTitle string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip notification")
		return nil
	}
	if user == nil || strings.TrimSpace(user.Email) == "" {
		n.logger.Warn("email recipient empty, skip notification")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", fmt.Sprintf("[JobAlerts] 🚀 New jobs found - %s", alertTitle))
	m.SetBody("text/html", n.buildAlertBody(user, postings, alertTitle))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("alert email sent",
		slog.String("to", user.Email),
		slog.String("alert", alertTitle),
		slog.Int("postings", len(postings)))
	return nil
}

// SendWelcomeEmail 发送欢迎邮件。
func (n *EmailNotifier) SendWelcomeEmail(ctx context.Context, user *model.User) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip welcome email")
		return nil
	}
	if user == nil || strings.TrimSpace(user.Email) == "" {
		n.logger.Warn("email recipient empty, skip welcome email")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "Welcome to Job Alerts!")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hello %s!\n\nWelcome to Job Alerts. Create an alert with your search terms and tags, and we will email you whenever a new posting matches.\n",
		user.Name))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("welcome email sent", slog.String("to", user.Email))
	return nil
}

func (n *EmailNotifier) buildAlertBody(user *model.User, postings []model.Posting, alertTitle string) string {
	var cards strings.Builder
	for _, p := range postings {
		salary := formatSalary(p.SalaryMin, p.SalaryMax)
		salaryLine := ""
		if salary != "" {
			salaryLine = fmt.Sprintf(`<div class="salary">%s</div>`, salary)
		}
		cards.WriteString(fmt.Sprintf(`
    <div class="job">
      <div class="title">%s</div>
      <div class="meta">%s · %s</div>
      %s
      <div style="margin-top: 8px;">
        <a class="cta" href="%s" target="_blank">View &amp; Apply</a>
      </div>
    </div>`,
			html.EscapeString(p.Title),
			html.EscapeString(p.Company),
			html.EscapeString(p.Location),
			salaryLine,
			p.JobURL))
	}

	template := `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 600px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .job { border-bottom: 1px solid #e5e7eb; padding: 12px 0; }
  .title { font-size: 16px; font-weight: bold; }
  .meta { font-size: 13px; color: #6b7280; margin: 4px 0; }
  .salary { font-size: 14px; color: #16a34a; font-weight: bold; }
  .cta { display: inline-block; padding: 8px 16px; background: #22c55e; color: #fff; text-decoration: none; border-radius: 8px; font-weight: bold; font-size: 13px; }
  .footer { margin-top: 20px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">[JobAlerts] 🚀 %s</div>
    <div class="content">
      <p>Hi %s, we found %d new posting(s) matching your alert.</p>
      %s
      <div class="footer">Alert: %s</div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template,
		html.EscapeString(alertTitle),
		html.EscapeString(user.Name),
		len(postings),
		cards.String(),
		html.EscapeString(alertTitle))
}

// formatSalary 渲染薪资区间，两端都缺失时返回空串。
func formatSalary(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("$ %.0f - %.0f", *min, *max)
	case min != nil:
		return fmt.Sprintf("from $ %.0f", *min)
	case max != nil:
		return fmt.Sprintf("up to $ %.0f", *max)
	default:
		return ""
	}
}
