package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Su5hant/sow-backend/internal/config"
	"github.com/Su5hant/sow-backend/internal/pkg/metrics"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 通过 SMTP 发送认证相关邮件。
type EmailNotifier struct {
	cfg         *config.EmailConfig
	frontendURL string
	verifyHours int
	logger      *slog.Logger
}

// NewEmailNotifier 创建邮件通知器。
//
// 参数:
//
//	cfg: SMTP 配置
//	frontendURL: 前端地址，用于拼接验证 / 重置链接
//	verifyHours: 验证令牌有效期（小时），用于邮件文案
func NewEmailNotifier(cfg *config.EmailConfig, frontendURL string, verifyHours int, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:         cfg,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		verifyHours: verifyHours,
		logger:      logger,
	}
}

// SendVerificationLink 发送邮箱验证链接。
func (n *EmailNotifier) SendVerificationLink(toEmail string, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", n.frontendURL, token)
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Welcome to %s!</h2>
    <p>Please click the link below to verify your email address:</p>
    <p><a href="%s" style="background-color: #007bff; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Verify Email</a></p>
    <p>Or copy and paste this link in your browser:</p>
    <p>%s</p>
    <p>This link will expire in %d hours.</p>
    <br>
    <p>If you didn't create an account, please ignore this email.</p>
  </div>
</body>
</html>`, n.cfg.FromName, link, link, n.verifyHours)

	return n.send(toEmail, "Verify Your Email Address", body)
}

// SendPasswordResetLink 发送密码重置链接。
func (n *EmailNotifier) SendPasswordResetLink(toEmail string, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", n.frontendURL, token)
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Password Reset Request</h2>
    <p>You have requested to reset your password. Click the link below to reset it:</p>
    <p><a href="%s" style="background-color: #dc3545; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset Password</a></p>
    <p>Or copy and paste this link in your browser:</p>
    <p>%s</p>
    <p>This link will expire in 1 hour for security reasons.</p>
    <br>
    <p>If you didn't request a password reset, please ignore this email.</p>
  </div>
</body>
</html>`, link, link)

	return n.send(toEmail, "Reset Your Password", body)
}

func (n *EmailNotifier) send(toEmail string, subject string, htmlBody string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		return fmt.Errorf("email config missing")
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("empty recipient")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(n.cfg.FromEmail, n.cfg.FromName))
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		metrics.EmailFailedTotal.Inc()
		return fmt.Errorf("send email: %w", err)
	}

	metrics.EmailSentTotal.Inc()
	if n.logger != nil {
		n.logger.Info("email sent", slog.String("to", toEmail), slog.String("subject", subject))
	}
	return nil
}
