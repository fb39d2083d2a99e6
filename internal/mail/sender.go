// Package mail 负责发送事务性邮件（找回密码、功能公告）。
package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"cvbuilder/internal/config"
)

// Sender 抽象邮件发送，handler 与 worker 均通过它发信。
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPSender 基于 gomail 的 SMTP 实现。
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender 构造 SMTP 发送器。
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send 发送一封 HTML 邮件。每次调用建立独立连接，量级足够小无需连接池。
func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
