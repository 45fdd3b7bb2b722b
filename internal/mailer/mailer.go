// Package mailer はログインリンクメールのSMTP送信を提供する。
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Config はSMTP送信の設定。
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc はテストで差し替えるための送信関数。
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer はnet/smtp経由でログインリンクメールを送信する。
// auth.MessageDispatcherを実装する。
type SMTPMailer struct {
	config Config
	send   sendFunc
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(config Config) *SMTPMailer {
	return &SMTPMailer{
		config: config,
		send:   smtp.SendMail,
	}
}

// SendLoginLink は宛先にマジックリンクURLを含むメールを送信する。
// contextのキャンセルは接続確立前のみ反映される（net/smtpはcontext非対応）。
func (m *SMTPMailer) SendLoginLink(ctx context.Context, toEmail, linkURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(m.config.From, toEmail, linkURL)
	addr := net.JoinHostPort(m.config.Host, fmt.Sprintf("%d", m.config.Port))

	var a smtp.Auth
	if m.config.Username != "" {
		a = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if err := m.send(addr, a, m.config.From, []string{toEmail}, msg); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}
	return nil
}

// buildMessage はRFC 5322形式のメール本文を組み立てる。
// 本文にはリンクURLのみを含め、トークンそのものを別途書き出さない。
func buildMessage(from, to, linkURL string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Seu link de acesso\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Olá!\r\n")
	b.WriteString("\r\n")
	b.WriteString("Use o link abaixo para entrar. Ele expira em 15 minutos e só pode ser usado uma vez.\r\n")
	b.WriteString("\r\n")
	b.WriteString(linkURL + "\r\n")
	b.WriteString("\r\n")
	b.WriteString("Se você não solicitou este acesso, ignore este e-mail.\r\n")
	return []byte(b.String())
}
