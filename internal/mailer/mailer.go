// Package mailer は検証メールの組み立てと送信を提供する。
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer は検証メールの送信インターフェース。
type Mailer interface {
	// SendVerification は登録確認メールを送信する。
	SendVerification(ctx context.Context, to, token string) error
	// SendPasswordReset はパスワードリセットメールを送信する。
	SendPasswordReset(ctx context.Context, to, token string) error
}

// SMTPConfig はSMTP送信の設定。
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	// BaseURL は確認リンクの基点となるフロントエンドURL。
	BaseURL string
}

// SMTPMailer はSMTP経由でメールを送信する。
type SMTPMailer struct {
	config SMTPConfig
	// sendMail はテストで差し替えるための送信関数。
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		config:   config,
		sendMail: smtp.SendMail,
	}
}

// SendVerification は登録確認メールを送信する。
func (m *SMTPMailer) SendVerification(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/verify-email/%s", strings.TrimRight(m.config.BaseURL, "/"), token)
	body := fmt.Sprintf(
		"アカウント登録を完了するには、以下のリンクを10分以内に開いてください。\r\n\r\n%s\r\n", link)
	return m.send(ctx, to, "メールアドレスの確認", body)
}

// SendPasswordReset はパスワードリセットメールを送信する。
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(m.config.BaseURL, "/"), token)
	body := fmt.Sprintf(
		"パスワードをリセットするには、以下のリンクを60分以内に開いてください。\r\n\r\n%s\r\n", link)
	return m.send(ctx, to, "パスワードのリセット", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + m.config.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	addr := m.config.Host + ":" + m.config.Port
	if err := m.sendMail(addr, auth, m.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// LogMailer はメールを送信せずログに出力する。ローカル開発用。
type LogMailer struct{}

// SendVerification は確認トークンをログに出力する。
func (m *LogMailer) SendVerification(ctx context.Context, to, token string) error {
	slog.Info("verification mail (not sent)",
		slog.String("to", to),
		slog.String("token", token))
	return nil
}

// SendPasswordReset はリセットトークンをログに出力する。
func (m *LogMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	slog.Info("password reset mail (not sent)",
		slog.String("to", to),
		slog.String("token", token))
	return nil
}

// compile-time interface checks
var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
