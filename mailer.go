package accounts

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

// Sender pushes a rendered message to the wire. Split from the Mailer so
// tests and dev environments can swap delivery without touching templates.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// TemplateMailer renders notification bodies from django templates and hands
// them to a Sender. Dispatch failures are surfaced, never swallowed: the
// issued token stays valid and a resend supersedes it.
type TemplateMailer struct {
	engine  *django.Engine
	sender  Sender
	baseURL string
	logger  Logger
}

var _ Mailer = (*TemplateMailer)(nil)

// NewTemplateMailer loads the embedded templates and returns the mailer.
func NewTemplateMailer(sender Sender, baseURL string) (*TemplateMailer, error) {
	engine := django.NewFileSystem(templatesHTTPFS(), ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load mail templates")
	}

	return &TemplateMailer{
		engine:  engine,
		sender:  sender,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  defLogger{},
	}, nil
}

func (m *TemplateMailer) WithLogger(logger Logger) *TemplateMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// SendActivationEmail delivers the activation link for a freshly issued token.
func (m *TemplateMailer) SendActivationEmail(ctx context.Context, email, token string) error {
	return m.send(ctx, email, "Activate your account", "activation", map[string]any{
		"link": fmt.Sprintf("%s/auth/activation/redeem?token=%s", m.baseURL, token),
	})
}

// SendPasswordResetEmail delivers the password reset link.
func (m *TemplateMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	return m.send(ctx, email, "Reset your password", "password_reset", map[string]any{
		"link": fmt.Sprintf("%s/auth/password-reset/redeem?token=%s", m.baseURL, token),
	})
}

func (m *TemplateMailer) send(ctx context.Context, email, subject, template string, binding map[string]any) error {
	var body bytes.Buffer
	if err := m.engine.Render(&body, template, binding); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail template")
	}

	if err := m.sender.Send(ctx, email, subject, body.String()); err != nil {
		m.logger.Error("mail dispatch failed", "to", email, "subject", subject, "error", err)
		return goerrors.Wrap(err, ErrMailDelivery.Category, ErrMailDelivery.Message).
			WithTextCode(ErrMailDelivery.TextCode)
	}

	return nil
}

// SMTPSender delivers through a plain SMTP relay.
type SMTPSender struct {
	Addr string
	From string
	Auth smtp.Auth
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	return smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, []byte(msg))
}

// DevSender prints notifications to stdout instead of delivering them.
type DevSender struct{}

func (DevSender) Send(_ context.Context, to, subject, _ string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", to)
	fmt.Printf("subject: %s\n", subject)
	return nil
}
