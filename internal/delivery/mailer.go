package delivery

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/alure/alure-api/internal/config"
	"go.uber.org/zap"
)

// Mailer is the outbound-delivery collaborator. Bulk issuance calls Verify
// before minting anything and Send once per recipient; a recipient only lands
// in the created list after Send returns nil.
type Mailer interface {
	Verify(ctx context.Context) error
	Send(ctx context.Context, to, subject, body string) error
}

func NewMailer(cfg *config.SMTPConfig, logger *zap.Logger) Mailer {
	if !cfg.Enabled {
		return NewDevMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}

type SMTPMailer struct {
	cfg    *config.SMTPConfig
	logger *zap.Logger
}

func NewSMTPMailer(cfg *config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		logger: logger.Named("SMTPMailer"),
	}
}

var _ Mailer = (*SMTPMailer)(nil)

func (m *SMTPMailer) addr() string {
	return fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
}

// Verify opens and closes an SMTP session to confirm the delivery path exists
// before any keys are minted.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		return fmt.Errorf("smtp host and from address are required")
	}

	client, err := smtp.Dial(m.addr())
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer client.Close()

	if err := client.Noop(); err != nil {
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	return client.Quit()
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(m.addr(), auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		m.logger.Warn("Failed to send mail", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("smtp send failed: %w", err)
	}

	m.logger.Info("Mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// DevMailer logs instead of sending. Used when SMTP is disabled in config.
type DevMailer struct {
	logger *zap.Logger
}

func NewDevMailer(logger *zap.Logger) *DevMailer {
	return &DevMailer{logger: logger.Named("DevMailer")}
}

var _ Mailer = (*DevMailer)(nil)

func (m *DevMailer) Verify(ctx context.Context) error {
	return nil
}

func (m *DevMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.Info("Dev mailer: pretending to send mail",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
