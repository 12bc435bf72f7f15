// Package email delivers rendered authentication messages over SMTP.
// Delivery is best-effort from the engine's point of view: a failed send is
// reported to the caller but never rolls back state already committed.
package email

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// Message is one rendered email ready for transport.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message to a single recipient. No delivery receipts or
// bounce handling are consumed.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the transport parameters, read once at process start.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	// TLSMode is one of "auto", "starttls", "ssl", "none".
	TLSMode string
}

// SMTPSender implements Sender over SMTP.
type SMTPSender struct {
	config SMTPConfig
	logger *zap.Logger
}

// NewSMTPSender creates an SMTPSender. logger may be nil.
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SMTPSender{
		config: cfg,
		logger: logger.Named("smtp"),
	}
}

// Send implements Sender. The context is honored up to the handoff to the
// dialer; the SMTP exchange itself runs to completion or transport error.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
	}
	if msg.HTML != "" {
		if msg.Text == "" {
			m.SetBody("text/html", msg.HTML)
		} else {
			m.AddAlternative("text/html", msg.HTML)
		}
	}

	d := mail.NewDialer(s.config.Host, s.config.Port, s.config.Username, s.config.Password)
	d.TLSConfig = &tls.Config{ServerName: s.config.Host}

	switch s.config.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = nil
	default:
		// "auto"/"starttls": the dialer negotiates STARTTLS when offered.
	}

	if err := d.DialAndSend(m); err != nil {
		s.logger.Error("smtp send failed",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return fmt.Errorf("smtp send: %w", err)
	}

	s.logger.Debug("email sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
