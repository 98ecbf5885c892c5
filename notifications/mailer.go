package notifications

import (
	"context"

	"github.com/gigconnect/gigconnect-api/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Mailer sends a rendered email
type Mailer interface {
	Send(ctx context.Context, env Envelope) error
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates a mailer from the SMTP settings
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.SMTPFrom,
	}
}

func (m *SMTPMailer) Send(_ context.Context, env Envelope) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", env.To)
	msg.SetHeader("Subject", env.Subject)
	msg.SetBody("text/plain", env.Body)

	return m.dialer.DialAndSend(msg)
}

// LogMailer only logs, for environments without SMTP
type LogMailer struct {
	log *logrus.Logger
}

func (m LogMailer) Send(_ context.Context, env Envelope) error {
	m.log.WithFields(logrus.Fields{"to": env.To, "subject": env.Subject}).Info("Email (not sent, SMTP disabled)")
	return nil
}

// NewMailer returns an SMTP mailer when SMTP is configured and a LogMailer otherwise
func NewMailer(cfg *config.Config, log *logrus.Logger) Mailer {
	if cfg.MailEnabled() {
		return NewSMTPMailer(cfg)
	}
	return LogMailer{log: log}
}
