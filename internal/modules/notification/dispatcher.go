// Package notification delivers report payloads by email.
package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// Config holds SMTP submission settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // Defaults to Username
	UseSSL   bool   // Implicit TLS; otherwise STARTTLS is required
}

// sender is the part of the SMTP client the dispatcher needs
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Dispatcher sends report emails
type Dispatcher struct {
	cfg       Config
	newSender func(cfg Config) (sender, error)
	log       zerolog.Logger
}

// NewDispatcher creates a dispatcher for the given SMTP settings
func NewDispatcher(cfg Config, log zerolog.Logger) *Dispatcher {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Dispatcher{
		cfg:       cfg,
		newSender: newSMTPClient,
		log:       log.With().Str("module", "notification").Logger(),
	}
}

func newSMTPClient(cfg Config) (sender, error) {
	options := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	if cfg.UseSSL {
		options = append(options, mail.WithSSL())
	} else {
		options = append(options, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return mail.NewClient(cfg.Host, options...)
}

// Configured reports whether server and credentials are present
func (d *Dispatcher) Configured() bool {
	return d.cfg.Host != "" && d.cfg.Username != "" && d.cfg.Password != ""
}

// Send emails one HTML message with the given attachments to a single
// recipient. Attachments that no longer exist are skipped and returned as
// warnings.
func (d *Dispatcher) Send(ctx context.Context, subject, htmlBody, to string, attachments []string) (domain.Warnings, error) {
	var warnings domain.Warnings

	if !d.Configured() {
		return nil, domain.Errorf(domain.KindConfiguration, "notification.send",
			"email sender is not configured (server, email and password are required)")
	}

	msg := mail.NewMsg()
	if err := msg.From(d.cfg.From); err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "notification.send", "invalid sender address", err)
	}
	if err := msg.To(to); err != nil {
		return nil, domain.NewError(domain.KindValidation, "notification.send", "invalid recipient address", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	attached := 0
	for _, path := range attachments {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			warnings.Addf("attachment %s not found, skipped", filepath.Base(path))
			d.log.Warn().Str("attachment", path).Msg("Attachment not found, skipping")
			continue
		}
		if err != nil {
			return warnings, domain.NewError(domain.KindDelivery, "notification.attach",
				fmt.Sprintf("failed to read attachment %s", filepath.Base(path)), err)
		}

		name := filepath.Base(path)
		if err := msg.AttachReader(name, bytes.NewReader(data),
			mail.WithFileContentType(ContentTypeFor(name))); err != nil {
			return warnings, domain.NewError(domain.KindDelivery, "notification.attach",
				fmt.Sprintf("failed to attach %s", name), err)
		}
		attached++
	}

	client, err := d.newSender(d.cfg)
	if err != nil {
		return warnings, domain.NewError(domain.KindDelivery, "notification.send", "failed to create SMTP client", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return warnings, domain.NewError(domain.KindDelivery, "notification.send", "failed to send email", err)
	}

	d.log.Info().
		Str("to", to).
		Str("subject", subject).
		Int("attachments", attached).
		Msg("Email sent")

	return warnings, nil
}

// ContentTypeFor picks the MIME type of an attachment from its extension
func ContentTypeFor(name string) mail.ContentType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return mail.TypeTextHTML
	case ".csv":
		return mail.ContentType("text/csv")
	case ".txt":
		return mail.TypeTextPlain
	case ".png":
		return mail.ContentType("image/png")
	case ".jpg", ".jpeg":
		return mail.ContentType("image/jpeg")
	case ".pdf":
		return mail.ContentType("application/pdf")
	default:
		return mail.TypeAppOctetStream
	}
}
