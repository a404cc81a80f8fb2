package notification

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func newTestDispatcher(cfg Config, fake *fakeSender) (*Dispatcher, *int) {
	dials := 0
	d := NewDispatcher(cfg, zerolog.Nop())
	d.newSender = func(Config) (sender, error) {
		dials++
		return fake, nil
	}
	return d, &dials
}

func configured() Config {
	return Config{
		Host:     "smtp.example.com",
		Port:     465,
		Username: "reports@example.com",
		Password: "secret",
		UseSSL:   true,
	}
}

func TestSend_WithAttachments(t *testing.T) {
	dir := t.TempDir()
	chart := filepath.Join(dir, "dolar_daily_returns.html")
	require.NoError(t, os.WriteFile(chart, []byte("<html></html>"), 0644))

	fake := &fakeSender{}
	d, dials := newTestDispatcher(configured(), fake)

	warnings, err := d.Send(context.Background(), "Market report", "<p>hi</p>", "user@example.com", []string{chart})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 1, *dials)

	require.Len(t, fake.sent, 1)
	msg := fake.sent[0]
	assert.Equal(t, []string{"Market report"}, msg.GetGenHeader(mail.HeaderSubject))

	attachments := msg.GetAttachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "dolar_daily_returns.html", attachments[0].Name)
}

func TestSend_MissingAttachmentIsWarning(t *testing.T) {
	fake := &fakeSender{}
	d, _ := newTestDispatcher(configured(), fake)

	missing := filepath.Join(t.TempDir(), "gone.html")
	warnings, err := d.Send(context.Background(), "Market report", "<p>hi</p>", "user@example.com", []string{missing})
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "gone.html")
	require.Len(t, fake.sent, 1)
	assert.Empty(t, fake.sent[0].GetAttachments())
}

func TestSend_UnconfiguredFailsBeforeDialing(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no server", func(c *Config) { c.Host = "" }},
		{"no email", func(c *Config) { c.Username = "" }},
		{"no password", func(c *Config) { c.Password = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := configured()
			tt.modify(&cfg)
			d, dials := newTestDispatcher(cfg, &fakeSender{})

			_, err := d.Send(context.Background(), "s", "b", "user@example.com", nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
			assert.Equal(t, 0, *dials)
		})
	}
}

func TestSend_TransportFailureIsDeliveryError(t *testing.T) {
	fake := &fakeSender{err: errors.New("connection refused")}
	d, _ := newTestDispatcher(configured(), fake)

	_, err := d.Send(context.Background(), "s", "b", "user@example.com", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDelivery))
}

func TestSend_UnreadableAttachmentIsDeliveryError(t *testing.T) {
	fake := &fakeSender{}
	d, dials := newTestDispatcher(configured(), fake)

	// A directory exists but cannot be read as a file
	_, err := d.Send(context.Background(), "s", "b", "user@example.com", []string{t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDelivery))
	assert.Equal(t, 0, *dials)
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		name string
		want mail.ContentType
	}{
		{"chart.html", mail.TypeTextHTML},
		{"DATA.CSV", mail.ContentType("text/csv")},
		{"notes.txt", mail.TypeTextPlain},
		{"image.png", mail.ContentType("image/png")},
		{"blob", mail.TypeAppOctetStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentTypeFor(tt.name))
		})
	}
}
