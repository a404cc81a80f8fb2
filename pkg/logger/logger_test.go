package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Output: &buf})

	l.Info().Str("job_id", "abc").Msg("hello")
	l.Debug().Msg("filtered")

	out := buf.String()
	assert.Contains(t, out, `"job_id":"abc"`)
	assert.Contains(t, out, `"message":"hello"`)
	assert.NotContains(t, out, "filtered")
}

func TestCron_AdapterLogsErrors(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	Cron(l).Error(errors.New("boom"), "job panicked", "entry", 3)

	out := buf.String()
	assert.Contains(t, out, `"component":"cron"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"entry":3`)
}
