package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Timer measures one operation and logs its duration when stopped
type Timer struct {
	start    time.Time
	name     string
	log      zerolog.Logger
	slowWarn time.Duration
}

// NewTimer creates a new timer with the given name. Operations slower than
// slowWarn are logged at warn level; zero disables the warning.
func NewTimer(name string, slowWarn time.Duration, log zerolog.Logger) *Timer {
	return &Timer{
		start:    time.Now(),
		name:     name,
		log:      log,
		slowWarn: slowWarn,
	}
}

// Stop logs the elapsed time and returns it
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Operation completed")

	if t.slowWarn > 0 && duration > t.slowWarn {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected")
	}

	return duration
}
