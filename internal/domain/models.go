// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of request dates (yyyy-mm-dd).
const DateLayout = "2006-01-02"

// DisplayDateLayout is the format used in report bodies (dd/mm/yyyy).
const DisplayDateLayout = "02/01/2006"

// JobRecord describes a job known to the scheduler
type JobRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	NextRunTime *time.Time `json:"next_run_time"` // nil once a one-shot trigger has fired
	Trigger     string     `json:"trigger"`
}

// ReportPayload is the notification produced for one pipeline run
type ReportPayload struct {
	Subject     string   `json:"subject"`
	HTMLBody    string   `json:"html_body"`
	Attachments []string `json:"attachments"` // Absolute paths under the run's working dir
	NoData      bool     `json:"no_data"`
	Records     int      `json:"records"` // Daily rows the report was built from
}

// Warnings collects non-fatal conditions an operation chose to skip over.
// Callers log or surface them; they never abort a run.
type Warnings []string

// Addf appends a formatted warning
func (w *Warnings) Addf(format string, args ...interface{}) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

// Merge appends all warnings from other
func (w *Warnings) Merge(other Warnings) {
	*w = append(*w, other...)
}

// Empty reports whether no warnings were recorded
func (w Warnings) Empty() bool {
	return len(w) == 0
}

// FormatDisplayDate converts a date starting with yyyy-mm-dd to dd/mm/yyyy.
// Any time of day that follows (engine timestamps such as
// 2024-09-17T00:00:00.000Z) is dropped. Unparseable input is returned unchanged.
func FormatDisplayDate(date string) string {
	day := strings.TrimSpace(date)
	if len(day) > len(DateLayout) {
		day = day[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, day)
	if err != nil {
		return date
	}
	return t.Format(DisplayDateLayout)
}
