// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	ErrorOccurred EventType = "ERROR_OCCURRED"

	// Pipeline run lifecycle
	RunStarted     EventType = "RUN_STARTED"
	StageCompleted EventType = "STAGE_COMPLETED"
	RunCompleted   EventType = "RUN_COMPLETED"
	RunFailed      EventType = "RUN_FAILED"
	CleanupFailed  EventType = "CLEANUP_FAILED"

	// Scheduler
	JobScheduled EventType = "JOB_SCHEDULED"

	// Maintenance
	MaintenanceCompleted EventType = "MAINTENANCE_COMPLETED"
)

// AllEventTypes lists every type a stream client may filter on
var AllEventTypes = []EventType{
	ErrorOccurred,
	RunStarted,
	StageCompleted,
	RunCompleted,
	RunFailed,
	CleanupFailed,
	JobScheduled,
	MaintenanceCompleted,
}
