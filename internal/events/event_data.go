package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	ScriptPath  string `json:"script_path"`
	InitialDate string `json:"initial_date"`
	FinalDate   string `json:"final_date"`
	Email       string `json:"email"`
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// StageCompletedData contains data for StageCompleted events
type StageCompletedData struct {
	JobID      string `json:"job_id,omitempty"` // Empty before submission assigns one
	Stage      string `json:"stage"`
	DurationMs int64  `json:"duration_ms"`
}

// EventType returns the event type for StageCompletedData
func (d *StageCompletedData) EventType() EventType {
	return StageCompleted
}

// RunCompletedData contains data for RunCompleted events
type RunCompletedData struct {
	JobID       string   `json:"job_id"`
	Outcome     string   `json:"outcome"` // "report" or "no_data"
	Attachments int      `json:"attachments"`
	Warnings    []string `json:"warnings,omitempty"`
	DurationMs  int64    `json:"duration_ms"`
}

// EventType returns the event type for RunCompletedData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// RunFailedData contains data for RunFailed events
type RunFailedData struct {
	JobID string `json:"job_id,omitempty"`
	Stage string `json:"stage"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// EventType returns the event type for RunFailedData
func (d *RunFailedData) EventType() EventType {
	return RunFailed
}

// CleanupFailedData contains data for CleanupFailed events
type CleanupFailedData struct {
	JobID string `json:"job_id"`
	Dir   string `json:"dir"`
	Error string `json:"error"`
}

// EventType returns the event type for CleanupFailedData
func (d *CleanupFailedData) EventType() EventType {
	return CleanupFailed
}

// JobScheduledData contains data for JobScheduled events
type JobScheduledData struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	NextRunTime time.Time `json:"next_run_time"`
}

// EventType returns the event type for JobScheduledData
func (d *JobScheduledData) EventType() EventType {
	return JobScheduled
}

// MaintenanceCompletedData contains data for MaintenanceCompleted events
type MaintenanceCompletedData struct {
	SnapshotsPruned int     `json:"snapshots_pruned"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}

// EventType returns the event type for MaintenanceCompletedData
func (d *MaintenanceCompletedData) EventType() EventType {
	return MaintenanceCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// convertStructToMap flattens typed data into the Event.Data map
func convertStructToMap(v interface{}) (map[string]interface{}, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		return nil, err
	}
	return m, nil
}
