package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EmitFansOutToSubscribers(t *testing.T) {
	m := NewManager(zerolog.Nop())
	fixed := time.Date(2024, 9, 20, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	var first, second []*Event
	unsubscribe := m.Subscribe(func(e *Event) { first = append(first, e) })
	m.Subscribe(func(e *Event) { second = append(second, e) })
	assert.Equal(t, 2, m.Subscribers())

	m.Emit(RunStarted, "pipeline", map[string]interface{}{"script_path": "/jobs/a.py"})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, RunStarted, first[0].Type)
	assert.Equal(t, "pipeline", first[0].Module)
	assert.Equal(t, fixed, first[0].Timestamp)
	assert.Equal(t, "/jobs/a.py", first[0].Data["script_path"])

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, m.Subscribers())

	m.Emit(RunCompleted, "pipeline", nil)
	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
}

func TestManager_EmitTyped(t *testing.T) {
	m := NewManager(zerolog.Nop())

	var got *Event
	m.Subscribe(func(e *Event) { got = e })

	m.EmitTyped("pipeline", &RunFailedData{JobID: "abc", Stage: "submit", Kind: "engine_execution", Error: "boom"})

	require.NotNil(t, got)
	assert.Equal(t, RunFailed, got.Type)
	assert.Equal(t, "abc", got.Data["job_id"])
	assert.Equal(t, "submit", got.Data["stage"])
	assert.Equal(t, "engine_execution", got.Data["kind"])
}

func TestManager_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	m := NewManager(zerolog.Nop())

	called := false
	m.Subscribe(func(*Event) { panic("bad subscriber") })
	m.Subscribe(func(*Event) { called = true })

	assert.NotPanics(t, func() {
		m.EmitTyped("scheduler", &ErrorEventData{Error: "boom"})
	})
	assert.True(t, called)
}

func TestEventData_Types(t *testing.T) {
	tests := []struct {
		data EventData
		want EventType
	}{
		{&RunStartedData{}, RunStarted},
		{&StageCompletedData{}, StageCompleted},
		{&RunCompletedData{}, RunCompleted},
		{&RunFailedData{}, RunFailed},
		{&CleanupFailedData{}, CleanupFailed},
		{&JobScheduledData{}, JobScheduled},
		{&MaintenanceCompletedData{}, MaintenanceCompleted},
		{&ErrorEventData{}, ErrorOccurred},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.data.EventType())
	}
}
