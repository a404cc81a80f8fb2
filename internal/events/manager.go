package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Handler receives emitted events. Handlers run on the emitting goroutine
// and must not block.
type Handler func(event *Event)

// Manager handles event emission, logging and fan-out to subscribers
type Manager struct {
	log zerolog.Logger

	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	now      func() time.Time
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log:      log.With().Str("service", "events").Logger(),
		handlers: make(map[int]Handler),
		now:      time.Now,
	}
}

// Subscribe registers a handler for all events and returns a function that
// removes it.
func (m *Manager) Subscribe(handler Handler) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = handler
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.handlers, id)
			m.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered handlers
func (m *Manager) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers)
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: m.now(),
		Data:      data,
		Module:    module,
	}

	// Log event
	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	m.mu.RLock()
	handlers := make([]Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		m.dispatch(h, event)
	}
}

// EmitTyped emits an event carrying typed data
func (m *Manager) EmitTyped(module string, data EventData) {
	payload, err := convertStructToMap(data)
	if err != nil {
		m.log.Error().Err(err).Str("event_type", string(data.EventType())).Msg("Failed to encode event data")
		return
	}
	m.Emit(data.EventType(), module, payload)
}

// dispatch isolates the emitter from a panicking subscriber
func (m *Manager) dispatch(h Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	h(event)
}
