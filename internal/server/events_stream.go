package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/aristath/market-reports/internal/events"
)

const (
	streamBuffer      = 100
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 5 * time.Second
)

// wireEvent is the client representation of an event
type wireEvent struct {
	Type      string                 `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// EventsHandlers streams pipeline events to clients over websocket or SSE
type EventsHandlers struct {
	source EventSource
	log    zerolog.Logger
}

// NewEventsHandlers creates event stream handlers
func NewEventsHandlers(source EventSource, log zerolog.Logger) *EventsHandlers {
	return &EventsHandlers{
		source: source,
		log:    log.With().Str("component", "events_stream").Logger(),
	}
}

// subscribe registers a buffered, filtered subscription. Events are dropped
// when the client falls behind.
func (h *EventsHandlers) subscribe(r *http.Request) (<-chan *events.Event, func()) {
	allowed := parseTypes(r.URL.Query().Get("types"))
	ch := make(chan *events.Event, streamBuffer)

	unsubscribe := h.source.Subscribe(func(event *events.Event) {
		if allowed != nil && !allowed[event.Type] {
			return
		}

		// Non-blocking send (drop if channel full)
		select {
		case ch <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	})
	return ch, unsubscribe
}

// HandleWebSocket streams events as websocket messages: JSON text frames, or
// msgpack binary frames with ?format=msgpack.
// GET /api/events/ws
func (h *EventsHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		http.Error(w, "Event stream not available", http.StatusServiceUnavailable)
		return
	}

	binary := r.URL.Query().Get("format") == "msgpack"

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Same origin policy as the CORS configuration
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket handshake failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Client messages are not expected; reading detects disconnects
	ctx := conn.CloseRead(r.Context())

	eventChan, unsubscribe := h.subscribe(r)
	defer unsubscribe()

	h.log.Info().Bool("msgpack", binary).Msg("Client connected to websocket event stream")

	send := func(ev wireEvent) error {
		typ, payload, err := encodeWire(ev, binary)
		if err != nil {
			return err
		}
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return conn.Write(writeCtx, typ, payload)
	}

	if err := send(wireEvent{
		Type:      "connected",
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "Connected to event stream",
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from websocket event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := send(toWire(event)); err != nil {
				h.log.Debug().Err(err).Msg("Failed to write event, closing stream")
				return
			}

		case <-heartbeat.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

// HandleStream streams events as Server-Sent Events
// GET /api/events/stream
func (h *EventsHandlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		http.Error(w, "Event stream not available", http.StatusServiceUnavailable)
		return
	}

	// Get flusher for streaming
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan, unsubscribe := h.subscribe(r)
	defer unsubscribe()

	h.log.Info().Msg("Client connected to SSE event stream")

	writeEvent := func(ev wireEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to encode event")
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	writeEvent(wireEvent{
		Type:      "connected",
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "Connected to event stream",
	})

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			h.log.Info().Msg("Client disconnected from SSE event stream")
			return

		case event := <-eventChan:
			writeEvent(toWire(event))

		case <-heartbeat.C:
			writeEvent(wireEvent{Type: "heartbeat", Timestamp: time.Now().Format(time.RFC3339)})
		}
	}
}

func toWire(event *events.Event) wireEvent {
	return wireEvent{
		Type:      string(event.Type),
		Module:    event.Module,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Data:      event.Data,
	}
}

func encodeWire(ev wireEvent, binary bool) (websocket.MessageType, []byte, error) {
	if !binary {
		data, err := json.Marshal(ev)
		return websocket.MessageText, data, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(ev); err != nil {
		return websocket.MessageBinary, nil, err
	}
	return websocket.MessageBinary, buf.Bytes(), nil
}

// parseTypes reads a comma separated event type filter; nil means all types
func parseTypes(raw string) map[events.EventType]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed[events.EventType(t)] = true
		}
	}
	return allowed
}
