package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HexSleeves/forager/internal/bus"
)

// EventType represents the type of JSON output event.
type EventType string

const (
	// EventQuery mirrors a query lifecycle message from the bus.
	EventQuery EventType = "query"
	// EventScrape carries the result of a direct scrape.
	EventScrape EventType = "scrape"
	// EventError is emitted for failures outside a query, or to close one.
	EventError EventType = "error"
)

// JSONEvent is the wrapper for all JSON output events.
type JSONEvent struct {
	Type      EventType   `json:"type"`
	Event     string      `json:"event,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	QueryID   string      `json:"query_id,omitempty"`
	Tool      string      `json:"tool,omitempty"`
	Error     *ErrorEvent `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// ErrorEvent represents an error that occurred.
type ErrorEvent struct {
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	mu        sync.Mutex
	w         io.Writer
	maxOutput int // Maximum output length before truncation
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{
		w:         w,
		maxOutput: 10000, // Truncate very large outputs at 10KB
	}
}

// SetMaxOutput sets the maximum output size before truncation.
func (jw *JSONWriter) SetMaxOutput(max int) {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.maxOutput = max
}

// writeEvent writes a single JSON event as a line.
func (jw *JSONWriter) writeEvent(event JSONEvent) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(jw.w, string(data))
	return err
}

// Attach streams every bus message to the writer.
func (jw *JSONWriter) Attach(b *bus.MessageBus) {
	b.SubscribeAll(func(msg bus.Message) {
		jw.WriteMessage(msg) //nolint:errcheck
	})
}

// WriteMessage emits a bus message. Tool output is truncated to the
// configured maximum.
func (jw *JSONWriter) WriteMessage(msg bus.Message) error {
	payload := msg.Payload
	if tc, ok := payload.(bus.ToolCompleted); ok {
		tc.Output = jw.truncate(tc.Output)
		payload = tc
	}
	return jw.writeEvent(JSONEvent{
		Type:      EventQuery,
		Event:     string(msg.Type),
		Timestamp: msg.Time,
		QueryID:   msg.QueryID,
		Tool:      msg.Tool,
		Data:      payload,
	})
}

// WriteScrape emits the result of a direct scrape.
func (jw *JSONWriter) WriteScrape(url string, output, metadata json.RawMessage, elapsed time.Duration) error {
	return jw.writeEvent(JSONEvent{
		Type:    EventScrape,
		Message: url,
		Data: map[string]interface{}{
			"output":     output,
			"metadata":   metadata,
			"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
		},
	})
}

// WriteError emits an error event.
func (jw *JSONWriter) WriteError(message, errorType string) error {
	return jw.writeEvent(JSONEvent{
		Type: EventError,
		Error: &ErrorEvent{
			Message:   message,
			ErrorType: errorType,
		},
	})
}

func (jw *JSONWriter) truncate(s string) string {
	jw.mu.Lock()
	max := jw.maxOutput
	jw.mu.Unlock()
	if max > 0 && len(s) > max {
		return s[:max] + "... [truncated]"
	}
	return s
}
