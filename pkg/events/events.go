// Package events carries lifecycle notifications out of the retrieval
// pipeline.
//
// The retrieval algorithms themselves stay side-effect-free: they invoke the
// injected Sink only at well-defined lifecycle points, and the pipeline works
// correctly with no sink attached.
package events

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall-go/pkg/memory"
)

// Type categorizes a lifecycle event.
type Type string

const (
	// TypeRetrievalStarted fires when a retrieval call begins.
	TypeRetrievalStarted Type = "retrieval.started"

	// TypeRetrievalCompleted fires when a retrieval call produces a bundle.
	TypeRetrievalCompleted Type = "retrieval.completed"

	// TypeRetrievalTimedOut fires when the overall timeout elapsed and the
	// bundle was assembled from partial results.
	TypeRetrievalTimedOut Type = "retrieval.timed_out"

	// TypeRetrievalError fires when a branch degrades or fails.
	TypeRetrievalError Type = "retrieval.error"

	// TypeCacheHit fires when a branch is served from the result cache.
	TypeCacheHit Type = "cache.hit"

	// TypeCacheMiss fires when the result cache has no usable entry.
	TypeCacheMiss Type = "cache.miss"
)

// Event is one lifecycle notification.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type categorizes the event.
	Type Type `json:"type"`

	// Kind is the memory kind the event concerns, if branch-scoped.
	Kind memory.Kind `json:"kind,omitempty"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Data carries event-specific fields (counts, durations, reasons).
	Data map[string]interface{} `json:"data,omitempty"`
}

// Sink receives lifecycle events. Implementations must be safe for
// concurrent use; branch goroutines emit independently.
type Sink interface {
	// Emit delivers one event. Emit must not block retrieval; slow
	// consumers should buffer or drop.
	Emit(event Event)
}

// New builds an event with a fresh ID and the current timestamp.
func New(eventType Type, kind memory.Kind, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Kind:      kind,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NopSink discards every event. It is the default when no sink is attached.
type NopSink struct{}

// Emit discards the event.
func (NopSink) Emit(Event) {}

// SlogSink logs events through a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink logging to the given logger.
// A nil logger uses slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit logs the event at info level with its fields as attributes.
func (s *SlogSink) Emit(event Event) {
	attrs := []any{
		"event_id", event.ID,
		"type", string(event.Type),
	}
	if event.Kind != "" {
		attrs = append(attrs, "kind", string(event.Kind))
	}
	for k, v := range event.Data {
		attrs = append(attrs, k, v)
	}
	s.logger.Info("retrieval event", attrs...)
}
