// Package events defines the structured interaction log of a session.
package events

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/haiilab/sketchlab/internal/scene"
)

// Type classifies an event.
type Type string

const (
	CommandExecuted Type = "command_executed"
	CommandUndone   Type = "command_undone"
	CommandRedone   Type = "command_redone"

	ToolChanged      Type = "tool_change"
	SelectionChanged Type = "selection_change"
	CaptureCancelled Type = "capture_cancelled"

	SuggestionRequested   Type = "suggestion_requested"
	SuggestionProposed    Type = "suggestion_proposed"
	SuggestionAccepted    Type = "suggestion_accepted"
	SuggestionRejected    Type = "suggestion_rejected"
	SuggestionExpired     Type = "suggestion_expired"
	SuggestionUnavailable Type = "suggestion_unavailable"
	SuggestionDiscarded   Type = "suggestion_discarded"
	AutoToggled           Type = "suggestion_auto_toggled"

	SessionConfigured Type = "session_configured"
	RatingRecorded    Type = "rating_recorded"
	DrawingSaved      Type = "drawing_saved"
	DrawingLoaded     Type = "drawing_loaded"
)

// Event is one timestamped, attributed interaction.
type Event struct {
	Seq        int64            `json:"seq,omitempty"` // assigned by the journal
	SessionID  string           `json:"session_id"`
	At         time.Time        `json:"at"`
	Type       Type             `json:"type"`
	Provenance scene.Provenance `json:"provenance,omitempty"`
	Condition  string           `json:"condition"`
	Task       string           `json:"task"`
	Payload    map[string]any   `json:"payload,omitempty"`
}

// Sink consumes events. Write must not block for long; the bus calls sinks
// synchronously in publish order.
type Sink interface {
	Write(e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Write(e Event) error { return f(e) }

// Bus fans events out to sinks. A failing sink is logged and skipped.
type Bus struct {
	mu     sync.Mutex
	sinks  []attached
	next   int
	logger *slog.Logger
}

type attached struct {
	id   int
	sink Sink
}

func NewBus(logger *slog.Logger, sinks ...Sink) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Bus{logger: logger}
	for _, s := range sinks {
		b.Attach(s)
	}
	return b
}

// Attach adds a sink and returns a function detaching it.
func (b *Bus) Attach(s Sink) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.sinks = append(b.sinks, attached{id: id, sink: s})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, a := range b.sinks {
			if a.id == id {
				b.sinks = append(b.sinks[:i:i], b.sinks[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to every sink. Publishing is serialised so sinks see
// events in one global order.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.sinks {
		if err := a.sink.Write(e); err != nil {
			b.logger.Warn("events.sink_failed", "type", e.Type, "error", err)
		}
	}
}

// SlogSink writes events as structured log records.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Write(e Event) error {
	attrs := []any{
		"session", e.SessionID,
		"condition", e.Condition,
		"task", e.Task,
	}
	if e.Provenance != "" {
		attrs = append(attrs, "provenance", e.Provenance)
	}
	if len(e.Payload) > 0 {
		attrs = append(attrs, "payload", e.Payload)
	}
	s.logger.Info(string(e.Type), attrs...)
	return nil
}

// MemorySink keeps every event in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Write(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types returns the recorded event types in order.
func (m *MemorySink) Types() []Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// Reset discards the recorded events.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
