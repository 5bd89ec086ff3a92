package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Event is a tagged unit of log data. Tags must be non-nil for the event to
// be accepted; an empty slice is valid.
type Event struct {
	Tags []string `json:"tags" cbor:"tags"`
	Data any      `json:"data,omitempty" cbor:"data,omitempty"`
}

// Valid reports whether the event carries a tag list.
func (e Event) Valid() bool {
	return e.Tags != nil
}

// HasAnyTag reports whether the event carries at least one of tags.
func (e Event) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range e.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

var (
	ErrMissingTags = errors.New("event: tags is required")
	ErrInvalidTags = errors.New("event: tags must be an array of strings")
)

// ParseEvent decodes an untyped JSON event and checks its shape.
func ParseEvent(raw []byte) (Event, error) {
	var shape struct {
		Tags json.RawMessage `json:"tags"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return Event{}, fmt.Errorf("event: %w", err)
	}

	trimmed := bytes.TrimSpace(shape.Tags)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Event{}, ErrMissingTags
	}
	if trimmed[0] != '[' {
		return Event{}, ErrInvalidTags
	}

	tags := []string{}
	if err := json.Unmarshal(trimmed, &tags); err != nil {
		return Event{}, ErrInvalidTags
	}

	event := Event{Tags: tags}
	if len(shape.Data) > 0 {
		var data any
		if err := json.Unmarshal(shape.Data, &data); err != nil {
			return Event{}, fmt.Errorf("event: data: %w", err)
		}
		event.Data = data
	}
	return event, nil
}

// Payload is what a single delivery carries: one event, or an ordered batch.
type Payload struct {
	Events  []Event
	Batched bool
}

func Single(event Event) Payload {
	return Payload{Events: []Event{event}}
}

func Batch(events []Event) Payload {
	return Payload{Events: events, Batched: true}
}

func (p Payload) Len() int {
	return len(p.Events)
}

// Body returns the value that goes on the wire: the event object itself for
// an unbatched payload, the event array otherwise.
func (p Payload) Body() any {
	if !p.Batched && len(p.Events) == 1 {
		return p.Events[0]
	}
	return p.Events
}

// Deliverer ships payloads to the collector. Deliver must not block on
// network I/O.
type Deliverer interface {
	Deliver(payload Payload)
}

// Logger is the caller-facing entry point for events.
type Logger interface {
	Log(event Event)
}
