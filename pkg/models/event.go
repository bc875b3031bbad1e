package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// EventName identifies the kind of a usage event.
type EventName string

// Usage event kinds.
const (
	EventListView     EventName = "prompt_list_view"
	EventView         EventName = "prompt_view"
	EventCopy         EventName = "prompt_copy"
	EventSearch       EventName = "prompt_search"
	EventFilterChange EventName = "prompt_filter_change"
	EventOutbound     EventName = "outbound_click"
)

// EventNames lists every known event kind.
var EventNames = []EventName{
	EventListView,
	EventView,
	EventCopy,
	EventSearch,
	EventFilterChange,
	EventOutbound,
}

// Valid reports whether n is a known event kind.
func (n EventName) Valid() bool {
	for _, known := range EventNames {
		if n == known {
			return true
		}
	}
	return false
}

// Payload is the per-kind body of an event. Each kind has exactly one
// payload type; EventName ties the two together.
type Payload interface {
	EventName() EventName
}

// ListViewPayload is recorded when the prompt list is shown.
type ListViewPayload struct{}

// ViewPayload is recorded when a prompt detail is shown.
type ViewPayload struct {
	Slug string `json:"slug,omitempty"`
}

// CopyPayload is recorded when a rendered prompt is copied.
type CopyPayload struct {
	Slug      string            `json:"slug,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// SearchPayload is recorded for a free-text search.
type SearchPayload struct {
	Query string `json:"query"`
}

// FilterChangePayload is recorded when the category selector changes.
type FilterChangePayload struct {
	Category Category `json:"category"`
}

// OutboundClickPayload is recorded when a prompt is sent to a destination.
type OutboundClickPayload struct {
	Slug        string            `json:"slug,omitempty"`
	Destination string            `json:"destination"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// UnknownPayload keeps the raw body of an event whose kind this build does
// not know, so older or newer logs still load.
type UnknownPayload struct {
	Name EventName
	Raw  json.RawMessage
}

func (ListViewPayload) EventName() EventName      { return EventListView }
func (ViewPayload) EventName() EventName          { return EventView }
func (CopyPayload) EventName() EventName          { return EventCopy }
func (SearchPayload) EventName() EventName        { return EventSearch }
func (FilterChangePayload) EventName() EventName  { return EventFilterChange }
func (OutboundClickPayload) EventName() EventName { return EventOutbound }
func (p UnknownPayload) EventName() EventName     { return p.Name }

// MarshalJSON writes the raw body back unchanged.
func (p UnknownPayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

// Event is a usage event before it is stored.
type Event struct {
	Name    EventName
	Payload Payload
}

// NewEvent builds an event from a payload.
func NewEvent(p Payload) Event {
	return Event{Name: p.EventName(), Payload: p}
}

// ParseEvent decodes a payload body for the named kind. Unknown kinds are
// rejected; a nil or empty body yields the zero payload.
func ParseEvent(name EventName, raw []byte) (Event, error) {
	if !name.Valid() {
		return Event{}, fmt.Errorf("unknown event name %q", name)
	}
	p, err := decodePayload(name, raw)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Payload: p}, nil
}

func decodePayload(name EventName, raw []byte) (Payload, error) {
	empty := len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))

	var target Payload
	switch name {
	case EventListView:
		return ListViewPayload{}, nil
	case EventView:
		p := ViewPayload{}
		if !empty {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", name, err)
			}
		}
		target = p
	case EventCopy:
		p := CopyPayload{}
		if !empty {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", name, err)
			}
		}
		target = p
	case EventSearch:
		p := SearchPayload{}
		if !empty {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", name, err)
			}
		}
		target = p
	case EventFilterChange:
		p := FilterChangePayload{}
		if !empty {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", name, err)
			}
		}
		target = p
	case EventOutbound:
		p := OutboundClickPayload{}
		if !empty {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", name, err)
			}
		}
		target = p
	default:
		var kept json.RawMessage
		if !empty {
			kept = append(kept, raw...)
		}
		target = UnknownPayload{Name: name, Raw: kept}
	}
	return target, nil
}

// StoredEvent is one entry of the persisted usage log.
type StoredEvent struct {
	ID        string    `json:"id,omitempty"`
	Name      EventName `json:"name"`
	Payload   Payload   `json:"payload,omitempty"`
	Timestamp string    `json:"timestamp"`
}

type storedEventWire struct {
	ID        string          `json:"id,omitempty"`
	Name      EventName       `json:"name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// UnmarshalJSON picks the payload type from the event name.
func (e *StoredEvent) UnmarshalJSON(data []byte) error {
	var w storedEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Name == "" {
		return fmt.Errorf("stored event without name")
	}
	p, err := decodePayload(w.Name, w.Payload)
	if err != nil {
		return err
	}
	*e = StoredEvent{ID: w.ID, Name: w.Name, Payload: p, Timestamp: w.Timestamp}
	return nil
}

// Slug returns the prompt identifier carried by the payload, or "" when the
// event kind has none.
func (e StoredEvent) Slug() string {
	switch p := e.Payload.(type) {
	case ViewPayload:
		return p.Slug
	case CopyPayload:
		return p.Slug
	case OutboundClickPayload:
		return p.Slug
	}
	return ""
}

// Query returns the search query of a search event, or "".
func (e StoredEvent) Query() string {
	if p, ok := e.Payload.(SearchPayload); ok {
		return p.Query
	}
	return ""
}
