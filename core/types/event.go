package types

import "strings"

// Event is a typed attribute record. Venues and the wrapping adapter report
// completions as events, and the router emits its own lifecycle events in the
// same shape.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attribute returns the named attribute with surrounding whitespace removed.
// The second return reports whether the attribute was present.
func (e *Event) Attribute(key string) (string, bool) {
	if e == nil || len(e.Attributes) == 0 {
		return "", false
	}
	value, ok := e.Attributes[key]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := &Event{Type: e.Type}
	if len(e.Attributes) > 0 {
		clone.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			clone.Attributes[k] = v
		}
	}
	return clone
}
