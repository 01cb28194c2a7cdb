package models

import (
	"encoding/json"
)

// Reference points at an entity that may or may not have been loaded.
// Callers must go through Get to reach the value, so an unresolved id can
// never be mistaken for the entity itself.
type Reference[T any] struct {
	id    string
	value *T
}

// Unresolved returns a reference carrying only the id
func Unresolved[T any](id string) Reference[T] {
	return Reference[T]{id: id}
}

// Resolved returns a reference carrying the loaded value
func Resolved[T any](id string, value T) Reference[T] {
	return Reference[T]{id: id, value: &value}
}

// ID returns the referenced id
func (r Reference[T]) ID() string { return r.id }

// IsZero reports whether the reference points at nothing
func (r Reference[T]) IsZero() bool { return r.id == "" }

// IsResolved reports whether the value was loaded
func (r Reference[T]) IsResolved() bool { return r.value != nil }

// Get returns the loaded value and true, or the zero value and false
func (r Reference[T]) Get() (T, bool) {
	if r.value == nil {
		var zero T
		return zero, false
	}
	return *r.value, true
}

// MarshalJSON renders the value when resolved, {"id": ...} otherwise
func (r Reference[T]) MarshalJSON() ([]byte, error) {
	if r.id == "" {
		return []byte("null"), nil
	}
	if r.value != nil {
		return json.Marshal(r.value)
	}
	return json.Marshal(map[string]string{"id": r.id})
}

// MeetingView is a meeting with its counselor reference
type MeetingView struct {
	*Meeting
	Counselor Reference[CounselorProfile] `json:"counselor"`
}
