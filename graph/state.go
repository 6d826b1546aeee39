package graph

import (
	"encoding/json"
	"maps"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// State represents the mutable data that flows through the graph.
// It is implemented as a map of string keys to arbitrary values and is
// exclusively owned by the run it is passed to.
type State map[string]any

// Clone performs a shallow copy using maps.Clone so callers can mutate without
// affecting the original map (nested references are shared intentionally).
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return State(maps.Clone(map[string]any(s)))
}

// Require reports the first key that is absent from the state.
func (s State) Require(keys ...string) error {
	for _, key := range keys {
		if _, ok := s[key]; !ok {
			return &MissingFieldError{Key: key}
		}
	}
	return nil
}

// Get returns the value stored under key converted to T.
// Absent keys, and keys holding nil or JSON null, are reported as
// *MissingFieldError rather than a zero value.
// Values that are not already a T (for example a map decoded from JSON) are
// converted through a JSON round-trip. A string holding JSON text, such as a
// model response, is decoded directly and repaired first if it is malformed.
func Get[T any](s State, key string) (T, error) {
	var zero T
	value, ok := s[key]
	if !ok || value == nil {
		return zero, &MissingFieldError{Key: key}
	}
	if v, ok := value.(T); ok {
		return v, nil
	}
	if v, ok := value.(*T); ok && v != nil {
		return *v, nil
	}
	if text, ok := value.(string); ok {
		return decodeText[T](key, text)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return zero, &FieldTypeError{Key: key, Value: value, Err: err}
	}
	// typed nil pointers and maps
	if string(b) == "null" {
		return zero, &MissingFieldError{Key: key}
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, &FieldTypeError{Key: key, Value: value, Err: err}
	}
	return out, nil
}

func decodeText[T any](key, text string) (T, error) {
	var out T
	if strings.TrimSpace(text) == "null" {
		return out, &MissingFieldError{Key: key}
	}
	err := json.Unmarshal([]byte(text), &out)
	if err == nil {
		return out, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(text)
	if repairErr != nil {
		return out, &FieldTypeError{Key: key, Value: text, Err: err}
	}
	out = *new(T)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return out, &FieldTypeError{Key: key, Value: text, Err: err}
	}
	return out, nil
}
