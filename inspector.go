package evproc

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
	"github.com/tidwall/match"
)

// ErrInvalidJSON is returned when the input is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Inspector examines raw bytes and returns a View for field queries.
// Different inspectors handle different formats (JSON, protobuf, etc.).
type Inspector interface {
	Inspect(raw []byte) (View, error)
}

// View provides format-agnostic field access for predicate matching.
type View interface {
	// HasField returns true if the path exists in the event.
	HasField(path string) bool

	// GetString returns the string value at path, or false if not found
	// or not a string.
	GetString(path string) (string, bool)

	// GetBytes returns the raw bytes at path, or false if not found.
	// For JSON, this returns the raw JSON value (including quotes for strings).
	GetBytes(path string) ([]byte, bool)
}

// JSONInspector returns an Inspector that uses gjson for field access.
// Paths use gjson syntax ("detail.user.id", "items.#", "tags.0").
func JSONInspector() Inspector {
	return jsonInspector{}
}

type jsonInspector struct{}

func (jsonInspector) Inspect(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return jsonView{raw: raw}, nil
}

type jsonView struct {
	raw []byte
}

func (v jsonView) HasField(path string) bool {
	return gjson.GetBytes(v.raw, path).Exists()
}

func (v jsonView) GetString(path string) (string, bool) {
	r := gjson.GetBytes(v.raw, path)
	if !r.Exists() {
		return "", false
	}
	if r.Type != gjson.String {
		return "", false
	}
	return r.String(), true
}

func (v jsonView) GetBytes(path string) ([]byte, bool) {
	r := gjson.GetBytes(v.raw, path)
	if !r.Exists() {
		return nil, false
	}
	return []byte(r.Raw), true
}

// Fields returns a Predicate over raw events that inspects each event with
// insp and hands the resulting View to fn. Events the inspector rejects
// never match.
//
// Example:
//
//	hasOrder := evproc.Fields(evproc.JSONInspector(), func(v evproc.View) bool {
//	    return v.HasField("detail.orderId")
//	})
func Fields(insp Inspector, fn func(View) bool) Predicate[json.RawMessage] {
	return func(raw json.RawMessage) bool {
		v, err := insp.Inspect(raw)
		if err != nil {
			return false
		}
		return fn(v)
	}
}

// HasFields returns a Predicate that matches JSON events in which all
// paths exist.
func HasFields(paths ...string) Predicate[json.RawMessage] {
	return Fields(JSONInspector(), func(v View) bool {
		for _, p := range paths {
			if !v.HasField(p) {
				return false
			}
		}
		return true
	})
}

// FieldEquals returns a Predicate that matches JSON events whose path
// exists and equals the given string value.
func FieldEquals(path, value string) Predicate[json.RawMessage] {
	return Fields(JSONInspector(), func(v View) bool {
		s, ok := v.GetString(path)
		return ok && s == value
	})
}

// FieldIn returns a Predicate that matches JSON events whose string value at
// path is one of values.
func FieldIn(path string, values ...string) Predicate[json.RawMessage] {
	set := make(map[string]struct{}, len(values))
	for _, val := range values {
		set[val] = struct{}{}
	}
	return Fields(JSONInspector(), func(v View) bool {
		s, ok := v.GetString(path)
		if !ok {
			return false
		}
		_, found := set[s]
		return found
	})
}

// FieldMatches returns a Predicate that matches JSON events whose string
// value at path matches a wildcard pattern. '*' matches any run of
// characters and '?' matches exactly one.
//
// Example:
//
//	evproc.FieldMatches("detail-type", "Order*")
func FieldMatches(path, pattern string) Predicate[json.RawMessage] {
	return Fields(JSONInspector(), func(v View) bool {
		s, ok := v.GetString(path)
		return ok && match.Match(s, pattern)
	})
}
