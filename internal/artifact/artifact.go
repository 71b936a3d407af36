// Package artifact persists workbench artifacts as a JSON document plus a
// Markdown mirror, one pair of files per artifact id.
package artifact

import (
	"fmt"
	"maps"
	"slices"
)

// Artifact is a requirement, use case, task or any other typed record.
// Fields is opaque user data: strings, numbers, booleans, or nested lists
// and maps as decoded from JSON.
type Artifact struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Type   string         `json:"artifactType"`
	Fields map[string]any `json:"fields"`
}

// Status returns the value of field as a string, or def when the field is
// absent, null or blank.
func (a *Artifact) Status(field, def string) string {
	v, ok := a.Fields[field]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if s == "" {
		return def
	}
	return s
}

// Clone returns a deep copy, so callers can keep editing the original
// while a copy is queued for saving.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	if a.Fields != nil {
		c.Fields = cloneValue(a.Fields).(map[string]any)
	}
	return &c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

// SetField sets a single field, allocating Fields if needed.
func (a *Artifact) SetField(name string, value any) {
	if a.Fields == nil {
		a.Fields = make(map[string]any)
	}
	a.Fields[name] = value
}

// FieldNames returns the field names in no particular order.
func (a *Artifact) FieldNames() []string {
	return slices.Collect(maps.Keys(a.Fields))
}
