// Package links finds cross-references between artifacts. A reference is
// written as "@" followed by an artifact id, e.g. "See @BR001".
package links

import (
	"iter"
	"maps"
	"regexp"
	"slices"
)

var refPattern = regexp.MustCompile(`@([A-Za-z0-9_-]+)`)

// Extract returns the ids referenced from fields, in scan order and with
// duplicates kept. The value tree is walked explicitly: map entries in key
// order, list items in order. Only string values are scanned; keys,
// numbers and booleans never produce references.
//
// The sequence is lazy and can be ranged over more than once.
func Extract(fields map[string]any) iter.Seq[string] {
	return func(yield func(string) bool) {
		walk(fields, yield)
	}
}

// FromText returns the ids referenced in a single string.
func FromText(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		scan(text, yield)
	}
}

// Targets collects Extract into a slice with duplicates removed, keeping
// first-seen order.
func Targets(fields map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	for id := range Extract(fields) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// walk reports false once yield asks to stop.
func walk(v any, yield func(string) bool) bool {
	switch t := v.(type) {
	case string:
		return scan(t, yield)
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if !walk(t[k], yield) {
				return false
			}
		}
	case []any:
		for _, item := range t {
			if !walk(item, yield) {
				return false
			}
		}
	case []string:
		for _, item := range t {
			if !scan(item, yield) {
				return false
			}
		}
	}
	return true
}

func scan(s string, yield func(string) bool) bool {
	for _, m := range refPattern.FindAllStringSubmatch(s, -1) {
		if !yield(m[1]) {
			return false
		}
	}
	return true
}
