package artifact

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// RenderMirror renders the human-readable Markdown mirror of a: a heading
// with id and name, the type, then one section per field in name order.
func RenderMirror(a *Artifact) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s: %s\n\n", a.ID, a.Name)
	if a.Type != "" {
		fmt.Fprintf(&b, "**Type:** %s\n", a.Type)
	}

	for _, name := range slices.Sorted(maps.Keys(a.Fields)) {
		fmt.Fprintf(&b, "\n## %s\n\n", name)
		writeValue(&b, a.Fields[name])
	}

	return []byte(b.String())
}

func writeValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("_(empty)_\n")
	case []any:
		if len(t) == 0 {
			b.WriteString("_(empty)_\n")
			return
		}
		for i, item := range t {
			fmt.Fprintf(b, "%d. %s\n", i+1, inline(item))
		}
	case map[string]any:
		if len(t) == 0 {
			b.WriteString("_(empty)_\n")
			return
		}
		for _, k := range slices.Sorted(maps.Keys(t)) {
			fmt.Fprintf(b, "- **%s:** %s\n", k, inline(t[k]))
		}
	default:
		b.WriteString(inline(v))
		b.WriteString("\n")
	}
}

// inline renders a value on one line. Flow steps such as
// {"actor": "User", "action": "Submit"} read as "action: Submit; actor: User".
func inline(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case map[string]any:
		parts := make([]string, 0, len(t))
		for _, k := range slices.Sorted(maps.Keys(t)) {
			parts = append(parts, k+": "+inline(t[k]))
		}
		return strings.Join(parts, "; ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, inline(item))
		}
		return strings.Join(parts, ", ")
	case bool, json.Number:
		return fmt.Sprint(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
