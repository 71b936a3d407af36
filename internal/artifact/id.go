package artifact

import (
	"strings"

	"github.com/google/uuid"

	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
)

// NewID returns "<prefix>-<8 hex>", for example "UC-3f9a1c2e". An empty
// prefix yields just the hex suffix.
func NewID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return suffix
	}
	return prefix + "-" + suffix
}

// ValidateID rejects ids that are empty or could escape the artifacts
// directory once used as a file name.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return wberrors.ValidationError("artifact id is required", nil)
	case strings.ContainsAny(id, `/\`), strings.Contains(id, ".."), strings.ContainsRune(id, 0):
		return wberrors.ValidationError("artifact id contains path characters", nil).
			WithDetail("id", id)
	case strings.HasPrefix(id, "."):
		return wberrors.ValidationError("artifact id must not start with '.'", nil).
			WithDetail("id", id)
	}
	return nil
}
