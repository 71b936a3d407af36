package watcher

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Operation is the kind of change observed for a document.
type Operation int

const (
	// OpCreate indicates a new document appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing document was rewritten.
	OpModify
	// OpDelete indicates a document was removed or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change to a document.
type FileEvent struct {
	// Path is relative to the watched root, using the OS separator.
	Path string

	Operation Operation

	// Timestamp is when the change was detected.
	Timestamp time.Time
}

// Options configures an ArtifactWatcher.
type Options struct {
	// DebounceWindow is how long a path must stay quiet before its event is
	// emitted. Default: 300ms
	DebounceWindow time.Duration

	// PollInterval is the scan interval in polling mode. Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 100
	EventBufferSize int

	// Extension selects which files are documents. Default: ".json"
	Extension string

	// ForcePolling skips fsnotify.
	ForcePolling bool

	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  300 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 100,
		Extension:       ".json",
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if o.Extension == "" {
		o.Extension = defaults.Extension
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// isDocument reports whether relPath names a document file: the right
// extension, and no dot-prefixed element anywhere in the path.
func isDocument(relPath, ext string) bool {
	if relPath == "" || relPath == "." || filepath.Ext(relPath) != ext {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

// skipDir reports whether a directory below the root is left unwatched.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".")
}
