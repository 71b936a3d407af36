package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/logging"
)

func startWatcher(t *testing.T, opts Options, root string) *ArtifactWatcher {
	t.Helper()
	opts.Logger = logging.Discard()
	w, err := NewArtifactWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx, root)
	}()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
		<-done
	})

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}
	return w
}

// collect records the first operation per path until want paths have been
// seen or the timeout hits.
func collect(t *testing.T, w *ArtifactWatcher, want int, timeout time.Duration) map[string]Operation {
	t.Helper()
	got := make(map[string]Operation)
	deadline := time.After(timeout)
	for len(got) < want {
		select {
		case batch, ok := <-w.Events():
			if !ok {
				return got
			}
			for _, ev := range batch {
				if _, seen := got[ev.Path]; !seen {
					got[ev.Path] = ev.Operation
				}
			}
		case <-deadline:
			return got
		}
	}
	return got
}

func TestArtifactWatcher_FsnotifyReportsDocumentsOnly(t *testing.T) {
	// Given
	root := t.TempDir()
	w := startWatcher(t, Options{DebounceWindow: 50 * time.Millisecond}, root)
	if w.WatcherType() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}

	// When: a document, its mirror and a temp file appear
	require.NoError(t, os.WriteFile(filepath.Join(root, "UC001.md"), []byte("# UC001"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".UC001.json.99.tmp"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "UC001.json"), []byte(`{"id":"UC001"}`), 0o644))

	// Then: only the document is reported
	got := collect(t, w, 1, 3*time.Second)
	assert.Equal(t, map[string]Operation{"UC001.json": OpCreate}, got)
}

func TestArtifactWatcher_FsnotifyDeleteAndSubdirectory(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "BR001.json")
	require.NoError(t, os.WriteFile(existing, []byte(`{"id":"BR001"}`), 0o644))

	w := startWatcher(t, Options{DebounceWindow: 50 * time.Millisecond}, root)
	if w.WatcherType() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}

	require.NoError(t, os.Remove(existing))
	got := collect(t, w, 1, 3*time.Second)
	assert.Equal(t, OpDelete, got["BR001.json"])

	sub := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "UC002.json"), []byte(`{}`), 0o644))

	got = collect(t, w, 1, 3*time.Second)
	assert.Contains(t, got, filepath.Join("nested", "UC002.json"))
}

func TestArtifactWatcher_PollingFallback(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "BR001.json")
	require.NoError(t, os.WriteFile(keep, []byte(`{"id":"BR001"}`), 0o644))

	w := startWatcher(t, Options{
		DebounceWindow: 20 * time.Millisecond,
		PollInterval:   30 * time.Millisecond,
		ForcePolling:   true,
	}, root)
	assert.Equal(t, "polling", w.WatcherType())

	require.NoError(t, os.WriteFile(filepath.Join(root, "UC001.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "UC001.md"), []byte(`#`), 0o644))
	require.NoError(t, os.Remove(keep))

	got := collect(t, w, 2, 3*time.Second)
	assert.Equal(t, map[string]Operation{
		"UC001.json": OpCreate,
		"BR001.json": OpDelete,
	}, got)
}

func TestArtifactWatcher_StartRejectsMissingRoot(t *testing.T) {
	w, err := NewArtifactWatcher(Options{Logger: logging.Discard()})
	require.NoError(t, err)
	defer w.Stop()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestArtifactWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewArtifactWatcher(Options{ForcePolling: true, Logger: logging.Discard()})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}
