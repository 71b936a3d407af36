package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/index"
)

// IndexingLockFile marks a rebuild in progress. A marker left behind means
// the last rebuild was interrupted.
const IndexingLockFile = "indexing.lock"

// RebuildFunc performs the rebuild, reporting into progress.
type RebuildFunc func(ctx context.Context, progress *IndexProgress) (index.RebuildResult, error)

// IndexerConfig configures a BackgroundIndexer.
type IndexerConfig struct {
	// ConfigDir holds the indexing.lock marker.
	ConfigDir string
}

// BackgroundIndexer runs one rebuild in a background goroutine. It is
// single-use: create a new one for each rebuild.
type BackgroundIndexer struct {
	config   IndexerConfig
	progress *IndexProgress

	// Rebuild is the work to run. Required before Start.
	Rebuild RebuildFunc

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	mu      sync.Mutex
	started bool
	running bool
	result  index.RebuildResult
	err     error
}

// NewBackgroundIndexer creates an indexer that runs rebuild.
func NewBackgroundIndexer(cfg IndexerConfig, rebuild RebuildFunc) *BackgroundIndexer {
	return &BackgroundIndexer{
		config:   cfg,
		progress: NewIndexProgress(),
		Rebuild:  rebuild,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker for this rebuild.
func (b *BackgroundIndexer) Progress() *IndexProgress {
	return b.progress
}

// IsRunning reports whether the rebuild goroutine is active.
func (b *BackgroundIndexer) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start launches the rebuild and returns immediately. Later calls are
// no-ops.
func (b *BackgroundIndexer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundIndexer) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	lockPath := filepath.Join(b.config.ConfigDir, IndexingLockFile)
	if err := os.MkdirAll(b.config.ConfigDir, 0o755); err != nil {
		b.fail(err)
		return
	}
	if err := os.WriteFile(lockPath, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		b.fail(err)
		return
	}

	var (
		result index.RebuildResult
		err    error
	)
	if b.Rebuild != nil {
		result, err = b.Rebuild(ctx, b.progress)
	}

	b.mu.Lock()
	b.result = result
	b.mu.Unlock()

	if err != nil {
		// The marker stays when the rebuild was interrupted so the next
		// open schedules another one.
		if ctx.Err() == nil {
			_ = os.Remove(lockPath)
		}
		b.fail(err)
		return
	}

	_ = os.Remove(lockPath)
	b.progress.SetResult(result.Artifacts, result.Links, result.Skipped)
	b.progress.SetReady()
}

func (b *BackgroundIndexer) fail(err error) {
	b.progress.SetError(err.Error())
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Stop cancels the rebuild and waits for it to finish. Safe to call more
// than once, or before Start.
func (b *BackgroundIndexer) Stop() {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()

	b.stopOnce.Do(func() { close(b.stopCh) })
	if started {
		<-b.doneCh
	}
}

// Done is closed when the rebuild finishes.
func (b *BackgroundIndexer) Done() <-chan struct{} {
	return b.doneCh
}

// Wait blocks until the rebuild finishes and returns its result.
func (b *BackgroundIndexer) Wait() (index.RebuildResult, error) {
	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result, b.err
}

// HasIncompleteLock reports whether configDir holds an indexing.lock left by
// an interrupted rebuild.
func HasIncompleteLock(configDir string) bool {
	_, err := os.Stat(filepath.Join(configDir, IndexingLockFile))
	return err == nil
}
