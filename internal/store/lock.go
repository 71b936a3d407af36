package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
)

const lockRetryDelay = 50 * time.Millisecond

// WriterLock serialises index mutations. It combines an in-process
// semaphore with an exclusive lock on a file, so a rebuild in one process
// and an incremental update in another never interleave.
type WriterLock struct {
	sem chan struct{}
}

// NewWriterLock creates an unlocked WriterLock.
func NewWriterLock() *WriterLock {
	return &WriterLock{sem: make(chan struct{}, 1)}
}

// Acquire blocks until both the in-process slot and the file lock at path
// are held, or ctx is done. On timeout it returns a retryable IndexLocked
// error. The returned release func is idempotent.
func (l *WriterLock) Acquire(ctx context.Context, path string) (release func(), err error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, lockedError(path, ctx.Err())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		<-l.sem
		return nil, wberrors.StorageError("failed to create lock directory", err).WithDetail("path", path)
	}

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		<-l.sem
		if err == nil {
			err = errors.New("lock not acquired")
		}
		if ctx.Err() != nil {
			return nil, lockedError(path, err)
		}
		return nil, wberrors.StorageError("failed to acquire index lock", err).WithDetail("path", path)
	}

	return l.releaser(fl), nil
}

// TryAcquire is Acquire without waiting: it fails immediately with an
// IndexLocked error when another writer holds the lock.
func (l *WriterLock) TryAcquire(path string) (release func(), err error) {
	select {
	case l.sem <- struct{}{}:
	default:
		return nil, lockedError(path, nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		<-l.sem
		return nil, wberrors.StorageError("failed to create lock directory", err).WithDetail("path", path)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		<-l.sem
		return nil, wberrors.StorageError("failed to acquire index lock", err).WithDetail("path", path)
	}
	if !locked {
		<-l.sem
		return nil, lockedError(path, nil)
	}
	return l.releaser(fl), nil
}

func (l *WriterLock) releaser(fl *flock.Flock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = fl.Unlock()
			<-l.sem
		})
	}
}

func lockedError(path string, cause error) error {
	return wberrors.New(wberrors.ErrCodeIndexLocked, fmt.Sprintf("index is locked by another writer: %s", path), cause).
		WithDetail("path", path).
		WithSuggestion("Wait for the running rebuild to finish and retry")
}
