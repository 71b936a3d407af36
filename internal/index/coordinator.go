package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/artifact"
	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/links"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/store"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/watcher"
)

// DefaultMaxDocumentSize is the largest document HandleEvents will read.
// Larger files are skipped with a warning.
const DefaultMaxDocumentSize int64 = 32 * 1024 * 1024

// DefaultBatchSize is the number of documents parsed and written per
// rebuild transaction.
const DefaultBatchSize = 256

// State is the coordinator's rebuild state.
type State int32

const (
	// StateIdle means no rebuild is running.
	StateIdle State = iota
	// StateRebuilding means a full rebuild holds the writer lock.
	StateRebuilding
	// StateFailed means the last rebuild stopped on a fatal error. The next
	// rebuild leaves this state.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRebuilding:
		return "rebuilding"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProjectResolver returns the currently open project.
type ProjectResolver interface {
	Current() (*project.Project, error)
}

// DocumentLister enumerates document files for the open project.
type DocumentLister interface {
	DocumentPaths(ctx context.Context) ([]string, error)
}

// Config wires a Coordinator to its collaborators.
type Config struct {
	Projects  ProjectResolver
	Documents DocumentLister
	Index     store.Index
	Lock      *store.WriterLock

	// Status receives user-facing progress messages. Optional.
	Status project.StatusSink
	// Metrics is optional.
	Metrics *Metrics

	// Workers bounds parallel parsing during rebuild. Defaults to NumCPU.
	Workers int
	// BatchSize is the number of documents per rebuild transaction.
	BatchSize int
	// MaxDocumentSize caps files read by HandleEvents.
	MaxDocumentSize int64

	Logger *slog.Logger
}

// RebuildResult summarises a completed rebuild.
type RebuildResult struct {
	Artifacts int
	Links     int
	Skipped   int
	// SkippedPaths lists the documents that were not indexed, in path order.
	SkippedPaths []string
	Duration     time.Duration
}

// Message is the status line posted when a rebuild completes.
func (r RebuildResult) Message() string {
	return fmt.Sprintf("Index rebuilt: %d artifacts, %d links (%d skipped)", r.Artifacts, r.Links, r.Skipped)
}

// ProgressFunc is called after each rebuild batch with the number of
// documents processed so far and the total.
type ProgressFunc func(done, total int)

// Coordinator keeps the index in step with the documents on disk: full
// rebuilds, single-artifact updates and watcher events. Every mutation
// holds the project's writer lock.
type Coordinator struct {
	cfg    Config
	state  atomic.Int32
	logger *slog.Logger

	mu        sync.Mutex
	listeners []func()

	// documentIDs maps each indexed document path to the id inside it, so
	// a delete event for a file not named <id><ext> finds its row.
	docsMu      sync.Mutex
	documentIDs map[string]string
}

// NewCoordinator creates a coordinator in the idle state.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = DefaultMaxDocumentSize
	}
	if cfg.Status == nil {
		cfg.Status = project.Discard
	}
	if cfg.Lock == nil {
		cfg.Lock = store.NewWriterLock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{cfg: cfg, logger: cfg.Logger, documentIDs: make(map[string]string)}
}

// State returns the current rebuild state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// OnChange registers fn to run after every index mutation, including a
// rebuild that fails part way.
func (c *Coordinator) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Coordinator) notify() {
	c.mu.Lock()
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Rebuild discards the index and repopulates it from every document of the
// open project. Unreadable documents and documents without an id are
// skipped and counted; they never abort the rebuild.
//
// With no project open it posts a status message and returns a NotOpen
// error without touching the state.
func (c *Coordinator) Rebuild(ctx context.Context, progress ProgressFunc) (RebuildResult, error) {
	p, err := c.cfg.Projects.Current()
	if err != nil {
		c.logger.Warn("rebuild_no_project", slog.String("error", err.Error()))
		c.cfg.Status.Post("No project open; index not rebuilt")
		return RebuildResult{}, err
	}

	release, err := c.cfg.Lock.Acquire(ctx, p.WriterLockPath())
	if err != nil {
		return RebuildResult{}, err
	}
	defer release()

	c.state.Store(int32(StateRebuilding))
	c.logger.Info("rebuild_started", slog.String("root", p.Root))
	c.cfg.Status.Post("Rebuilding index...")

	start := time.Now()
	result, err := c.rebuild(ctx, p, progress)
	result.Duration = time.Since(start)
	c.cfg.Metrics.recordRebuild(result.Duration, result, err)

	if err != nil {
		c.state.Store(int32(StateFailed))
		c.logger.Error("rebuild_failed",
			slog.String("root", p.Root),
			slog.String("error", err.Error()))
		c.cfg.Status.Post("Index rebuild failed: " + wberrors.FormatForUser(err))
		// The index may already be cleared or partly written.
		c.notify()
		return result, err
	}

	c.state.Store(int32(StateIdle))
	c.logger.Info("rebuild_completed",
		slog.Int("artifacts", result.Artifacts),
		slog.Int("links", result.Links),
		slog.Int("skipped", result.Skipped),
		slog.Duration("duration", result.Duration))
	c.cfg.Status.Post(result.Message())
	c.notify()
	return result, nil
}

func (c *Coordinator) rebuild(ctx context.Context, p *project.Project, progress ProgressFunc) (RebuildResult, error) {
	var result RebuildResult

	if err := c.cfg.Index.Initialize(ctx, p.ConfigDir); err != nil {
		return result, err
	}
	if err := c.cfg.Index.Clear(ctx); err != nil {
		return result, err
	}
	ids := make(map[string]string)
	defer c.replaceDocumentIDs(ids)

	paths, err := c.cfg.Documents.DocumentPaths(ctx)
	if err != nil {
		return result, err
	}

	for start := 0; start < len(paths); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(paths))
		batch := paths[start:end]

		entries, err := c.parseBatch(ctx, batch)
		if err != nil {
			return result, err
		}

		valid := make([]store.Entry, 0, len(entries))
		for i, e := range entries {
			if e.Artifact == nil {
				result.SkippedPaths = append(result.SkippedPaths, batch[i])
				continue
			}
			valid = append(valid, e)
			ids[batch[i]] = e.Artifact.ID
		}
		if err := c.cfg.Index.ReplaceBatch(ctx, valid); err != nil {
			return result, err
		}

		if progress != nil {
			progress(end, len(paths))
		}
	}

	counts, err := c.cfg.Index.Counts(ctx)
	if err != nil {
		return result, err
	}
	result.Artifacts = counts.Artifacts
	result.Links = counts.Links
	result.Skipped = len(result.SkippedPaths)
	return result, nil
}

// parseBatch reads paths in parallel. The result is positional; a skipped
// document leaves a zero Entry at its index.
func (c *Coordinator) parseBatch(ctx context.Context, paths []string) ([]store.Entry, error) {
	entries := make([]store.Entry, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := artifact.ReadDocument(path)
			if err != nil {
				c.skip(path, err.Error())
				return nil
			}
			if a.ID == "" {
				c.skip(path, "missing id")
				return nil
			}
			entries[i] = store.Entry{Artifact: a, Targets: links.Targets(a.Fields)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Coordinator) skip(path, reason string) {
	c.cfg.Metrics.recordParseFailure()
	c.logger.Warn("artifact_parse_skipped",
		slog.String("path", path),
		slog.String("reason", reason))
}

// ready resolves the project, takes the writer lock and makes sure the
// index is open. Callers must call release.
func (c *Coordinator) ready(ctx context.Context) (p *project.Project, release func(), err error) {
	p, err = c.cfg.Projects.Current()
	if err != nil {
		return nil, nil, err
	}
	release, err = c.cfg.Lock.Acquire(ctx, p.WriterLockPath())
	if err != nil {
		return nil, nil, err
	}
	if err := c.cfg.Index.Initialize(ctx, p.ConfigDir); err != nil {
		release()
		return nil, nil, err
	}
	return p, release, nil
}

// UpsertOne indexes a and replaces its outgoing links without a rescan.
func (c *Coordinator) UpsertOne(ctx context.Context, a *artifact.Artifact) error {
	if a == nil || a.ID == "" {
		return wberrors.ValidationError("artifact id is required", nil)
	}

	_, release, err := c.ready(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := c.cfg.Index.ReplaceArtifact(ctx, a, links.Targets(a.Fields)); err != nil {
		return err
	}
	c.cfg.Metrics.recordIncremental("upsert")
	c.logger.Debug("artifact_indexed", slog.String("id", a.ID))
	c.notify()
	return nil
}

// DeleteOne removes id and its outgoing links. Links that point at id are
// kept.
func (c *Coordinator) DeleteOne(ctx context.Context, id string) error {
	if id == "" {
		return wberrors.ValidationError("artifact id is required", nil)
	}

	_, release, err := c.ready(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := c.cfg.Index.RemoveArtifact(ctx, id); err != nil {
		return err
	}
	c.cfg.Metrics.recordIncremental("delete")
	c.logger.Debug("artifact_unindexed", slog.String("id", id))
	c.notify()
	return nil
}

// HasBacklinks reports whether any indexed artifact links to id.
func (c *Coordinator) HasBacklinks(ctx context.Context, id string) (bool, error) {
	p, err := c.cfg.Projects.Current()
	if err != nil {
		return false, err
	}
	if err := c.cfg.Index.Initialize(ctx, p.ConfigDir); err != nil {
		return false, err
	}
	rows, err := c.cfg.Index.QueryBacklinks(ctx, id)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// HandleEvents applies a batch of document events from the watcher.
// Paths are relative to the artifacts directory. A failing event is logged
// and the rest of the batch continues.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	p, err := c.cfg.Projects.Current()
	if err != nil {
		return err
	}

	var processed int
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.handleEvent(ctx, p, event); err != nil {
			c.logger.Warn("file_event_failed",
				slog.String("path", event.Path),
				slog.String("operation", event.Operation.String()),
				slog.String("error", err.Error()))
			continue
		}
		processed++
	}

	c.logger.Debug("file_events_applied",
		slog.Int("events", len(events)),
		slog.Int("processed", processed))
	return nil
}

func (c *Coordinator) handleEvent(ctx context.Context, p *project.Project, event watcher.FileEvent) error {
	absPath := filepath.Join(p.ArtifactsDir, event.Path)

	if event.Operation == watcher.OpDelete {
		return c.removeDocument(ctx, absPath, p.Layout.DocumentExt)
	}

	// Lstat so symlinks are not followed.
	info, err := os.Lstat(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		// Gone again before we got to it.
		return c.removeDocument(ctx, absPath, p.Layout.DocumentExt)
	}
	if err != nil {
		return fmt.Errorf("failed to stat document: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		c.logger.Debug("skipping symlink", slog.String("path", event.Path))
		return nil
	}
	if info.Size() > c.cfg.MaxDocumentSize {
		c.logger.Warn("skipping oversized document",
			slog.String("path", event.Path),
			slog.Int64("size", info.Size()),
			slog.Int64("max", c.cfg.MaxDocumentSize))
		return nil
	}

	a, err := artifact.ReadDocument(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.removeDocument(ctx, absPath, p.Layout.DocumentExt)
		}
		c.skip(absPath, err.Error())
		return nil
	}
	if a.ID == "" {
		c.skip(absPath, "missing id")
		return nil
	}
	if err := c.UpsertOne(ctx, a); err != nil {
		return err
	}

	// The file now holds a different id: its old row has no document.
	if prev := c.rememberDocument(absPath, a.ID); prev != "" && prev != a.ID {
		return c.DeleteOne(ctx, prev)
	}
	return nil
}

// removeDocument unindexes the artifact last read from path. A path never
// indexed by this coordinator falls back to its file name as the id.
func (c *Coordinator) removeDocument(ctx context.Context, path, ext string) error {
	c.docsMu.Lock()
	id, ok := c.documentIDs[path]
	delete(c.documentIDs, path)
	c.docsMu.Unlock()

	if !ok {
		id = strings.TrimSuffix(filepath.Base(path), ext)
	}
	return c.DeleteOne(ctx, id)
}

// rememberDocument records id for path and returns the id it replaced.
func (c *Coordinator) rememberDocument(path, id string) string {
	c.docsMu.Lock()
	defer c.docsMu.Unlock()
	prev := c.documentIDs[path]
	c.documentIDs[path] = id
	return prev
}

func (c *Coordinator) replaceDocumentIDs(ids map[string]string) {
	c.docsMu.Lock()
	defer c.docsMu.Unlock()
	c.documentIDs = ids
}
