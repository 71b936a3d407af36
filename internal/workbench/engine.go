// Package workbench wires the artifact store, the index and the query
// service into one Engine bound to a single open project.
package workbench

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/artifact"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/async"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/config"
	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/index"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/query"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/store"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/watcher"
)

// Options configures an Engine. Every field is optional.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Status   project.StatusSink
	Registry *prometheus.Registry
}

// Engine is the composition root. It owns one project session and the
// components that operate on it.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry

	session *project.Session
	store   *artifact.Store
	index   *store.SQLiteIndex
	coord   *index.Coordinator
	query   *query.Service

	autosaver *artifact.AutoSaver
	cancel    context.CancelFunc

	mu      sync.Mutex
	indexer *async.BackgroundIndexer
	closed  bool
}

// New builds an Engine with no project open.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	status := opts.Status
	if status == nil {
		status = project.LogSink{Logger: logger}
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	session := project.NewSession(cfg.Layout)
	artifacts := artifact.NewStore(session, logger.With(slog.String("component", "artifact")))
	idx := store.NewSQLiteIndex(store.Options{
		IndexFile:     cfg.Layout.IndexFile,
		StatusField:   cfg.Index.StatusField,
		DefaultStatus: cfg.Index.DefaultStatus,
		SearchLimit:   cfg.Index.SearchLimit,
	}, logger.With(slog.String("component", "store")))
	coord := index.NewCoordinator(index.Config{
		Projects:  session,
		Documents: artifacts,
		Index:     idx,
		Lock:      store.NewWriterLock(),
		Status:    status,
		Metrics:   index.NewMetrics(registry),
		Workers:   cfg.Index.RebuildWorkers,
		BatchSize: cfg.Index.BatchSize,
		Logger:    logger.With(slog.String("component", "index")),
	})
	queries := query.NewService(idx, cfg.Index.CacheSize, logger.With(slog.String("component", "query")))
	coord.OnChange(queries.Invalidate)

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		session:  session,
		store:    artifacts,
		index:    idx,
		coord:    coord,
		query:    queries,
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.autosaver = artifact.NewAutoSaver(ctx, e.Save, cfg.AutoSaveDebounce(), logger.With(slog.String("component", "autosave")))
	return e
}

// Open makes root the current project and initializes its index. When the
// index file is missing or was corrupt, or an indexing.lock marker shows
// the last rebuild was interrupted, a background rebuild is started and
// returned; otherwise the returned indexer is nil.
func (e *Engine) Open(ctx context.Context, root string) (*async.BackgroundIndexer, error) {
	e.stopRebuild()

	p, err := e.session.Open(root)
	if err != nil {
		return nil, err
	}

	_, statErr := os.Stat(p.IndexPath)
	missing := errors.Is(statErr, os.ErrNotExist)
	interrupted := async.HasIncompleteLock(p.ConfigDir)

	if err := e.index.Initialize(ctx, p.ConfigDir); err != nil {
		return nil, err
	}
	e.query.Invalidate()
	recreated := e.index.Recreated()

	e.logger.Info("project_opened",
		slog.String("root", p.Root),
		slog.Bool("index_missing", missing),
		slog.Bool("index_recreated", recreated),
		slog.Bool("rebuild_interrupted", interrupted))

	if !missing && !recreated && !interrupted {
		return nil, nil
	}
	return e.RebuildAsync(ctx)
}

// Project returns the open project or a NotOpen error.
func (e *Engine) Project() (*project.Project, error) {
	return e.session.Current()
}

// Save writes a's files and updates its index row and links.
//
// A MirrorWrite failure still indexes the artifact, because the document
// is on disk; the mirror warning is returned unless indexing also failed.
func (e *Engine) Save(ctx context.Context, a *artifact.Artifact) error {
	saveErr := e.store.Save(ctx, a)
	if saveErr != nil && !errors.Is(saveErr, wberrors.ErrMirrorWrite) {
		return saveErr
	}
	if err := e.coord.UpsertOne(ctx, a); err != nil {
		return err
	}
	return saveErr
}

// Load reads the artifact with id from disk.
func (e *Engine) Load(ctx context.Context, id string) (*artifact.Artifact, error) {
	return e.store.Load(ctx, id)
}

// Delete removes id's files, its index row and its outgoing links. Links
// from other artifacts to id are left in place.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	return e.coord.DeleteOne(ctx, id)
}

// ScheduleSave queues a for a debounced save.
func (e *Engine) ScheduleSave(a *artifact.Artifact) {
	e.autosaver.Schedule(a)
}

// FlushSaves saves every scheduled artifact now.
func (e *Engine) FlushSaves() {
	e.autosaver.Flush()
}

// AutoSaveResults reports the outcome of debounced saves.
func (e *Engine) AutoSaveResults() <-chan artifact.SaveResult {
	return e.autosaver.Results()
}

// RebuildAsync starts a full rebuild in the background. Any rebuild this
// engine already started is stopped first.
//
// With no project open the coordinator posts its status message and the
// NotOpen error is returned with a nil indexer.
func (e *Engine) RebuildAsync(ctx context.Context) (*async.BackgroundIndexer, error) {
	p, err := e.session.Current()
	if err != nil {
		_, err = e.coord.Rebuild(ctx, nil)
		return nil, err
	}

	e.stopRebuild()

	b := async.NewBackgroundIndexer(async.IndexerConfig{ConfigDir: p.ConfigDir},
		func(ctx context.Context, progress *async.IndexProgress) (index.RebuildResult, error) {
			progress.SetStage(async.StageIndexing)
			return e.coord.Rebuild(ctx, progress.UpdateFiles)
		})

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, wberrors.InternalError("engine is closed", nil)
	}
	e.indexer = b
	e.mu.Unlock()

	b.Start(ctx)
	return b, nil
}

// Rebuild runs a full rebuild and waits for it.
func (e *Engine) Rebuild(ctx context.Context) (index.RebuildResult, error) {
	b, err := e.RebuildAsync(ctx)
	if err != nil {
		return index.RebuildResult{}, err
	}
	return b.Wait()
}

func (e *Engine) stopRebuild() {
	e.mu.Lock()
	b := e.indexer
	e.indexer = nil
	e.mu.Unlock()

	if b != nil {
		b.Stop()
	}
}

// State returns the coordinator's rebuild state.
func (e *Engine) State() index.State {
	return e.coord.State()
}

// Search returns at most the configured number of artifacts whose id or
// name contains term.
func (e *Engine) Search(ctx context.Context, term string) []store.Row {
	return e.query.Search(ctx, term)
}

// Backlinks returns the artifacts referencing id.
func (e *Engine) Backlinks(ctx context.Context, id string) []store.Row {
	return e.query.Backlinks(ctx, id)
}

// GroupedByStatus groups every indexed artifact by status.
func (e *Engine) GroupedByStatus(ctx context.Context) map[string][]store.Row {
	return e.query.GroupedByStatus(ctx)
}

// GroupedByType groups every indexed artifact by type code.
func (e *Engine) GroupedByType(ctx context.Context) map[string][]store.Row {
	return e.query.GroupedByType(ctx)
}

// HasBacklinks reports whether any artifact references id.
func (e *Engine) HasBacklinks(ctx context.Context, id string) (bool, error) {
	return e.coord.HasBacklinks(ctx, id)
}

// Counts returns the number of indexed artifacts and links.
func (e *Engine) Counts(ctx context.Context) (store.Counts, error) {
	return e.index.Counts(ctx)
}

// Watch keeps the index in step with edits made outside the engine until
// ctx is cancelled. It blocks; ready, if non-nil, is called once the
// watcher has its baseline.
func (e *Engine) Watch(ctx context.Context, ready func(watcherType string)) error {
	p, err := e.session.Current()
	if err != nil {
		return err
	}

	w, err := watcher.NewArtifactWatcher(watcher.Options{
		DebounceWindow: e.cfg.WatchDebounce(),
		PollInterval:   e.cfg.PollInterval(),
		Extension:      e.cfg.Layout.DocumentExt,
		Logger:         e.logger.With(slog.String("component", "watcher")),
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, p.ArtifactsDir) }()

	readyCh, events, errs := w.Ready(), w.Events(), w.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-startErr:
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		case <-readyCh:
			readyCh = nil
			e.logger.Info("watch_started",
				slog.String("root", p.ArtifactsDir),
				slog.String("watcher", w.WatcherType()))
			if ready != nil {
				ready(w.WatcherType())
			}
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.coord.HandleEvents(ctx, batch); err != nil && ctx.Err() == nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			e.logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// Registry returns the registry holding the engine's metrics.
func (e *Engine) Registry() *prometheus.Registry {
	return e.registry
}

// Close saves pending edits, stops any running rebuild and releases the
// index. The engine cannot be reused.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.autosaver.Stop()
	e.stopRebuild()
	e.cancel()

	err := e.index.Close()
	e.session.Close()
	return err
}
