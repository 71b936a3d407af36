package artifact

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SaveFunc persists one artifact. The workbench engine passes a function
// that saves the files and updates the index.
type SaveFunc func(ctx context.Context, a *Artifact) error

// SaveResult reports the outcome of one debounced save.
type SaveResult struct {
	ID  string
	Err error
	At  time.Time
}

// AutoSaver coalesces rapid edits of the same artifact. Each Schedule
// restarts that id's timer; when the window elapses without another edit,
// the latest snapshot is saved and the outcome is sent on Results.
type AutoSaver struct {
	ctx    context.Context
	save   SaveFunc
	window time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	pending  map[string]*Artifact
	timers   map[string]*time.Timer
	results  chan SaveResult
	inflight sync.WaitGroup
	stopped  bool
}

// NewAutoSaver creates an AutoSaver. ctx is passed to every save.
func NewAutoSaver(ctx context.Context, save SaveFunc, window time.Duration, logger *slog.Logger) *AutoSaver {
	if window <= 0 {
		window = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoSaver{
		ctx:     ctx,
		save:    save,
		window:  window,
		logger:  logger,
		pending: make(map[string]*Artifact),
		timers:  make(map[string]*time.Timer),
		results: make(chan SaveResult, 64),
	}
}

// Schedule queues a snapshot of a for saving. Later edits to a do not
// affect the queued snapshot. Calls after Stop are ignored.
func (s *AutoSaver) Schedule(a *Artifact) {
	if a == nil || a.ID == "" {
		return
	}
	snapshot := a.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.pending[snapshot.ID] = snapshot
	if t, ok := s.timers[snapshot.ID]; ok {
		t.Stop()
	}
	id := snapshot.ID
	s.timers[id] = time.AfterFunc(s.window, func() { s.fire(id) })
}

// Pending returns the number of artifacts waiting for their window.
func (s *AutoSaver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Results returns the channel of save outcomes. It is closed by Stop.
// When nobody drains it, results beyond the buffer are dropped.
func (s *AutoSaver) Results() <-chan SaveResult {
	return s.results
}

// Flush saves everything pending immediately.
func (s *AutoSaver) Flush() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id, t := range s.timers {
		t.Stop()
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.fire(id)
	}
}

// Stop saves whatever is still pending, waits for in-flight saves and
// closes Results. Safe to call multiple times.
func (s *AutoSaver) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	remaining := s.pending
	for _, t := range s.timers {
		t.Stop()
	}
	s.pending = make(map[string]*Artifact)
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	for id, a := range remaining {
		s.saveNow(id, a)
	}

	s.inflight.Wait()
	close(s.results)
}

func (s *AutoSaver) fire(id string) {
	s.mu.Lock()
	a, ok := s.pending[id]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	delete(s.timers, id)
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	s.saveNow(id, a)
}

func (s *AutoSaver) saveNow(id string, a *Artifact) {
	err := s.save(s.ctx, a)
	if err != nil {
		s.logger.Warn("autosave_failed", slog.String("id", id), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("autosave_completed", slog.String("id", id))
	}

	select {
	case s.results <- SaveResult{ID: id, Err: err, At: time.Now()}:
	default:
		s.logger.Warn("autosave results full, dropping result", slog.String("id", id))
	}
}
