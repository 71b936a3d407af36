package artifact

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/logging"
)

type recordingSaver struct {
	mu    sync.Mutex
	saved []*Artifact
	err   error
}

func (r *recordingSaver) save(_ context.Context, a *Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, a)
	return r.err
}

func (r *recordingSaver) snapshot() []*Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Artifact(nil), r.saved...)
}

func TestAutoSaver_CoalescesEdits(t *testing.T) {
	// Given: an auto-saver with a short window
	rec := &recordingSaver{}
	s := NewAutoSaver(context.Background(), rec.save, 50*time.Millisecond, logging.Discard())
	defer s.Stop()

	// When: the same artifact is edited several times in quick succession
	a := sampleUseCase()
	for _, name := range []string{"v1", "v2", "v3"} {
		a.Name = name
		s.Schedule(a)
	}

	// Then: exactly one save with the last snapshot
	select {
	case res := <-s.Results():
		assert.Equal(t, "UC001", res.ID)
		assert.NoError(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for autosave")
	}
	saved := rec.snapshot()
	require.Len(t, saved, 1)
	assert.Equal(t, "v3", saved[0].Name)
	assert.Equal(t, 0, s.Pending())
}

func TestAutoSaver_SnapshotIsolatedFromLaterEdits(t *testing.T) {
	rec := &recordingSaver{}
	s := NewAutoSaver(context.Background(), rec.save, time.Hour, logging.Discard())

	a := sampleUseCase()
	s.Schedule(a)
	a.Name = "edited after schedule"
	s.Stop()

	saved := rec.snapshot()
	require.Len(t, saved, 1)
	assert.Equal(t, "Submit request", saved[0].Name)
}

func TestAutoSaver_SeparateIDsSaveSeparately(t *testing.T) {
	rec := &recordingSaver{}
	s := NewAutoSaver(context.Background(), rec.save, time.Hour, logging.Discard())

	s.Schedule(&Artifact{ID: "BR001"})
	s.Schedule(&Artifact{ID: "UC001"})
	s.Schedule(&Artifact{ID: ""})
	s.Schedule(nil)
	assert.Equal(t, 2, s.Pending())

	s.Flush()

	assert.Len(t, rec.snapshot(), 2)
	assert.Equal(t, 0, s.Pending())
	s.Stop()
}

func TestAutoSaver_ReportsErrors(t *testing.T) {
	rec := &recordingSaver{err: errors.New("disk full")}
	s := NewAutoSaver(context.Background(), rec.save, time.Hour, logging.Discard())

	s.Schedule(&Artifact{ID: "UC001"})
	s.Stop()

	var results []SaveResult
	for r := range s.Results() {
		results = append(results, r)
	}
	require.Len(t, results, 1)
	assert.EqualError(t, results[0].Err, "disk full")
}

func TestAutoSaver_StopIsIdempotentAndIgnoresLateSchedules(t *testing.T) {
	rec := &recordingSaver{}
	s := NewAutoSaver(context.Background(), rec.save, 10*time.Millisecond, logging.Discard())

	s.Stop()
	s.Stop()
	s.Schedule(&Artifact{ID: "UC001"})
	time.Sleep(30 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
	_, open := <-s.Results()
	assert.False(t, open)
}
