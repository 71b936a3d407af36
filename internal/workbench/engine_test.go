package workbench

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/artifact"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/async"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/config"
	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/logging"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/store"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingSink) Post(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message)
}

func (r *recordingSink) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func newEngine(t *testing.T, sink project.StatusSink) *Engine {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Watch.Debounce = "50ms"
	cfg.Watch.PollInterval = "100ms"
	cfg.AutoSave.Debounce = "20ms"
	e := New(Options{Config: cfg, Logger: logging.Discard(), Status: sink})
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func initProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	_, err := project.Init(root, "test", config.NewConfig().Layout)
	require.NoError(t, err)
	return root
}

// openProject opens root and waits for any rebuild Open schedules.
func openProject(t *testing.T, e *Engine, root string) {
	t.Helper()
	b, err := e.Open(context.Background(), root)
	require.NoError(t, err)
	if b != nil {
		_, err = b.Wait()
		require.NoError(t, err)
	}
}

func businessRule() *artifact.Artifact {
	return &artifact.Artifact{
		ID: "BR001", Name: "Loan limit", Type: "BR",
		Fields: map[string]any{"Rule": "Limit is 5x monthly income"},
	}
}

func useCase() *artifact.Artifact {
	return &artifact.Artifact{
		ID: "UC001", Name: "Submit request", Type: "UC",
		Fields: map[string]any{"Description": "Validates against @BR001"},
	}
}

func rowIDs(rows []store.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestEngine_Scenario(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	openProject(t, e, initProject(t))

	require.NoError(t, e.Save(ctx, businessRule()))
	require.NoError(t, e.Save(ctx, useCase()))

	assert.Equal(t, []string{"BR001"}, rowIDs(e.Search(ctx, "BR")))
	assert.Equal(t, []string{"BR001"}, rowIDs(e.Search(ctx, "@br")))
	assert.Equal(t, []string{"UC001"}, rowIDs(e.Backlinks(ctx, "BR001")))
	assert.ElementsMatch(t, []string{"BR001", "UC001"}, rowIDs(e.GroupedByStatus(ctx)["Draft"]))

	byType := e.GroupedByType(ctx)
	assert.Equal(t, []string{"BR001"}, rowIDs(byType["BR"]))
	assert.Equal(t, []string{"UC001"}, rowIDs(byType["UC"]))

	loaded, err := e.Load(ctx, "UC001")
	require.NoError(t, err)
	assert.Equal(t, useCase(), loaded)
}

func TestEngine_SearchSeesLaterSaves(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	openProject(t, e, initProject(t))

	assert.Empty(t, e.Search(ctx, "BR"))

	require.NoError(t, e.Save(ctx, businessRule()))
	assert.Equal(t, []string{"BR001"}, rowIDs(e.Search(ctx, "BR")), "cached result must be invalidated by a save")
}

func TestEngine_SaveIndexesDespiteMirrorFailure(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	root := initProject(t)
	openProject(t, e, root)

	// A directory where the mirror should go makes the mirror write fail.
	require.NoError(t, os.Mkdir(filepath.Join(root, "Artifacts", "BR001.md"), 0o755))

	err := e.Save(ctx, businessRule())
	require.Error(t, err)
	assert.ErrorIs(t, err, wberrors.ErrMirrorWrite)

	assert.FileExists(t, filepath.Join(root, "Artifacts", "BR001.json"))
	assert.Equal(t, []string{"BR001"}, rowIDs(e.Search(ctx, "BR001")))
}

func TestEngine_SaveRejectsEmptyID(t *testing.T) {
	e := newEngine(t, nil)
	openProject(t, e, initProject(t))

	err := e.Save(context.Background(), &artifact.Artifact{Name: "anonymous"})
	assert.ErrorIs(t, err, wberrors.ErrInvalidInput)
}

func TestEngine_DeleteKeepsIncomingLinks(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	root := initProject(t)
	openProject(t, e, root)

	require.NoError(t, e.Save(ctx, businessRule()))
	require.NoError(t, e.Save(ctx, useCase()))

	require.NoError(t, e.Delete(ctx, "BR001"))
	assert.NoFileExists(t, filepath.Join(root, "Artifacts", "BR001.json"))
	assert.NoFileExists(t, filepath.Join(root, "Artifacts", "BR001.md"))
	assert.Empty(t, e.Search(ctx, "BR"))

	has, err := e.HasBacklinks(ctx, "BR001")
	require.NoError(t, err)
	assert.True(t, has, "UC001 still references the deleted artifact")

	require.NoError(t, e.Delete(ctx, "UC001"))
	has, err = e.HasBacklinks(ctx, "BR001")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = e.Load(ctx, "UC001")
	assert.ErrorIs(t, err, wberrors.ErrNotFound)
}

func TestEngine_RebuildWithoutProject(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, sink)

	_, err := e.Rebuild(context.Background())
	assert.ErrorIs(t, err, wberrors.ErrNotOpen)
	assert.Equal(t, []string{"No project open; index not rebuilt"}, sink.messages())

	b, err := e.RebuildAsync(context.Background())
	assert.Nil(t, b)
	assert.ErrorIs(t, err, wberrors.ErrNotOpen)
}

func TestEngine_RebuildFromDisk(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	e := newEngine(t, sink)
	root := initProject(t)
	openProject(t, e, root)

	require.NoError(t, e.Save(ctx, businessRule()))
	require.NoError(t, e.Save(ctx, useCase()))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Artifacts", "broken.json"), []byte("{"), 0o644))

	b, err := e.RebuildAsync(ctx)
	require.NoError(t, err)
	result, err := b.Wait()
	require.NoError(t, err)

	assert.Equal(t, 2, result.Artifacts)
	assert.Equal(t, 1, result.Links)
	assert.Equal(t, 1, result.Skipped)
	assert.Contains(t, sink.messages(), "Index rebuilt: 2 artifacts, 1 links (1 skipped)")

	snap := b.Progress().Snapshot()
	assert.Equal(t, string(async.StatusReady), snap.Status)
	assert.Equal(t, 3, snap.FilesTotal)
	assert.Equal(t, 3, snap.FilesProcessed)

	assert.NoFileExists(t, filepath.Join(root, ".config", async.IndexingLockFile))
	assert.Equal(t, float64(2), counterValue(t, e, "baw_index_rebuilds_total"), "open and explicit rebuild")
}

func counterValue(t *testing.T, e *Engine, name string) float64 {
	t.Helper()
	families, err := e.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestEngine_RegistersIndexMetrics(t *testing.T) {
	e := newEngine(t, nil)
	openProject(t, e, initProject(t))

	count, err := testutil.GatherAndCount(e.Registry(), "baw_index_rebuilds_total", "baw_index_artifacts")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEngine_OpenRebuildsMissingIndex(t *testing.T) {
	ctx := context.Background()
	root := initProject(t)

	first := newEngine(t, nil)
	openProject(t, first, root)
	require.NoError(t, first.Save(ctx, businessRule()))
	require.NoError(t, first.Save(ctx, useCase()))
	require.NoError(t, first.Close())

	dbPath := filepath.Join(root, ".config", "index.db")
	require.NoError(t, os.Remove(dbPath))
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")

	second := newEngine(t, nil)
	b, err := second.Open(ctx, root)
	require.NoError(t, err)
	require.NotNil(t, b, "missing index schedules a rebuild")
	result, err := b.Wait()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Artifacts)
	assert.Equal(t, []string{"UC001"}, rowIDs(second.Backlinks(ctx, "BR001")))
}

func TestEngine_OpenRebuildsCorruptIndex(t *testing.T) {
	ctx := context.Background()
	root := initProject(t)

	first := newEngine(t, nil)
	openProject(t, first, root)
	require.NoError(t, first.Save(ctx, businessRule()))
	require.NoError(t, first.Save(ctx, useCase()))
	require.NoError(t, first.Close())

	dbPath := filepath.Join(root, ".config", "index.db")
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")
	require.NoError(t, os.WriteFile(dbPath, []byte("this is not an sqlite database, only text"), 0o644))

	second := newEngine(t, nil)
	b, err := second.Open(ctx, root)
	require.NoError(t, err)
	require.NotNil(t, b, "corrupt index schedules a rebuild")
	_, err = b.Wait()
	require.NoError(t, err)

	assert.Equal(t, []string{"BR001"}, rowIDs(second.Search(ctx, "BR")))
	referenced, err := second.HasBacklinks(ctx, "BR001")
	require.NoError(t, err)
	assert.True(t, referenced)
}

func TestEngine_OpenRecoversInterruptedRebuild(t *testing.T) {
	ctx := context.Background()
	root := initProject(t)

	first := newEngine(t, nil)
	openProject(t, first, root)
	require.NoError(t, first.Save(ctx, businessRule()))
	require.NoError(t, first.Close())

	marker := filepath.Join(root, ".config", async.IndexingLockFile)
	require.NoError(t, os.WriteFile(marker, []byte("interrupted"), 0o644))

	second := newEngine(t, nil)
	b, err := second.Open(ctx, root)
	require.NoError(t, err)
	require.NotNil(t, b)
	_, err = b.Wait()
	require.NoError(t, err)
	assert.NoFileExists(t, marker)

	third := newEngine(t, nil)
	b, err = third.Open(ctx, root)
	require.NoError(t, err)
	assert.Nil(t, b, "a healthy index is reused")
	assert.Equal(t, []string{"BR001"}, rowIDs(third.Search(ctx, "BR")))
}

func TestEngine_OpenMissingRoot(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.Open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, wberrors.ErrStorageIO)

	_, err = e.Project()
	assert.ErrorIs(t, err, wberrors.ErrNotOpen)
}

func TestEngine_AutoSave(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	openProject(t, e, initProject(t))

	br := businessRule()
	e.ScheduleSave(br)
	br.Name = "Edited"
	e.ScheduleSave(br)
	e.FlushSaves()

	select {
	case res := <-e.AutoSaveResults():
		assert.Equal(t, "BR001", res.ID)
		assert.NoError(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("no auto-save result")
	}

	rows := e.Search(ctx, "BR001")
	require.Len(t, rows, 1)
	assert.Equal(t, "Edited", rows[0].Name)
}

func TestEngine_WatchIndexesExternalEdits(t *testing.T) {
	e := newEngine(t, nil)
	root := initProject(t)
	openProject(t, e, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- e.Watch(ctx, func(kind string) { ready <- kind }) }()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}

	doc := `{"id":"BR009","name":"External","artifactType":"BR","fields":{"Trạng thái":"Done"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "Artifacts", "BR009.json"), []byte(doc), 0o644))

	require.Eventually(t, func() bool {
		return len(e.GroupedByStatus(context.Background())["Done"]) == 1
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "Artifacts", "BR009.json")))
	require.Eventually(t, func() bool {
		return len(e.GroupedByStatus(context.Background())["Done"]) == 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestEngine_WatchWithoutProject(t *testing.T) {
	e := newEngine(t, nil)
	err := e.Watch(context.Background(), nil)
	assert.ErrorIs(t, err, wberrors.ErrNotOpen)
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	e := newEngine(t, nil)
	openProject(t, e, initProject(t))

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.RebuildAsync(context.Background())
	assert.ErrorIs(t, err, wberrors.ErrNotOpen)
}
