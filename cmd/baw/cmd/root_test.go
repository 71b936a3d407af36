package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/store"
)

// isolate keeps logs and user config out of the real home directory.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	_, err := execute(t, "init", root, "--name", "Loans")
	require.NoError(t, err)
	return root
}

func searchIDs(t *testing.T, root, term string) []string {
	t.Helper()
	out, err := execute(t, "-p", root, "search", term, "--format", "json")
	require.NoError(t, err)

	var rows []store.Row
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"init", "new", "show", "rm", "rebuild", "search", "backlinks", "board", "watch", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestInitCmd_CreatesLayout(t *testing.T) {
	isolate(t)
	root := t.TempDir()

	out, err := execute(t, "init", root, "--name", "Loans")
	require.NoError(t, err)

	assert.Contains(t, out, `Initialized project "Loans"`)
	assert.DirExists(t, filepath.Join(root, "Artifacts"))
	assert.FileExists(t, filepath.Join(root, ".config", "project.json"))
	assert.FileExists(t, filepath.Join(root, ".config", "workbench.yaml"))

	// Running it again keeps the original name.
	out, err = execute(t, "init", root, "--name", "Other")
	require.NoError(t, err)
	assert.Contains(t, out, `Initialized project "Loans"`)
}

func TestCLI_Workflow(t *testing.T) {
	isolate(t)
	root := newProject(t)

	out, err := execute(t, "-p", root, "new", "BR", "--id", "BR001", "--name", "Loan limit",
		"--field", "Rule=Limit is 5x monthly income")
	require.NoError(t, err)
	assert.Contains(t, out, "Created BR001")

	_, err = execute(t, "-p", root, "new", "UC", "--id", "UC001", "--name", "Submit request",
		"--field", "Description=Validates against @BR001")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "Artifacts", "BR001.json"))
	assert.FileExists(t, filepath.Join(root, "Artifacts", "UC001.md"))

	assert.Equal(t, []string{"BR001"}, searchIDs(t, root, "BR"))
	assert.Equal(t, []string{"UC001"}, searchIDs(t, root, "@submit"))

	out, err = execute(t, "-p", root, "backlinks", "BR001")
	require.NoError(t, err)
	assert.Contains(t, out, "UC001")
	assert.Contains(t, out, "Submit request")

	out, err = execute(t, "-p", root, "board")
	require.NoError(t, err)
	assert.Contains(t, out, "Draft (2)")

	out, err = execute(t, "-p", root, "board", "--by", "type")
	require.NoError(t, err)
	assert.Contains(t, out, "BR (1)")
	assert.Contains(t, out, "UC (1)")

	out, err = execute(t, "-p", root, "show", "UC001", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "# UC001: Submit request")
	assert.Contains(t, out, "Validates against @BR001")

	out, err = execute(t, "-p", root, "show", "BR001")
	require.NoError(t, err)
	assert.Contains(t, out, "Loan limit")
	assert.Contains(t, out, "Referenced by")
	assert.Contains(t, out, "UC001")
}

func TestRmCmd_RefusesReferencedArtifact(t *testing.T) {
	isolate(t)
	root := newProject(t)

	_, err := execute(t, "-p", root, "new", "BR", "--id", "BR001", "--name", "Loan limit")
	require.NoError(t, err)
	_, err = execute(t, "-p", root, "new", "UC", "--id", "UC001", "--name", "Submit request",
		"--field", "Description=Validates against @BR001")
	require.NoError(t, err)

	out, err := execute(t, "-p", root, "rm", "BR001")
	require.Error(t, err)
	assert.ErrorIs(t, err, wberrors.ErrInvalidInput)
	assert.Contains(t, out, "UC001")
	assert.FileExists(t, filepath.Join(root, "Artifacts", "BR001.json"))

	out, err = execute(t, "-p", root, "rm", "BR001", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted BR001")
	assert.NoFileExists(t, filepath.Join(root, "Artifacts", "BR001.json"))
	assert.Empty(t, searchIDs(t, root, "BR"))

	// The dangling reference from UC001 survives.
	out, err = execute(t, "-p", root, "backlinks", "BR001")
	require.NoError(t, err)
	assert.Contains(t, out, "UC001")
}

func TestRebuildCmd_ReportsSkippedDocuments(t *testing.T) {
	isolate(t)
	root := newProject(t)

	_, err := execute(t, "-p", root, "new", "BR", "--id", "BR001", "--name", "Loan limit")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "Artifacts", "broken.json"), []byte("{not json"), 0o644))

	out, err := execute(t, "-p", root, "rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, "Index rebuilt: 1 artifacts, 0 links (1 skipped)")
	assert.Contains(t, out, "broken.json")

	out, err = execute(t, "-p", root, "rebuild", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "Index rebuilt: 1 artifacts, 0 links (1 skipped)")
	assert.NotContains(t, out, "broken.json")
}

func TestRebuildCmd_RecreatesDeletedIndex(t *testing.T) {
	isolate(t)
	root := newProject(t)

	_, err := execute(t, "-p", root, "new", "BR", "--id", "BR001", "--name", "Loan limit")
	require.NoError(t, err)

	dbPath := filepath.Join(root, ".config", "index.db")
	require.NoError(t, os.Remove(dbPath))
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")

	// Opening the project rebuilds a missing index before answering.
	assert.Equal(t, []string{"BR001"}, searchIDs(t, root, "BR"))
}

func TestCommands_WithoutProject(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	for _, args := range [][]string{
		{"search", "BR"},
		{"backlinks", "BR001"},
		{"board"},
		{"rebuild"},
		{"show", "BR001"},
	} {
		_, err := execute(t, append([]string{"-p", dir}, args...)...)
		assert.ErrorIs(t, err, wberrors.ErrNotOpen, "%v", args)
	}
}

func TestNewCmd_RejectsBadInput(t *testing.T) {
	isolate(t)
	root := newProject(t)

	_, err := execute(t, "-p", root, "new", "BR", "--field", "no-separator")
	assert.ErrorIs(t, err, wberrors.ErrInvalidInput)

	_, err = execute(t, "-p", root, "new", "BR", "--id", "../escape")
	assert.ErrorIs(t, err, wberrors.ErrInvalidInput)
}

func TestNewCmd_GeneratesID(t *testing.T) {
	isolate(t)
	root := newProject(t)

	out, err := execute(t, "-p", root, "new", "TASK", "--name", "Write tests")
	require.NoError(t, err)
	assert.Regexp(t, `Created TASK-[0-9a-f]{8}`, out)
	assert.Len(t, searchIDs(t, root, "TASK-"), 1)
}

func TestShowCmd_NotFound(t *testing.T) {
	isolate(t)
	root := newProject(t)

	_, err := execute(t, "-p", root, "show", "NOPE")
	assert.ErrorIs(t, err, wberrors.ErrNotFound)
}

func TestBoardCmd_InvalidGrouping(t *testing.T) {
	isolate(t)
	root := newProject(t)

	_, err := execute(t, "-p", root, "board", "--by", "owner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be status or type")
}

func TestSearchCmd_InvalidFormat(t *testing.T) {
	isolate(t)
	root := newProject(t)

	_, err := execute(t, "-p", root, "search", "BR", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be text or json")
}

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"Rule=a=b", " Owner =ann", "Empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Rule": "a=b", "Owner": "ann", "Empty": ""}, fields)

	_, err = parseFields([]string{"=value"})
	assert.Error(t, err)
}
