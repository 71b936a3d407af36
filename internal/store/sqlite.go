package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/vinhtt95/BAWorkbench-sub000/internal/artifact"
	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
)

// openDB is swapped in tests to inject a mock database.
var openDB = sql.Open

const driverName = "sqlite"

// pragmas are applied on open. modernc.org/sqlite may ignore DSN
// parameters, so they are set as statements. Foreign keys stay off: links
// may point at ids that have no row yet.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = OFF",
	"PRAGMA temp_store = MEMORY",
}

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	type   TEXT,
	status TEXT
);

CREATE TABLE IF NOT EXISTS links (
	fromId TEXT NOT NULL,
	toId   TEXT NOT NULL,
	PRIMARY KEY (fromId, toId),
	FOREIGN KEY (fromId) REFERENCES artifacts(id) ON DELETE CASCADE,
	FOREIGN KEY (toId) REFERENCES artifacts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_links_to ON links(toId);
CREATE INDEX IF NOT EXISTS idx_artifacts_status ON artifacts(status);
CREATE INDEX IF NOT EXISTS idx_artifacts_type ON artifacts(type);
`

const (
	upsertSQL = `INSERT INTO artifacts (id, name, type, status) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, type = excluded.type, status = excluded.status`
	insertLinkSQL      = `INSERT OR IGNORE INTO links (fromId, toId) VALUES (?, ?)`
	deleteLinksFromSQL = `DELETE FROM links WHERE fromId = ?`
	deleteArtifactSQL  = `DELETE FROM artifacts WHERE id = ?`
	rowColumns         = `a.id, a.name, COALESCE(a.type, ''), COALESCE(a.status, '')`
)

// SQLiteIndex implements Index on a single SQLite file using WAL mode.
type SQLiteIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	opts   Options
	closed bool
	logger *slog.Logger

	// recreated is set when the last file open replaced a corrupt index.
	recreated bool
}

var _ Index = (*SQLiteIndex)(nil)

// NewSQLiteIndex returns an index that is not yet opened; call Initialize.
func NewSQLiteIndex(opts Options, logger *slog.Logger) *SQLiteIndex {
	defaults := DefaultOptions()
	if opts.IndexFile == "" {
		opts.IndexFile = defaults.IndexFile
	}
	if opts.StatusField == "" {
		opts.StatusField = defaults.StatusField
	}
	if opts.DefaultStatus == "" {
		opts.DefaultStatus = defaults.DefaultStatus
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaults.SearchLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteIndex{opts: opts, logger: logger}
}

// Path returns the database file, empty before Initialize.
func (s *SQLiteIndex) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Recreated reports whether the last Initialize that opened the file found
// it corrupt and replaced it with an empty index. The rows are gone until
// the next rebuild.
func (s *SQLiteIndex) Recreated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recreated
}

// validateIntegrity checks an existing index file before opening it.
// A missing file is fine; it will be created.
func validateIntegrity(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := openDB(driverName, path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Initialize opens <configDir>/<IndexFile>, creating the file and schema
// as needed. A file that fails the integrity check is deleted and
// recreated empty. Calling Initialize again for the same directory only
// re-applies the schema; a different directory closes the previous file.
func (s *SQLiteIndex) Initialize(ctx context.Context, configDir string) error {
	path := filepath.Join(configDir, s.opts.IndexFile)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil && !s.closed && s.path == path {
		s.recreated = false
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return wberrors.StorageError("failed to initialize index schema", err).WithDetail("path", path)
		}
		return nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return wberrors.StorageError(fmt.Sprintf("failed to create directory %s", configDir), err)
	}

	recreated := false
	if validErr := validateIntegrity(ctx, path); validErr != nil {
		s.logger.Warn("index_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))

		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return wberrors.New(wberrors.ErrCodeCorruptIndex,
				fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr).
				WithDetail("path", path).
				WithSuggestion("Delete the file manually, then run 'baw rebuild'")
		}
		_ = os.Remove(path + "-wal")
		_ = os.Remove(path + "-shm")

		s.logger.Info("index_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, rebuild required"))
		recreated = true
	}

	db, err := openDB(driverName, path)
	if err != nil {
		return wberrors.StorageError("failed to open index", err).WithDetail("path", path)
	}

	// Single connection: SQLite allows one writer and pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return wberrors.StorageError("failed to set pragma", err).WithDetail("pragma", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return wberrors.StorageError("failed to initialize index schema", err).WithDetail("path", path)
	}

	s.db = db
	s.path = path
	s.closed = false
	s.recreated = recreated

	s.logger.Debug("index_initialized", slog.String("path", path))
	return nil
}

// ready returns the open handle or an IndexUninitialized error. Callers
// hold s.mu.
func (s *SQLiteIndex) ready(op string) (*sql.DB, error) {
	if s.db == nil || s.closed {
		return nil, wberrors.UninitializedError(op)
	}
	return s.db, nil
}

func storageFault(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return wberrors.StorageError(fmt.Sprintf("index %s failed", op), err).WithDetail("operation", op)
}

// Clear deletes all links, then all artifacts.
func (s *SQLiteIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ready("clear")
	if err != nil {
		return err
	}
	return s.inTx(ctx, db, "clear", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM links`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM artifacts`)
		return err
	})
}

// UpsertArtifact inserts a or updates the existing row with the same id.
// The row keeps its original storage position on update.
func (s *SQLiteIndex) UpsertArtifact(ctx context.Context, a *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ready("upsert")
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, upsertSQL, s.upsertArgs(a)...); err != nil {
		return storageFault("upsert", err)
	}
	return nil
}

func (s *SQLiteIndex) upsertArgs(a *artifact.Artifact) []any {
	return []any{a.ID, a.Name, a.Type, a.Status(s.opts.StatusField, s.opts.DefaultStatus)}
}

// InsertLink records fromID -> toID. Re-inserting an existing pair is a no-op.
func (s *SQLiteIndex) InsertLink(ctx context.Context, fromID, toID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ready("insert_link")
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, insertLinkSQL, fromID, toID); err != nil {
		return storageFault("insert_link", err)
	}
	return nil
}

// DeleteArtifact removes the artifact row only.
func (s *SQLiteIndex) DeleteArtifact(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ready("delete_artifact")
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, deleteArtifactSQL, id); err != nil {
		return storageFault("delete_artifact", err)
	}
	return nil
}

// DeleteLinksFrom removes every link whose source is id.
func (s *SQLiteIndex) DeleteLinksFrom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ready("delete_links")
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, deleteLinksFromSQL, id); err != nil {
		return storageFault("delete_links", err)
	}
	return nil
}

// ReplaceArtifact implements Index.
func (s *SQLiteIndex) ReplaceArtifact(ctx context.Context, a *artifact.Artifact, targets []string) error {
	return s.ReplaceBatch(ctx, []Entry{{Artifact: a, Targets: targets}})
}

// ReplaceBatch implements Index.
func (s *SQLiteIndex) ReplaceBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ready("replace")
	if err != nil {
		return err
	}

	return s.inTx(ctx, db, "replace", func(tx *sql.Tx) error {
		upsert, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer upsert.Close()

		clearLinks, err := tx.PrepareContext(ctx, deleteLinksFromSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare link delete: %w", err)
		}
		defer clearLinks.Close()

		insertLink, err := tx.PrepareContext(ctx, insertLinkSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare link insert: %w", err)
		}
		defer insertLink.Close()

		for _, e := range entries {
			a := e.Artifact
			if _, err := upsert.ExecContext(ctx, s.upsertArgs(a)...); err != nil {
				return fmt.Errorf("failed to upsert %s: %w", a.ID, err)
			}
			if _, err := clearLinks.ExecContext(ctx, a.ID); err != nil {
				return fmt.Errorf("failed to clear links of %s: %w", a.ID, err)
			}
			for _, to := range e.Targets {
				if _, err := insertLink.ExecContext(ctx, a.ID, to); err != nil {
					return fmt.Errorf("failed to link %s -> %s: %w", a.ID, to, err)
				}
			}
		}
		return nil
	})
}

// RemoveArtifact implements Index.
func (s *SQLiteIndex) RemoveArtifact(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ready("remove")
	if err != nil {
		return err
	}
	return s.inTx(ctx, db, "remove", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteLinksFromSQL, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, deleteArtifactSQL, id)
		return err
	})
}

func (s *SQLiteIndex) inTx(ctx context.Context, db *sql.DB, op string, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageFault(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return storageFault(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageFault(op, err)
	}
	return nil
}

// folder puts text in the form QueryByPrefix compares: NFC composed, then
// Unicode case folded. SQLite LIKE only folds ASCII, so "Đơn" would miss
// "đơn" there. A folder is not safe for concurrent use.
type folder struct {
	caser cases.Caser
}

func newFolder() *folder {
	return &folder{caser: cases.Fold()}
}

func (f *folder) fold(s string) string {
	return f.caser.String(norm.NFC.String(s))
}

// QueryByPrefix returns artifacts whose id or name contains term, ignoring
// case, Unicode normalization form and a leading "@". At most SearchLimit
// rows, in storage order.
func (s *SQLiteIndex) QueryByPrefix(ctx context.Context, term string) ([]Row, error) {
	f := newFolder()
	needle := f.fold(strings.TrimPrefix(term, "@"))
	keep := func(r Row) bool {
		return strings.Contains(f.fold(r.ID), needle) || strings.Contains(f.fold(r.Name), needle)
	}
	return s.scanRows(ctx, "query_prefix",
		`SELECT `+rowColumns+` FROM artifacts a ORDER BY a.rowid`,
		keep, s.opts.SearchLimit)
}

// QueryBacklinks returns artifacts that link to id, in storage order.
func (s *SQLiteIndex) QueryBacklinks(ctx context.Context, id string) ([]Row, error) {
	return s.queryRows(ctx, "query_backlinks",
		`SELECT `+rowColumns+` FROM links l JOIN artifacts a ON a.id = l.fromId
WHERE l.toId = ?
ORDER BY a.rowid`, id)
}

// ByStatus returns artifacts with the given status, in storage order.
func (s *SQLiteIndex) ByStatus(ctx context.Context, status string) ([]Row, error) {
	return s.queryRows(ctx, "by_status",
		`SELECT `+rowColumns+` FROM artifacts a WHERE a.status = ? ORDER BY a.rowid`, status)
}

// ByType returns artifacts of the given type, in storage order.
func (s *SQLiteIndex) ByType(ctx context.Context, artifactType string) ([]Row, error) {
	return s.queryRows(ctx, "by_type",
		`SELECT `+rowColumns+` FROM artifacts a WHERE a.type = ? ORDER BY a.rowid`, artifactType)
}

// DistinctStatuses returns every status in use, sorted.
func (s *SQLiteIndex) DistinctStatuses(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "distinct_statuses",
		`SELECT DISTINCT COALESCE(status, '') FROM artifacts ORDER BY 1`)
}

// DistinctTypes returns every artifact type in use, sorted.
func (s *SQLiteIndex) DistinctTypes(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "distinct_types",
		`SELECT DISTINCT COALESCE(type, '') FROM artifacts ORDER BY 1`)
}

// Counts returns the artifact and link row counts.
func (s *SQLiteIndex) Counts(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.ready("counts")
	if err != nil {
		return Counts{}, err
	}
	var c Counts
	err = db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM artifacts), (SELECT COUNT(*) FROM links)`).
		Scan(&c.Artifacts, &c.Links)
	if err != nil {
		return Counts{}, storageFault("counts", err)
	}
	return c, nil
}

func (s *SQLiteIndex) queryRows(ctx context.Context, op, query string, args ...any) ([]Row, error) {
	return s.scanRows(ctx, op, query, nil, 0, args...)
}

// scanRows runs query and keeps the rows accepted by keep (all when nil),
// stopping after limit rows when limit is positive.
func (s *SQLiteIndex) scanRows(ctx context.Context, op, query string, keep func(Row) bool, limit int, args ...any) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.ready(op)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageFault(op, err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.Status); err != nil {
			return nil, storageFault(op, err)
		}
		if keep != nil && !keep(r) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageFault(op, err)
	}
	return out, nil
}

func (s *SQLiteIndex) queryStrings(ctx context.Context, op, query string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.ready(op)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageFault(op, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, storageFault(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFault(op, err)
	}
	return out, nil
}

// Close closes the database. Further calls fail as uninitialized until
// Initialize is called again. Safe to call multiple times.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.db == nil {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	s.db = nil
	return err
}
