package store

import (
	"context"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/artifact"
)

// Row is one artifact as stored in the index.
type Row struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Counts reports the number of rows in each relation.
type Counts struct {
	Artifacts int `json:"artifacts"`
	Links     int `json:"links"`
}

// Entry pairs an artifact with the ids it references.
type Entry struct {
	Artifact *artifact.Artifact
	Targets  []string
}

// Options configures how artifacts are projected into index rows.
type Options struct {
	// IndexFile is the database file name inside the config dir.
	IndexFile string
	// StatusField is the artifact field copied into the status column.
	StatusField string
	// DefaultStatus is stored when StatusField is absent or null.
	DefaultStatus string
	// SearchLimit caps QueryByPrefix results.
	SearchLimit int
}

// DefaultOptions returns the stock projection settings.
func DefaultOptions() Options {
	return Options{
		IndexFile:     "index.db",
		StatusField:   "Trạng thái",
		DefaultStatus: "Draft",
		SearchLimit:   10,
	}
}

// Index is the derived relational index over artifacts and their links.
// Every method fails with an IndexUninitialized error before Initialize and
// with a StorageIO error on storage faults.
type Index interface {
	// Initialize opens or creates the index inside configDir. Idempotent.
	Initialize(ctx context.Context, configDir string) error
	// Clear removes every link row, then every artifact row.
	Clear(ctx context.Context) error

	UpsertArtifact(ctx context.Context, a *artifact.Artifact) error
	InsertLink(ctx context.Context, fromID, toID string) error
	DeleteArtifact(ctx context.Context, id string) error
	DeleteLinksFrom(ctx context.Context, id string) error

	// ReplaceArtifact upserts a and replaces its outgoing links in one
	// transaction.
	ReplaceArtifact(ctx context.Context, a *artifact.Artifact, targets []string) error
	// ReplaceBatch applies ReplaceArtifact for each entry, in order, in one
	// transaction.
	ReplaceBatch(ctx context.Context, entries []Entry) error
	// RemoveArtifact deletes id's outgoing links and its row in one
	// transaction. Links pointing at id are kept.
	RemoveArtifact(ctx context.Context, id string) error

	QueryByPrefix(ctx context.Context, term string) ([]Row, error)
	QueryBacklinks(ctx context.Context, id string) ([]Row, error)
	DistinctStatuses(ctx context.Context) ([]string, error)
	ByStatus(ctx context.Context, status string) ([]Row, error)
	DistinctTypes(ctx context.Context) ([]string, error)
	ByType(ctx context.Context, artifactType string) ([]Row, error)
	Counts(ctx context.Context) (Counts, error)

	Close() error
}
