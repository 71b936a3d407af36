// Package query answers the read-side questions asked of the index:
// reference search, backlinks and board groupings.
package query

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/store"
)

// DefaultCacheSize is the number of distinct search terms cached.
const DefaultCacheSize = 256

// Reader is the read side of store.Index.
type Reader interface {
	QueryByPrefix(ctx context.Context, term string) ([]store.Row, error)
	QueryBacklinks(ctx context.Context, id string) ([]store.Row, error)
	DistinctStatuses(ctx context.Context) ([]string, error)
	ByStatus(ctx context.Context, status string) ([]store.Row, error)
	DistinctTypes(ctx context.Context) ([]string, error)
	ByType(ctx context.Context, artifactType string) ([]store.Row, error)
}

// Service runs read queries. Storage faults are logged and surface as empty
// results, never as errors.
type Service struct {
	index  Reader
	cache  *lru.Cache[string, []store.Row]
	logger *slog.Logger

	// generation counts invalidations; a search only caches its rows when
	// no invalidation happened while it was reading.
	mu         sync.Mutex
	generation uint64
}

// NewService creates a Service over index with an LRU of cacheSize search
// terms.
func NewService(index Reader, cacheSize int, logger *slog.Logger) *Service {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, []store.Row](cacheSize)
	return &Service{index: index, cache: cache, logger: logger}
}

// Search returns artifacts whose id or name contains query, for "@"
// reference completion. A leading "@" is ignored.
func (s *Service) Search(ctx context.Context, query string) []store.Row {
	term := strings.TrimPrefix(query, "@")

	if rows, ok := s.cache.Get(term); ok {
		return slices.Clone(rows)
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	rows, err := s.index.QueryByPrefix(ctx, term)
	if err != nil {
		s.fault("search", err, slog.String("query", query))
		return []store.Row{}
	}

	s.mu.Lock()
	if s.generation == gen {
		s.cache.Add(term, rows)
	}
	s.mu.Unlock()
	return slices.Clone(rows)
}

// Backlinks returns the artifacts that reference id. An empty id returns
// nothing without touching the index.
func (s *Service) Backlinks(ctx context.Context, id string) []store.Row {
	if id == "" {
		return []store.Row{}
	}
	rows, err := s.index.QueryBacklinks(ctx, id)
	if err != nil {
		s.fault("backlinks", err, slog.String("id", id))
		return []store.Row{}
	}
	return rows
}

// GroupedByStatus returns every artifact keyed by status, for a kanban
// board.
func (s *Service) GroupedByStatus(ctx context.Context) map[string][]store.Row {
	return s.grouped(ctx, "grouped_by_status", s.index.DistinctStatuses, s.index.ByStatus)
}

// GroupedByType returns every artifact keyed by artifact type.
func (s *Service) GroupedByType(ctx context.Context) map[string][]store.Row {
	return s.grouped(ctx, "grouped_by_type", s.index.DistinctTypes, s.index.ByType)
}

func (s *Service) grouped(
	ctx context.Context,
	op string,
	keys func(context.Context) ([]string, error),
	rows func(context.Context, string) ([]store.Row, error),
) map[string][]store.Row {
	out := make(map[string][]store.Row)

	values, err := keys(ctx)
	if err != nil {
		s.fault(op, err)
		return out
	}
	for _, v := range values {
		group, err := rows(ctx, v)
		if err != nil {
			s.fault(op, err, slog.String("group", v))
			continue
		}
		out[v] = group
	}
	return out
}

// Invalidate drops cached search results. Called after every index
// mutation.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.cache.Purge()
}

func (s *Service) fault(op string, err error, attrs ...any) {
	args := append([]any{slog.String("op", op), slog.String("error", err.Error())}, attrs...)
	s.logger.Warn("query_failed", args...)
}
