package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
)

// ProjectResolver returns the currently open project.
type ProjectResolver interface {
	Current() (*project.Project, error)
}

// Store reads and writes artifacts under the open project's artifacts
// directory. It has no knowledge of the index.
type Store struct {
	projects ProjectResolver
	logger   *slog.Logger
}

// NewStore creates a Store resolving the project through projects.
func NewStore(projects ProjectResolver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{projects: projects, logger: logger}
}

// Save writes the document and then the Markdown mirror for a.
//
// A failed document write returns a StorageIO error and leaves the mirror
// untouched. A failed mirror write returns a MirrorWrite warning; the
// document already written is kept.
func (s *Store) Save(ctx context.Context, a *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a == nil {
		return wberrors.ValidationError("artifact is required", nil)
	}
	if err := ValidateID(a.ID); err != nil {
		return err
	}

	p, err := s.projects.Current()
	if err != nil {
		return err
	}
	if info, err := os.Stat(p.ArtifactsDir); err != nil || !info.IsDir() {
		return wberrors.StorageError("artifacts directory missing", err).
			WithDetail("path", p.ArtifactsDir).
			WithSuggestion("Run 'baw init' to create the project layout")
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return wberrors.StorageError(fmt.Sprintf("cannot encode artifact %s", a.ID), err).
			WithDetail("id", a.ID)
	}
	docPath := p.DocumentPath(a.ID)
	if err := writeFileAtomic(docPath, append(data, '\n')); err != nil {
		return wberrors.StorageError(fmt.Sprintf("cannot write artifact %s", a.ID), err).
			WithDetail("id", a.ID).
			WithDetail("path", docPath)
	}

	mirrorPath := p.MirrorPath(a.ID)
	if err := writeFileAtomic(mirrorPath, RenderMirror(a)); err != nil {
		s.logger.Warn("mirror_write_failed",
			slog.String("id", a.ID),
			slog.String("path", mirrorPath),
			slog.String("error", err.Error()))
		return wberrors.MirrorError(a.ID, err).WithDetail("path", mirrorPath)
	}

	s.logger.Debug("artifact_saved", slog.String("id", a.ID), slog.String("path", docPath))
	return nil
}

// Load reads the document for id.
func (s *Store) Load(ctx context.Context, id string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	p, err := s.projects.Current()
	if err != nil {
		return nil, err
	}

	a, err := ReadDocument(p.DocumentPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, wberrors.NotFoundError(id, err)
	}
	return a, err
}

// Exists reports whether a document for id is present.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	p, err := s.projects.Current()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p.DocumentPath(id))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, wberrors.StorageError(fmt.Sprintf("cannot stat artifact %s", id), err)
	}
}

// Delete removes the document and mirror for id. Missing files are not an
// error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	p, err := s.projects.Current()
	if err != nil {
		return err
	}

	for _, path := range []string{p.DocumentPath(id), p.MirrorPath(id)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return wberrors.StorageError(fmt.Sprintf("cannot delete artifact %s", id), err).
				WithDetail("id", id).
				WithDetail("path", path)
		}
	}

	s.logger.Debug("artifact_deleted", slog.String("id", id))
	return nil
}

// DocumentPaths lists every document under the artifacts directory,
// recursively and in lexical order. A missing artifacts directory yields an
// empty list. Dot-prefixed files and directories are skipped.
func (s *Store) DocumentPaths(ctx context.Context) ([]string, error) {
	p, err := s.projects.Current()
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(p.ArtifactsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.ArtifactsDir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if path != p.ArtifactsDir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && filepath.Ext(name) == p.Layout.DocumentExt {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, wberrors.StorageError("cannot list artifact documents", err).
			WithDetail("path", p.ArtifactsDir)
	}

	slices.Sort(paths)
	return paths, nil
}

// ReadDocument parses a single document file. A missing file returns an
// error wrapping fs.ErrNotExist; malformed content returns a Parse error.
// A document without an id parses successfully; callers decide whether
// that is acceptable.
func ReadDocument(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, wberrors.StorageError(fmt.Sprintf("cannot read %s", path), err).
			WithDetail("path", path)
	}
	return Decode(path, data)
}

// Decode parses document bytes. path is only used in error details.
func Decode(path string, data []byte) (*Artifact, error) {
	var a Artifact
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&a); err != nil {
		return nil, wberrors.ParseError(path, err)
	}
	if dec.More() {
		return nil, wberrors.ParseError(path, errors.New("trailing data after document"))
	}
	if a.Fields == nil {
		a.Fields = map[string]any{}
	}
	return &a, nil
}

// writeFileAtomic writes to a dot-prefixed temp file in the target
// directory, then renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
