// Package project models an open workbench project: its on-disk layout,
// the session that tracks which project is active, and the status sink
// used to report progress to the user.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vinhtt95/BAWorkbench-sub000/configs"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/config"
	"github.com/vinhtt95/BAWorkbench-sub000/pkg/version"
)

const (
	writerLockFile   = "index.lock"
	indexingLockFile = "indexing.lock"
)

// Project is a resolved project root and the paths derived from it.
type Project struct {
	Root         string
	ConfigDir    string
	ArtifactsDir string
	IndexPath    string
	Layout       config.LayoutConfig
}

// New resolves the layout paths for root.
func New(root string, layout config.LayoutConfig) *Project {
	configDir := filepath.Join(root, layout.ConfigDir)
	return &Project{
		Root:         root,
		ConfigDir:    configDir,
		ArtifactsDir: filepath.Join(root, layout.ArtifactsDir),
		IndexPath:    filepath.Join(configDir, layout.IndexFile),
		Layout:       layout,
	}
}

// MetadataPath returns the project.json path.
func (p *Project) MetadataPath() string {
	return filepath.Join(p.ConfigDir, config.ProjectMarker)
}

// WriterLockPath returns the file locked by the single index writer.
func (p *Project) WriterLockPath() string {
	return filepath.Join(p.ConfigDir, writerLockFile)
}

// IndexingLockPath returns the marker present while a rebuild runs.
func (p *Project) IndexingLockPath() string {
	return filepath.Join(p.ConfigDir, indexingLockFile)
}

// DocumentPath returns the document file for id.
func (p *Project) DocumentPath(id string) string {
	return filepath.Join(p.ArtifactsDir, id+p.Layout.DocumentExt)
}

// MirrorPath returns the Markdown mirror file for id.
func (p *Project) MirrorPath(id string) string {
	return filepath.Join(p.ArtifactsDir, id+p.Layout.MirrorExt)
}

// Metadata is the content of project.json.
type Metadata struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Version   string    `json:"version"`
}

// LoadMetadata reads project.json.
func (p *Project) LoadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(p.MetadataPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.ProjectMarker, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", config.ProjectMarker, err)
	}
	return &meta, nil
}

// SaveMetadata writes project.json atomically (temp file + rename).
func (p *Project) SaveMetadata(meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project metadata: %w", err)
	}

	path := p.MetadataPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write project metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save project metadata: %w", err)
	}
	return nil
}

// Init creates the directory layout under root, a project.json named name
// and a commented workbench.yaml. Existing files are left untouched, so
// running Init on an existing project is a no-op.
func Init(root, name string, layout config.LayoutConfig) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	p := New(abs, layout)

	for _, dir := range []string{p.ConfigDir, p.ArtifactsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(p.MetadataPath()); os.IsNotExist(err) {
		if name == "" {
			name = filepath.Base(abs)
		}
		meta := &Metadata{Name: name, CreatedAt: time.Now().UTC(), Version: version.Version}
		if err := p.SaveMetadata(meta); err != nil {
			return nil, err
		}
	}

	cfgPath := config.ProjectConfigPath(abs, layout)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfgPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", config.ProjectConfigFile, err)
		}
	}

	return p, nil
}
