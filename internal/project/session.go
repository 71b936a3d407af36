package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/config"
	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
)

// Session tracks the currently open project. It is safe for concurrent use.
type Session struct {
	layout config.LayoutConfig

	mu      sync.RWMutex
	current *Project
}

// NewSession creates a session with no open project.
func NewSession(layout config.LayoutConfig) *Session {
	return &Session{layout: layout}
}

// Open makes root the current project, replacing any previous one.
// root must be an existing directory; the artifacts directory is not
// required to exist yet.
func (s *Session) Open(root string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, wberrors.StorageError(fmt.Sprintf("cannot open project %s", abs), err).
			WithDetail("root", abs)
	}
	if !info.IsDir() {
		return nil, wberrors.ValidationError(fmt.Sprintf("project root %s is not a directory", abs), nil)
	}

	p := New(abs, s.layout)

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	return p, nil
}

// Current returns the open project or a NotOpen error.
func (s *Session) Current() (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, wberrors.NotOpenError()
	}
	return s.current, nil
}

// IsOpen reports whether a project is open.
func (s *Session) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Close forgets the current project.
func (s *Session) Close() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}
