// Package async runs index rebuilds off the caller's goroutine and exposes
// their progress.
package async

import (
	"sync"
	"time"
)

// IndexingStatus is the overall state of a background rebuild.
type IndexingStatus string

const (
	// StatusIndexing indicates a rebuild is in progress.
	StatusIndexing IndexingStatus = "indexing"
	// StatusReady indicates the rebuild finished and the index is current.
	StatusReady IndexingStatus = "ready"
	// StatusError indicates the rebuild failed.
	StatusError IndexingStatus = "error"
)

// IndexingStage is the current step of a rebuild.
type IndexingStage string

const (
	// StagePreparing covers opening and clearing the index.
	StagePreparing IndexingStage = "preparing"
	// StageIndexing covers parsing documents and writing rows.
	StageIndexing IndexingStage = "indexing"
	// StageDone is set once the summary is known.
	StageDone IndexingStage = "done"
)

// IndexProgressSnapshot is an immutable copy of IndexProgress.
type IndexProgressSnapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	FilesTotal     int     `json:"files_total"`
	FilesProcessed int     `json:"files_processed"`
	Artifacts      int     `json:"artifacts"`
	Links          int     `json:"links"`
	Skipped        int     `json:"skipped"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// IndexProgress is a thread-safe record of rebuild progress.
type IndexProgress struct {
	mu sync.RWMutex

	status         IndexingStatus
	stage          IndexingStage
	filesTotal     int
	filesProcessed int
	artifacts      int
	links          int
	skipped        int
	startTime      time.Time
	errorMessage   string
}

// NewIndexProgress creates a tracker in the indexing state.
func NewIndexProgress() *IndexProgress {
	return &IndexProgress{
		status:    StatusIndexing,
		stage:     StagePreparing,
		startTime: time.Now(),
	}
}

// SetStage moves to stage.
func (p *IndexProgress) SetStage(stage IndexingStage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
}

// UpdateFiles records processed of total documents handled.
func (p *IndexProgress) UpdateFiles(processed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = StageIndexing
	p.filesProcessed = processed
	p.filesTotal = total
}

// SetResult records the final counts.
func (p *IndexProgress) SetResult(artifacts, links, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = StageDone
	p.artifacts = artifacts
	p.links = links
	p.skipped = skipped
}

// SetError marks the rebuild as failed.
func (p *IndexProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the rebuild as complete.
func (p *IndexProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsIndexing reports whether the rebuild is still running.
func (p *IndexProgress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusIndexing
}

// Snapshot returns the current progress.
func (p *IndexProgress) Snapshot() IndexProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.filesTotal > 0 {
		progressPct = float64(p.filesProcessed) / float64(p.filesTotal) * 100.0
	}

	return IndexProgressSnapshot{
		Status:         string(p.status),
		Stage:          string(p.stage),
		FilesTotal:     p.filesTotal,
		FilesProcessed: p.filesProcessed,
		Artifacts:      p.artifacts,
		Links:          p.links,
		Skipped:        p.skipped,
		ProgressPct:    progressPct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
