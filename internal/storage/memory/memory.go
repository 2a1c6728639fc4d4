// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/pkg/core"
)

var errNoRun = errors.New("no run started")

// Backend keeps the samples of a run in memory and exports them to JSON
type Backend struct {
	cfg     config.MemoryConfig
	run     *core.RunInfo
	samples []core.Sample

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run
func (b *Backend) StartRun(info *core.RunInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = info
	b.samples = nil
	b.lastExportPath = ""
	return nil
}

// RecordSample appends a sample to the current run
func (b *Backend) RecordSample(s *core.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return errNoRun
	}
	b.samples = append(b.samples, *s)
	return nil
}

// EndRun finalizes and exports the run data
func (b *Backend) EndRun(result *core.Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return errNoRun
	}
	return b.exportJSON(result)
}

// Samples returns a copy of the recorded samples.
func (b *Backend) Samples() []core.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// ExportedFilePath returns the file written by the last EndRun.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
