// Package influxstorage writes every sample of a run as an InfluxDB point.
package influxstorage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pathsim/bikesim/internal/influx"
	"github.com/pathsim/bikesim/pkg/core"
)

var errNoRun = errors.New("no run started")

// Backend implements storage.Backend on an influx.Manager.
type Backend struct {
	manager *influx.Manager

	mu  sync.Mutex
	run *core.RunInfo
}

// New creates a new InfluxDB storage backend.
func New(manager *influx.Manager) *Backend {
	return &Backend{manager: manager}
}

// Init connects the manager.
func (b *Backend) Init() error {
	return b.manager.Connect(context.Background())
}

// Close flushes and closes the manager.
func (b *Backend) Close() error {
	return b.manager.Close()
}

// StartRun remembers the run the following samples belong to.
func (b *Backend) StartRun(info *core.RunInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.run = info
	return nil
}

// RecordSample writes a rider_sample point tagged with the run name.
func (b *Backend) RecordSample(s *core.Sample) error {
	b.mu.Lock()
	run := b.run
	b.mu.Unlock()

	if run == nil {
		return errNoRun
	}
	return b.manager.WritePoint(influx.SamplePoint(run.Name, run.StartedAt, *s))
}

// EndRun writes the run summary point and flushes.
func (b *Backend) EndRun(result *core.Result) error {
	b.mu.Lock()
	run := b.run
	b.run = nil
	b.mu.Unlock()

	if run == nil {
		return errNoRun
	}
	end := run.StartedAt.Add(time.Duration(result.TotalElapsedTime * float64(time.Second)))
	if err := b.manager.WritePoint(influx.RunPoint(run.Name, end, run.Rider, *result)); err != nil {
		return err
	}
	b.manager.Flush()
	return nil
}
