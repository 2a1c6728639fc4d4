// Package gormstore records runs into a relational database through GORM.
// The sqlite and postgres backends wrap it with their connection setup.
package gormstore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pathsim/bikesim/internal/database"
	"github.com/pathsim/bikesim/internal/model"
	"github.com/pathsim/bikesim/internal/model/convert"
	"github.com/pathsim/bikesim/internal/queue"
	"github.com/pathsim/bikesim/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBatchSize is used when Dependencies.BatchSize is not positive.
const DefaultBatchSize = 500

var errNoRun = errors.New("no run started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB        *gorm.DB
	Log       zerolog.Logger
	BatchSize int
	// Options is stored as the JSON options column of every run.
	Options any
}

// Backend implements storage.Backend on a GORM connection with batched sample inserts.
type Backend struct {
	deps    Dependencies
	mu      sync.Mutex
	run     *model.Run
	info    *core.RunInfo
	samples *queue.Batcher[model.Sample]
	written int
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the run tables.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("no database connection")
	}
	if err := database.Migrate(b.deps.DB, b.deps.Log); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// StartRun inserts the run row and assigns its ID to info.
func (b *Backend) StartRun(info *core.RunInfo) error {
	row, err := convert.CoreToRun(*info, b.deps.Options)
	if err != nil {
		return fmt.Errorf("failed to convert run: %w", err)
	}
	if err := b.deps.DB.Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	info.ID = row.ID
	b.run = &row
	b.info = info
	b.written = 0
	b.samples = queue.NewBatcher(b.deps.BatchSize, b.writeSamples)

	b.deps.Log.Info().Uint("runID", row.ID).Str("name", row.Name).Msg("Run created")
	return nil
}

// RecordSample queues a sample row; rows are inserted once a batch is full.
func (b *Backend) RecordSample(s *core.Sample) error {
	b.mu.Lock()
	run, samples := b.run, b.samples
	b.mu.Unlock()

	if run == nil {
		return errNoRun
	}
	return samples.Add(convert.CoreToSample(run.ID, *s))
}

// EndRun flushes the queued samples and stores the outcome of the run.
func (b *Backend) EndRun(result *core.Result) error {
	b.mu.Lock()
	run, samples := b.run, b.samples
	b.mu.Unlock()

	if run == nil {
		return errNoRun
	}
	if err := samples.Flush(); err != nil {
		return err
	}

	b.mu.Lock()
	written := b.written
	b.run = nil
	b.samples = nil
	b.mu.Unlock()

	convert.ApplyResult(run, *result, written, time.Now())
	err := b.deps.DB.Model(run).Select(
		"TotalElapsedTime", "Aborted", "Steps", "FinalVelocity", "SampleCount", "EndedAt",
	).Updates(run).Error
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	b.deps.Log.Info().Uint("runID", run.ID).Int("samples", written).Bool("aborted", run.Aborted).
		Msg("Run finished")
	return nil
}

func (b *Backend) writeSamples(rows []model.Sample) error {
	start := time.Now()
	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).CreateInBatches(&rows, len(rows)).Error
	})
	if err != nil {
		b.deps.Log.Error().Err(err).Int("rows", len(rows)).Msg("Failed to insert samples")
		return fmt.Errorf("failed to insert samples: %w", err)
	}

	b.mu.Lock()
	b.written += len(rows)
	b.mu.Unlock()

	b.deps.Log.Debug().Int("rows", len(rows)).Dur("took", time.Since(start)).Msg("Samples written")
	return nil
}
