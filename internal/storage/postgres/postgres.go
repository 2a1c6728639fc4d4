// Package postgres records runs into PostgreSQL through the GORM backend.
package postgres

import (
	"fmt"

	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/internal/database"
	"github.com/pathsim/bikesim/internal/storage/gormstore"
)

// Backend implements storage.Backend using GORM/PostgreSQL with batched sample writes.
type Backend struct {
	*gormstore.Backend
	cfg  config.DatabaseConfig
	deps gormstore.Dependencies
}

// New creates a new Postgres storage backend. The connection is opened by Init
// unless deps carries one.
func New(cfg config.DatabaseConfig, deps gormstore.Dependencies) *Backend {
	return &Backend{
		Backend: gormstore.New(deps),
		cfg:     cfg,
		deps:    deps,
	}
}

// Init connects to Postgres when no DB was injected, then migrates the schema.
func (b *Backend) Init() error {
	if b.DB() == nil {
		db, err := database.GetPostgresDB(b.cfg, b.deps.Log)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.deps.DB = db
		b.Backend = gormstore.New(b.deps)
	}

	if b.DB().Name() == "postgres" {
		if err := b.DB().Exec(`CREATE EXTENSION IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS extension: %w", err)
		}
		b.deps.Log.Info().Msg("PostGIS extension created")
	}

	return b.Backend.Init()
}
