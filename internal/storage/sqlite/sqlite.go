// Package sqlitestorage records runs into a SQLite file.
// It wraps the GORM backend; the only SQLite-specific concern is opening the file.
package sqlitestorage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/internal/database"
	"github.com/pathsim/bikesim/internal/storage/gormstore"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstore.Backend
	path string
}

// New opens the SQLite database at cfg.Path, creating its directory.
// An empty path uses an in-memory database.
func New(cfg config.SQLiteConfig, deps gormstore.Dependencies) (*Backend, error) {
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.GetSqliteDB(cfg.Path, deps.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	deps.DB = db

	return &Backend{
		Backend: gormstore.New(deps),
		path:    cfg.Path,
	}, nil
}

// ExportedFilePath returns the database file, empty for an in-memory database.
func (b *Backend) ExportedFilePath() string {
	return b.path
}
