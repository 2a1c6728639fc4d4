package main

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/internal/storage"
	"github.com/pathsim/bikesim/internal/storage/memory"
	sqlitestorage "github.com/pathsim/bikesim/internal/storage/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeps() storageDeps {
	return storageDeps{
		Logger: slog.New(slog.DiscardHandler),
		ZLog:   zerolog.Nop(),
	}
}

func TestCreateStorageBackend(t *testing.T) {
	cfg := config.StorageConfig{
		BatchSize: 10,
		Memory:    config.MemoryConfig{OutputDir: t.TempDir()},
		SQLite:    config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "runs.db")},
	}

	b, err := createStorageBackend(storage.Memory, cfg, testDeps())
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = createStorageBackend(storage.SQLite, cfg, testDeps())
	require.NoError(t, err)
	assert.IsType(t, &sqlitestorage.Backend{}, b)
	require.NoError(t, b.Close())

	_, err = createStorageBackend("tape", cfg, testDeps())
	assert.ErrorIs(t, err, storage.ErrUnknownBackend)
}

func TestOpenBackends_Dedup(t *testing.T) {
	cfg := config.StorageConfig{
		Backends: []string{storage.Memory, storage.Memory},
		Memory:   config.MemoryConfig{OutputDir: t.TempDir()},
	}

	backends, err := openBackends(cfg, testDeps())
	require.NoError(t, err)
	require.Len(t, backends, 1)
	assert.Equal(t, storage.Memory, backends[0].name)
	assert.NoError(t, closeBackends(backends, testDeps().Logger))
}

func TestOpenBackends_FailureNamesBackend(t *testing.T) {
	cfg := config.StorageConfig{
		Backends: []string{storage.Memory, "tape"},
		Memory:   config.MemoryConfig{OutputDir: t.TempDir()},
	}

	backends, err := openBackends(cfg, testDeps())
	require.Error(t, err)
	assert.Nil(t, backends)
	assert.Contains(t, err.Error(), "storage backend tape")
}
