package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/internal/influx"
	"github.com/pathsim/bikesim/internal/storage"
	"github.com/pathsim/bikesim/internal/storage/gormstore"
	influxstorage "github.com/pathsim/bikesim/internal/storage/influx"
	"github.com/pathsim/bikesim/internal/storage/memory"
	pgstorage "github.com/pathsim/bikesim/internal/storage/postgres"
	sqlitestorage "github.com/pathsim/bikesim/internal/storage/sqlite"
	wsstorage "github.com/pathsim/bikesim/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// namedBackend is a recording backend with the name it was configured under.
type namedBackend struct {
	name string
	storage.Backend
}

// storageDeps are the shared dependencies of every backend.
type storageDeps struct {
	Logger  *slog.Logger
	ZLog    zerolog.Logger
	Options any // stored with relational runs
}

func createStorageBackend(name string, cfg config.StorageConfig, deps storageDeps) (storage.Backend, error) {
	gormDeps := gormstore.Dependencies{
		Log:       deps.ZLog.With().Str("backend", name).Logger(),
		BatchSize: cfg.BatchSize,
		Options:   deps.Options,
	}

	switch name {
	case storage.Memory:
		return memory.New(cfg.Memory), nil

	case storage.SQLite:
		backend, err := sqlitestorage.New(cfg.SQLite, gormDeps)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case storage.Postgres:
		return pgstorage.New(config.GetDatabaseConfig(), gormDeps), nil

	case storage.WebSocket:
		return wsstorage.New(config.GetWebSocketConfig(), deps.Logger.With("backend", name)), nil

	case storage.Influx:
		ic := config.GetInfluxConfig()
		// listing the backend enables it
		ic.Enabled = true
		return influxstorage.New(influx.NewManager(ic, deps.ZLog.With().Str("backend", name).Logger())), nil

	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, name)
	}
}

// openBackends creates and initializes every configured backend. On error the
// backends opened so far are closed.
func openBackends(cfg config.StorageConfig, deps storageDeps) ([]namedBackend, error) {
	var opened []namedBackend
	seen := map[string]bool{}

	for _, name := range cfg.Backends {
		if seen[name] {
			continue
		}
		seen[name] = true

		backend, err := createStorageBackend(name, cfg, deps)
		if err == nil {
			err = backend.Init()
		}
		if err != nil {
			closeBackends(opened, deps.Logger)
			return nil, fmt.Errorf("storage backend %s: %w", name, err)
		}
		deps.Logger.Info("Storage backend initialized", "backend", name)
		opened = append(opened, namedBackend{name: name, Backend: backend})
	}
	return opened, nil
}

func closeBackends(backends []namedBackend, logger *slog.Logger) error {
	var errs []error
	for _, b := range backends {
		if err := b.Close(); err != nil {
			logger.Error("Failed to close storage backend", "backend", b.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
		}
	}
	return errors.Join(errs...)
}
