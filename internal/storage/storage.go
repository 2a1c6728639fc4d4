// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/pathsim/bikesim/pkg/core"
)

// Backend names accepted in storage.backends.
const (
	Memory    = "memory"
	SQLite    = "sqlite"
	Postgres  = "postgres"
	WebSocket = "websocket"
	Influx    = "influx"
)

// ErrUnknownBackend is returned for a backend name no implementation exists for.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend is the interface all recording implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(info *core.RunInfo) error
	EndRun(result *core.Result) error

	RecordSample(s *core.Sample) error
}

// Exporter is an optional interface for backends that write the run to a file.
type Exporter interface {
	ExportedFilePath() string
}

// Names lists every known backend name.
func Names() []string {
	return []string{Memory, SQLite, Postgres, WebSocket, Influx}
}

// Known reports whether name is a backend name.
func Known(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}
