// Package websocket streams runs to a remote server as JSON envelopes.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/pkg/core"
	"github.com/pathsim/bikesim/pkg/streaming"
)

var errNoRun = errors.New("no run started")

// Backend streams run data over WebSocket.
// It implements storage.Backend but not storage.Exporter.
type Backend struct {
	conn *connection
	cfg  config.WebSocketConfig

	mu      sync.Mutex
	runName string
	started bool
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartRun sends the run metadata and waits for the server ack.
func (b *Backend) StartRun(info *core.RunInfo) error {
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{Run: info})
	if err != nil {
		return err
	}
	b.conn.setReplay(data)

	b.mu.Lock()
	b.runName = info.Name
	b.started = true
	b.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartRun, ackTimeout)
}

// RecordSample sends a sample without waiting.
func (b *Backend) RecordSample(s *core.Sample) error {
	b.mu.Lock()
	name, started := b.runName, b.started
	b.mu.Unlock()

	if !started {
		return errNoRun
	}
	data, err := marshalEnvelope(streaming.TypeSample, streaming.SamplePayload{RunName: name, Sample: s})
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// EndRun sends the result without its samples and waits for the server ack.
func (b *Backend) EndRun(result *core.Result) error {
	b.mu.Lock()
	name, started := b.runName, b.started
	b.started = false
	b.mu.Unlock()

	if !started {
		return errNoRun
	}

	summary := *result
	summary.Samples = nil
	data, err := marshalEnvelope(streaming.TypeEndRun, streaming.EndRunPayload{RunName: name, Result: &summary})
	if err != nil {
		return err
	}

	err = b.conn.sendAndWait(data, streaming.TypeEndRun, ackTimeout)
	b.conn.setReplay(nil)
	return err
}
