package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathsim/bikesim/internal/config"
	"github.com/pathsim/bikesim/internal/storage"
	"github.com/pathsim/bikesim/pkg/core"
	"github.com/pathsim/bikesim/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secrets  []string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

// testServer upgrades to WebSocket, records received envelopes, and acks
// start_run and end_run unless ack is false.
func testServer(t *testing.T, ack bool) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.mu.Lock()
		ml.secrets = append(ml.secrets, r.URL.Query().Get("secret"))
		ml.mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if ack && (env.Type == streaming.TypeStartRun || env.Type == streaming.TypeEndRun) {
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, ml
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testRun() *core.RunInfo {
	return &core.RunInfo{
		Name:      "stream",
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Rider:     core.RiderProfile{AveragePower: 200, Mass: 80},
		TimeStep:  0.1,
		Path:      core.Path{{Position: 0}, {Position: 100}},
	}
}

func TestBackend_FullRun(t *testing.T) {
	srv, ml := testServer(t, true)

	b := New(config.WebSocketConfig{URL: wsURL(srv), Secret: "s3cret"}, slog.New(slog.DiscardHandler))
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.RecordSample(&core.Sample{Time: 1, Velocity: 2}))
	require.NoError(t, b.RecordSample(&core.Sample{Time: 2, Velocity: 3}))
	require.NoError(t, b.EndRun(&core.Result{
		TotalElapsedTime: 2,
		Steps:            20,
		Samples:          []core.Sample{{Time: 1}, {Time: 2}},
	}))

	msgs := ml.all()
	require.Len(t, msgs, 4)
	assert.Equal(t, streaming.TypeStartRun, msgs[0].Type)
	assert.Equal(t, streaming.TypeSample, msgs[1].Type)
	assert.Equal(t, streaming.TypeSample, msgs[2].Type)
	assert.Equal(t, streaming.TypeEndRun, msgs[3].Type)

	var start struct {
		Run core.RunInfo `json:"run"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, "stream", start.Run.Name)

	var sample struct {
		RunName string      `json:"runName"`
		Sample  core.Sample `json:"sample"`
	}
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &sample))
	assert.Equal(t, "stream", sample.RunName)
	assert.Equal(t, 3.0, sample.Sample.Velocity)

	var end struct {
		Result core.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(msgs[3].Payload, &end))
	assert.Equal(t, 20, end.Result.Steps)
	assert.Empty(t, end.Result.Samples)

	ml.mu.Lock()
	assert.Equal(t, []string{"s3cret"}, ml.secrets)
	ml.mu.Unlock()
}

func TestBackend_SampleBeforeStart(t *testing.T) {
	b := New(config.WebSocketConfig{}, nil)
	assert.Error(t, b.RecordSample(&core.Sample{}))
	assert.Error(t, b.EndRun(&core.Result{}))
}

func TestBackend_InitDialFailure(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "ws://127.0.0.1:1/api/runs"}, slog.New(slog.DiscardHandler))
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial failed")
}

func TestBackend_InvalidURL(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "://bad"}, nil)
	assert.Error(t, b.Init())
}

func TestBackend_CloseIdempotent(t *testing.T) {
	srv, _ := testServer(t, true)

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, slog.New(slog.DiscardHandler))
	require.NoError(t, b.Init())
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func TestSendAndWait_ClosedConnection(t *testing.T) {
	srv, _ := testServer(t, false)

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, slog.New(slog.DiscardHandler))
	require.NoError(t, b.Init())

	errc := make(chan error, 1)
	go func() { errc <- b.StartRun(testRun()) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection closed")
	case <-time.After(5 * time.Second):
		t.Fatal("StartRun did not return after Close")
	}
}

func TestMarshalEnvelope(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeSample, map[string]int{"x": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"sample","payload":{"x":1}}`, string(data))

	_, err = marshalEnvelope(streaming.TypeSample, make(chan int))
	assert.Error(t, err)
}
