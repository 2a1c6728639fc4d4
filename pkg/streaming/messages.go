package streaming

import (
	"encoding/json"

	"github.com/pathsim/bikesim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun = "start_run"
	TypeSample   = "sample"
	TypeEndRun   = "end_run"
	TypeAck      = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload carries the run metadata.
type StartRunPayload struct {
	Run *core.RunInfo `json:"run"`
}

// SamplePayload carries one sample of the running simulation.
type SamplePayload struct {
	RunName string       `json:"runName"`
	Sample  *core.Sample `json:"sample"`
}

// EndRunPayload carries the outcome of the run.
type EndRunPayload struct {
	RunName string       `json:"runName"`
	Result  *core.Result `json:"result"`
}
