package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/pathsim/bikesim/pkg/streaming"
)

const (
	sendQueueSize = 4096
	ackQueueSize  = 8
	maxRedials    = 5
	maxBackoff    = 10 * time.Second
	writeWait     = 5 * time.Second
	ackTimeout    = 10 * time.Second
)

// connection owns one WebSocket and the goroutines that write to and read from it.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	out    chan []byte
	acks   chan streaming.AckMessage
	done   chan struct{}
	closed bool

	target string
	secret string

	// start_run of the current run, replayed after a redial.
	replay []byte

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		out:    make(chan []byte, sendQueueSize),
		acks:   make(chan streaming.AckMessage, ackQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *connection) open(rawURL, secret string) error {
	c.target = rawURL
	c.secret = secret

	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *connection) dial() (*ws.Conn, error) {
	u, err := url.Parse(c.target)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach installs conn and starts its loops.
func (c *connection) attach(conn *ws.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)
}

func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := write(conn, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.redial(conn)
				return
			}
		}
	}
}

func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("WebSocket read error", "error", err)
				go c.redial(conn)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Ignoring server message", "raw", string(message))
			continue
		}

		select {
		case c.acks <- ack:
		default:
			c.logger.Debug("Ack queue full, dropping", "for", ack.For)
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// redial replaces a broken connection, backing off exponentially, and
// replays start_run so the server can attach further samples to the run.
// Both loops of a broken connection may call it; only the first one redials.
func (c *connection) redial(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	_ = broken.Close()

	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dial()
		if err != nil {
			c.logger.Warn("WebSocket redial failed", "attempt", attempt, "error", err)
			backoff = min(2*backoff, maxBackoff)
			continue
		}

		c.mu.Lock()
		replay := c.replay
		c.mu.Unlock()
		if replay != nil {
			if err := write(conn, replay); err != nil {
				c.logger.Warn("Failed to replay start_run", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		c.attach(conn)
		return
	}

	c.logger.Error("WebSocket reconnect failed", "attempts", maxRedials)
}

// send queues data for the write loop and drops it when the queue is full.
func (c *connection) send(data []byte) bool {
	select {
	case c.out <- data:
		return true
	default:
		c.logger.Warn("WebSocket send queue full, dropping message")
		return false
	}
}

// sendAndWait queues data and blocks until the server acks msgType.
func (c *connection) sendAndWait(data []byte, msgType string, timeout time.Duration) error {
	if !c.send(data) {
		return fmt.Errorf("send queue full, %q not sent", msgType)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.acks:
			if ack.For == msgType {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", msgType)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", msgType)
		}
	}
}

func (c *connection) setReplay(data []byte) {
	c.mu.Lock()
	c.replay = data
	c.mu.Unlock()
}

// close sends a close frame and stops both loops.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return conn.Close()
}
