// Package dispatcher fans samples out to the registered recording sinks.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pathsim/bikesim/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HandlerFunc records one sample.
type HandlerFunc func(core.Sample) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type sink struct {
	name    string
	handler HandlerFunc
}

// Dispatcher routes every sample to all registered sinks, in registration order.
type Dispatcher struct {
	sinks  []sink
	logger Logger

	// OTEL metrics
	queueSize  metric.Int64ObservableGauge
	dispatched metric.Int64Counter
	failed     metric.Int64Counter
	dropped    metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]chan core.Sample
	wg      sync.WaitGroup
	closed  bool

	errMu sync.Mutex
	errs  map[string]error
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		buffers: make(map[string]chan core.Sample),
		errs:    make(map[string]error),
		logger:  logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"samples.queue.size",
		metric.WithDescription("Current number of samples waiting for a buffered sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("sink", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.dispatched, err = m.Int64Counter(
		"samples.dispatched",
		metric.WithDescription("Total samples handed to sinks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispatched counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"samples.failed",
		metric.WithDescription("Total samples a sink failed to record"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"samples.dropped",
		metric.WithDescription("Total samples dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a sink with optional configuration. Names must be unique.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	handler = d.withAccounting(name, handler)

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(name, cfg.bufferSize, cfg.blocking, handler)
	}

	d.sinks = append(d.sinks, sink{name: name, handler: handler})
}

// Dispatch hands s to every sink. Synchronous sink errors are returned joined;
// errors of buffered sinks surface through Err.
func (d *Dispatcher) Dispatch(s core.Sample) error {
	var errs []error
	for _, k := range d.sinks {
		if err := k.handler(s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.name, err))
		}
	}
	return errors.Join(errs...)
}

// OnSample dispatches s and keeps any error for Err, so a dispatcher can
// observe a running simulation.
func (d *Dispatcher) OnSample(s core.Sample) {
	_ = d.Dispatch(s)
}

// HasSink returns true if a sink is registered under name.
func (d *Dispatcher) HasSink(name string) bool {
	for _, k := range d.sinks {
		if k.name == name {
			return true
		}
	}
	return false
}

// Len returns the number of registered sinks.
func (d *Dispatcher) Len() int {
	return len(d.sinks)
}

// Close stops the buffered sinks after they drained their queues.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Err returns the first error each sink reported, joined.
func (d *Dispatcher) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()

	var errs []error
	for _, k := range d.sinks {
		if err, ok := d.errs[k.name]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", k.name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) remember(name string, err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if _, ok := d.errs[name]; !ok {
		d.errs[name] = err
	}
}

func (d *Dispatcher) withAccounting(name string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("sink", name))
	return func(s core.Sample) error {
		err := h(s)
		d.dispatched.Add(context.Background(), 1, attrs)
		if err != nil {
			d.failed.Add(context.Background(), 1, attrs)
			d.remember(name, err)
		}
		return err
	}
}

func (d *Dispatcher) withBuffer(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan core.Sample, size)

	d.mu.Lock()
	d.buffers[name] = buffer
	d.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("sink", name))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for s := range buffer {
			_ = h(s)
		}
	}()

	if blocking {
		return func(s core.Sample) error {
			buffer <- s
			return nil
		}
	}

	return func(s core.Sample) error {
		select {
		case buffer <- s:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, attrs)
			return fmt.Errorf("queue full: %s", name)
		}
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(s core.Sample) error {
		start := time.Now()
		d.logger.Debug("recording sample", "sink", name, "time", s.Time)

		err := h(s)

		if err != nil {
			d.logger.Error("sample failed", "sink", name, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("sample recorded", "sink", name, "duration", time.Since(start))
		}

		return err
	}
}
