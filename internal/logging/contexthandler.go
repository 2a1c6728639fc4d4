package logging

import (
	"context"
	"log/slog"
	"sync"
)

// ContextProvider returns attributes evaluated at log time.
type ContextProvider func() []slog.Attr

// ContextHandler appends the provider's attributes to each record, so logs
// written before a run starts carry none and later ones carry the run.
type ContextHandler struct {
	slog.Handler
	provider ContextProvider
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{Handler: inner, provider: provider}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewContextHandler(h.Handler.WithAttrs(attrs), h.provider)
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return NewContextHandler(h.Handler.WithGroup(name), h.provider)
}

// RunContext holds the run currently being simulated, for log enrichment.
type RunContext struct {
	mu   sync.RWMutex
	id   uint
	name string
}

// Set records the active run.
func (c *RunContext) Set(id uint, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	c.name = name
}

// Attrs returns the run attributes, none before Set.
func (c *RunContext) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.name == "" {
		return nil
	}
	return []slog.Attr{slog.String("run", c.name), slog.Uint64("runID", uint64(c.id))}
}
