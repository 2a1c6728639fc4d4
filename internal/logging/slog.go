package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName names the otelslog bridge scope.
const InstrumentationName = "bikesim"

// SlogManager manages slog-based logging with optional Graylog and OTel outputs.
type SlogManager struct {
	logger  *slog.Logger
	console io.Writer

	graylog io.Writer
	context ContextProvider

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager. console receives
// the records when Setup is given no file; stdout carries simulation output
// so callers pass stderr.
func NewSlogManager(console io.Writer) *SlogManager {
	return &SlogManager{console: console}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UseGraylog adds a GELF output to the next Setup.
func (m *SlogManager) UseGraylog(w io.Writer) {
	m.graylog = w
}

// UseContext injects dynamic attributes into every record after the next Setup.
func (m *SlogManager) UseContext(p ContextProvider) {
	m.context = p
}

// Setup initializes the logging system with file and optional OTel output.
// If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	lvl := parseLevel(level)
	m.logProvider = provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	switch {
	case file != nil:
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	case m.console != nil:
		handlers = append(handlers, slog.NewTextHandler(m.console, handlerOpts))
	}

	if m.graylog != nil {
		handlers = append(handlers, NewGraylogHandler(m.graylog, lvl))
	}

	if provider != nil {
		otelHandler := otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(provider))
		handlers = append(handlers, otelHandler)
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if m.context != nil {
		handler = NewContextHandler(handler, m.context)
	}

	m.logger = slog.New(handler)
	m.logger.Debug("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
