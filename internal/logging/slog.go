package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// Manager manages slog-based logging for the extension: console plus
// optional file and GELF outputs, with live preset state attached to every
// record via the dynamic state callbacks.
type Manager struct {
	logger *slog.Logger

	gelfWriter *gelf.Writer

	// Dynamic state callbacks, set by the composition root once the loader
	// exists. Each record gets the current preset context when a run is
	// active.
	GetPresetID func() int64
	GetStepID   func() int64
	IsLoading   func() bool
}

// NewManager creates a new logging manager with a console-only logger so
// logging works before Setup runs.
func NewManager() *Manager {
	m := &Manager{}
	m.logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	return m
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

// Setup initializes the logging system with file and optional GELF output.
// An empty gelfAddress disables GELF forwarding; a GELF connection failure
// is reported but does not prevent the remaining handlers from working.
func (m *Manager) Setup(file io.Writer, level string, gelfAddress string) error {
	lvl := parseLevel(level)

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

	// Console handler
	handlers = append(handlers, slog.NewTextHandler(os.Stdout, handlerOpts))

	// File handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	}

	// GELF handler
	var gelfErr error
	if gelfAddress != "" {
		m.gelfWriter, gelfErr = gelf.NewWriter(gelfAddress)
		if gelfErr == nil {
			handlers = append(handlers, slog.NewJSONHandler(m.gelfWriter, handlerOpts))
		}
	}

	combined := NewMultiHandler(handlers...)
	contextual := NewContextHandler(combined, m.contextAttrs)
	m.logger = slog.New(contextual)
	return gelfErr
}

// Logger returns the configured logger.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// WriteLog writes a log entry attributed to a named extension function.
func (m *Manager) WriteLog(functionName string, data string, level string) {
	m.logger.Log(context.Background(), parseLevel(level), data, "function", functionName)
}

// contextAttrs builds the dynamic attributes attached to every record.
func (m *Manager) contextAttrs() []slog.Attr {
	if m.IsLoading == nil || !m.IsLoading() {
		return nil
	}
	attrs := []slog.Attr{}
	if m.GetPresetID != nil {
		attrs = append(attrs, slog.Int64("presetID", m.GetPresetID()))
	}
	if m.GetStepID != nil {
		attrs = append(attrs, slog.Int64("stepID", m.GetStepID()))
	}
	return attrs
}

// Close releases the GELF connection if one was opened.
func (m *Manager) Close() error {
	if m.gelfWriter != nil {
		return m.gelfWriter.Close()
	}
	return nil
}
