// Package extension is the bridge between the simulator host and the
// preset subsystems. The host drives it two ways: a per-frame Update tick
// forwarded to every registered module, and text commands routed through
// the dispatcher.
package extension

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aguther/aircraft/internal/dispatcher"
)

// Module is a subsystem driven by the host tick. Initialize is called once
// before the first Update; Shutdown once after the last.
type Module interface {
	Name() string
	Initialize() error
	Update(dt float64) error
	Shutdown() error
}

// Handler owns the registered modules and routes host calls to them.
type Handler struct {
	version    string
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger

	modules     []Module
	initialized bool
	ticks       uint64
}

// NewHandler creates a handler with the given version string. The
// dispatcher may be nil, in which case Call only answers built-ins.
func NewHandler(version string, d *dispatcher.Dispatcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		version:    version,
		dispatcher: d,
		logger:     logger,
	}
}

// Version returns the version reported to the host on first contact.
func (h *Handler) Version() string {
	return h.version
}

// RegisterModule adds a module. Modules are initialized and updated in
// registration order and shut down in reverse.
func (h *Handler) RegisterModule(m Module) {
	h.modules = append(h.modules, m)
}

// Ticks returns the number of completed update cycles.
func (h *Handler) Ticks() uint64 {
	return h.ticks
}

// Initialize initializes all registered modules. The first failure stops
// initialization and is returned.
func (h *Handler) Initialize() error {
	for _, m := range h.modules {
		if err := m.Initialize(); err != nil {
			return fmt.Errorf("initializing module %s: %w", m.Name(), err)
		}
		h.logger.Debug("Module initialized", "module", m.Name())
	}
	h.initialized = true
	return nil
}

// Update forwards one tick to every module. dt is the wall time of the
// previous frame in seconds. Module errors are logged and do not stop the
// remaining modules.
func (h *Handler) Update(dt float64) {
	if !h.initialized {
		h.logger.Error("Update called before Initialize")
		return
	}
	for _, m := range h.modules {
		if err := m.Update(dt); err != nil {
			h.logger.Error("Module update failed", "module", m.Name(), "error", err)
		}
	}
	h.ticks++
}

// Shutdown shuts modules down in reverse registration order.
func (h *Handler) Shutdown() {
	for i := len(h.modules) - 1; i >= 0; i-- {
		if err := h.modules[i].Shutdown(); err != nil {
			h.logger.Error("Module shutdown failed", "module", h.modules[i].Name(), "error", err)
		}
	}
	h.initialized = false
}

// Call handles a text command from the host. The command may carry inline
// arguments after a '|' separator, or an explicit argument vector.
func (h *Handler) Call(command string, args ...string) string {
	// Handle built-in timestamp command
	if command == ":TIMESTAMP:" {
		return getTimestamp()
	}

	if h.dispatcher != nil {
		dispatchCommand := command
		if len(args) == 0 {
			parts := strings.Split(command, "|")
			if !h.dispatcher.HasHandler(command) && h.dispatcher.HasHandler(parts[0]) {
				dispatchCommand = parts[0]
				args = parts[1:]
			}
		}

		if h.dispatcher.HasHandler(dispatchCommand) {
			event := dispatcher.Event{
				Command:   dispatchCommand,
				Args:      args,
				Timestamp: time.Now(),
			}

			result, err := h.dispatcher.Dispatch(event)
			return formatDispatchResponse(dispatchCommand, result, err)
		}
	}

	return fmt.Sprintf(`["error", "%s", "no handler registered"]`, command)
}

// formatDispatchResponse formats the dispatcher result for the host.
func formatDispatchResponse(command string, result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", "%s", "%s"]`, command, err.Error())
	}
	if result == nil {
		return fmt.Sprintf(`["ok", "%s"]`, command)
	}
	return fmt.Sprintf(`["ok", "%s", "%v"]`, command, result)
}

func getTimestamp() string {
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}
