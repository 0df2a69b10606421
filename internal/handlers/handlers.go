// Package handlers binds host control commands to the preset subsystems.
// Each handler follows the same shape: parse the argument vector the host
// sends, act on the injected dependencies, and report through the log
// manager under the command's function name.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aguther/aircraft/internal/dispatcher"
	"github.com/aguther/aircraft/internal/loader"
	"github.com/aguther/aircraft/internal/logging"
	"github.com/aguther/aircraft/internal/procedure"
	"github.com/aguther/aircraft/internal/simvar"
	"github.com/aguther/aircraft/internal/store"
	"github.com/aguther/aircraft/internal/telemetry"
)

// Command names accepted by the dispatcher.
const (
	CmdPresetLoad   = ":PRESET:LOAD:"
	CmdPresetCancel = ":PRESET:CANCEL:"
	CmdStatus       = ":STATUS:"
	CmdVarsSave     = ":VARS:SAVE:"
	CmdVersion      = ":VERSION:"
)

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Vars             simvar.Store
	Procedures       *procedure.Repository
	Store            *store.Manager
	Telemetry        *telemetry.Manager
	LogManager       *logging.Manager
	ExtensionName    string
	ExtensionVersion string
}

// Service provides handler methods for processing host commands.
type Service struct {
	deps         Dependencies
	writeLogFunc func(functionName, data, level string)
}

// NewService creates a new handler service.
func NewService(deps Dependencies) *Service {
	s := &Service{
		deps: deps,
	}
	// Default writeLog function uses the logging manager
	s.writeLogFunc = func(functionName, data, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}
	return s
}

func (s *Service) writeLog(functionName, data, level string) {
	s.writeLogFunc(functionName, data, level)
}

// trimQuotes strips one layer of surrounding double quotes.
func trimQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// RegisterAll wires every command onto the dispatcher. Status and version
// are answered inline; variable saves are buffered so the caller never
// waits on the database.
func (s *Service) RegisterAll(d *dispatcher.Dispatcher) {
	d.Register(CmdPresetLoad, s.LoadPreset, dispatcher.Logged())
	d.Register(CmdPresetCancel, s.CancelPreset, dispatcher.Logged())
	d.Register(CmdStatus, s.Status)
	d.Register(CmdVarsSave, s.SaveVariables, dispatcher.Buffered(16), dispatcher.Logged())
	d.Register(CmdVersion, s.Version)
}

// LoadPreset requests a preset load by writing the request variable. The
// load itself runs on subsequent ticks.
func (s *Service) LoadPreset(e dispatcher.Event) (any, error) {
	functionName := CmdPresetLoad

	if len(e.Args) < 1 {
		s.writeLog(functionName, "Missing preset id argument", "ERROR")
		return nil, fmt.Errorf("missing preset id argument")
	}

	id, err := strconv.ParseInt(trimQuotes(e.Args[0]), 10, 64)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Invalid preset id %q: %v`, e.Args[0], err), "ERROR")
		return nil, fmt.Errorf("invalid preset id %q: %w", e.Args[0], err)
	}
	if id <= 0 {
		s.writeLog(functionName, fmt.Sprintf(`Preset id must be positive, got %d`, id), "ERROR")
		return nil, fmt.Errorf("preset id must be positive, got %d", id)
	}

	if _, ok := s.deps.Procedures.Get(id); !ok {
		s.writeLog(functionName, fmt.Sprintf(`Unknown preset id %d`, id), "WARN")
	}

	s.deps.Vars.SetInt(loader.RequestVar, id)
	s.writeLog(functionName, fmt.Sprintf(`Preset %d load requested`, id), "INFO")
	return "requested", nil
}

// CancelPreset clears the request variable so the active run stops on the
// next tick.
func (s *Service) CancelPreset(e dispatcher.Event) (any, error) {
	functionName := CmdPresetCancel

	s.deps.Vars.SetInt(loader.RequestVar, 0)
	s.writeLog(functionName, "Preset load cancel requested", "INFO")
	return "cancelled", nil
}

// statusReport is the JSON shape returned by the status command.
type statusReport struct {
	Extension string  `json:"extension"`
	Version   string  `json:"version"`
	Requested int64   `json:"requestedPresetId"`
	StepID    int64   `json:"loadingStepId"`
	Progress  float64 `json:"progress"`
	Active    bool    `json:"active"`
	OnGround  bool    `json:"onGround"`
	Pending   int     `json:"pendingVariableWrites"`
	Presets   []int64 `json:"presets"`
}

// Status returns a JSON snapshot of the loading state. It reads the
// published progress variables rather than the loader itself, so it is
// safe to call from any goroutine.
func (s *Service) Status(e dispatcher.Event) (any, error) {
	functionName := CmdStatus

	report := statusReport{
		Extension: s.deps.ExtensionName,
		Version:   s.deps.ExtensionVersion,
		Requested: s.deps.Vars.Int(loader.RequestVar),
		StepID:    s.deps.Vars.Int(loader.ProgressIDVar),
		Progress:  s.deps.Vars.Float(loader.ProgressVar),
		OnGround:  s.deps.Vars.Bool(loader.OnGroundVar),
		Presets:   s.deps.Procedures.IDs(),
	}
	report.Active = report.StepID > 0 || report.Progress > 0
	if s.deps.Store != nil {
		report.Pending = s.deps.Store.PendingWrites()
	}

	out, err := json.Marshal(report)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error marshalling status: %v`, err), "ERROR")
		return nil, err
	}
	return string(out), nil
}

// SaveVariables flushes dirty variables to the database and records a
// telemetry point when the client is available.
func (s *Service) SaveVariables(e dispatcher.Event) (any, error) {
	functionName := CmdVarsSave

	if s.deps.Store == nil {
		s.writeLog(functionName, "Variable store not configured", "WARN")
		return nil, fmt.Errorf("variable store not configured")
	}

	written, err := s.deps.Store.Flush()
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error flushing variables: %v`, err), "ERROR")
		return nil, err
	}
	s.writeLog(functionName, fmt.Sprintf(`Flushed %d variables`, written), "INFO")

	if s.deps.Telemetry != nil {
		point := telemetry.NewProgressPoint(
			s.deps.Vars.Int(loader.RequestVar),
			s.deps.Vars.Int(loader.ProgressIDVar),
			s.deps.Vars.Float(loader.ProgressVar),
			s.deps.Vars.Int(loader.ProgressIDVar) > 0,
		)
		if err := s.deps.Telemetry.WritePoint(context.Background(), "preset_runs", point); err != nil {
			s.writeLog(functionName, fmt.Sprintf(`Error writing telemetry point: %v`, err), "WARN")
		}
	}

	return written, nil
}

// Version reports the extension name and version.
func (s *Service) Version(e dispatcher.Event) (any, error) {
	return fmt.Sprintf("%s %s", s.deps.ExtensionName, s.deps.ExtensionVersion), nil
}
