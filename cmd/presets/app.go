package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aguther/aircraft/internal/config"
	"github.com/aguther/aircraft/internal/dispatcher"
	"github.com/aguther/aircraft/internal/handlers"
	"github.com/aguther/aircraft/internal/loader"
	"github.com/aguther/aircraft/internal/logging"
	"github.com/aguther/aircraft/internal/monitor"
	"github.com/aguther/aircraft/internal/procedure"
	"github.com/aguther/aircraft/internal/script"
	"github.com/aguther/aircraft/internal/simvar"
	"github.com/aguther/aircraft/internal/store"
	"github.com/aguther/aircraft/internal/telemetry"
	"github.com/aguther/aircraft/pkg/extension"

	"github.com/rs/zerolog"
)

// ExtensionVersion can be set at build time via ldflags.
var (
	ExtensionVersion string = "0.1.0"
	ExtensionName    string = "aircraft_presets"
)

// app holds the assembled subsystems for one CLI invocation.
type app struct {
	logManager *logging.Manager
	logger     *slog.Logger
	logFile    *os.File

	vars       simvar.Store
	procedures *procedure.Repository
	presets    *loader.Loader
	storeMgr   *store.Manager
	telemetry  *telemetry.Manager
	monitor    *monitor.Service
	handler    *extension.Handler

	sessionStart time.Time
}

// setupApp builds the full subsystem graph from the config directory.
// Optional subsystems that fail to come up are logged and left disabled
// rather than aborting the run.
func setupApp(configDir string) (*app, error) {
	a := &app{sessionStart: time.Now()}

	// Logging works before the config loads so config errors are visible.
	a.logManager = logging.NewManager()
	a.logger = a.logManager.Logger()

	if err := config.Load(configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config")
	}

	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	logFilePath := logging.LogFilePath(logsDir, ExtensionName, a.sessionStart)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		a.logger.Error("Failed to create/open log file!", "error", err, "path", logFilePath)
	} else {
		a.logFile = logFile
	}

	gelfAddress := ""
	if graylogCfg := config.GetGraylogConfig(); graylogCfg.Enabled {
		gelfAddress = graylogCfg.Address
	}
	if err := a.logManager.Setup(a.logFile, config.GetString("logLevel"), gelfAddress); err != nil {
		a.logger.Warn("GELF forwarding unavailable", "error", err)
	}
	a.logger = a.logManager.Logger()
	a.logger.Info("Logging to file", "path", logFilePath)

	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}
	zlog := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	// Preset definitions
	a.procedures = procedure.NewRepository()
	presetsCfg := config.GetPresetsConfig()
	count, err := a.procedures.LoadDir(presetsCfg.Dir)
	if err != nil {
		a.logger.Warn("Failed to load preset definitions", "dir", presetsCfg.Dir, "error", err)
	} else {
		a.logger.Info("Loaded preset definitions", "dir", presetsCfg.Dir, "count", count)
	}

	// Variable store with optional sqlite persistence
	memVars := simvar.NewMemoryStore()
	a.vars = memVars
	storeCfg := config.GetStoreConfig()
	if storeCfg.Enabled {
		a.storeMgr = store.NewManager(zlog, storeCfg.SqlitePath, memVars)
		if err := a.storeMgr.Connect(); err != nil {
			a.logger.Warn("Variable persistence disabled", "error", err)
			a.storeMgr = nil
		} else {
			restored, err := a.storeMgr.Restore()
			if err != nil {
				a.logger.Warn("Failed to restore variables", "error", err)
			} else {
				a.logger.Info("Restored variables", "count", restored)
			}
			a.vars = store.NewTrackingStore(memVars, a.storeMgr)
			a.storeMgr.Start(storeCfg.FlushInterval)
		}
	}

	// Telemetry
	telemetryCfg := config.GetTelemetryConfig()
	if telemetryCfg.Enabled {
		backupPath := filepath.Join(logsDir, ExtensionName+".telemetry.gz")
		a.telemetry = telemetry.NewManager(zlog, backupPath)
		if err := a.telemetry.Connect(); err != nil {
			a.logger.Warn("Telemetry disabled", "error", err)
			a.telemetry = nil
		}
	}

	// Preset loader module
	a.presets, err = loader.New(loader.Dependencies{
		Vars:       a.vars,
		Script:     script.NewExprExecutor(a.vars),
		Procedures: a.procedures,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating preset loader: %w", err)
	}

	// Attach loading state to every log record via the published signals
	a.logManager.IsLoading = func() bool {
		return a.vars.Int(loader.ProgressIDVar) > 0
	}
	a.logManager.GetPresetID = func() int64 {
		return a.vars.Int(loader.RequestVar)
	}
	a.logManager.GetStepID = func() int64 {
		return a.vars.Int(loader.ProgressIDVar)
	}

	// Dispatcher and command handlers
	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	handlerService := handlers.NewService(handlers.Dependencies{
		Vars:             a.vars,
		Procedures:       a.procedures,
		Store:            a.storeMgr,
		Telemetry:        a.telemetry,
		LogManager:       a.logManager,
		ExtensionName:    ExtensionName,
		ExtensionVersion: ExtensionVersion,
	})
	handlerService.RegisterAll(eventDispatcher)

	// Status monitor
	a.monitor = monitor.NewService(monitor.Dependencies{
		Vars:       a.vars,
		Store:      a.storeMgr,
		Telemetry:  a.telemetry,
		LogManager: a.logManager,
		StatusDir:  logsDir,
		Interval:   config.GetMonitorInterval(),
		IsTelemetryValid: func() bool {
			return a.telemetry != nil && a.telemetry.IsValid
		},
	})

	a.handler = extension.NewHandler(ExtensionVersion, eventDispatcher, a.logger)
	a.handler.RegisterModule(a.presets)

	return a, nil
}

// close shuts subsystems down in reverse setup order.
func (a *app) close() {
	a.handler.Shutdown()
	a.monitor.Stop()
	if a.telemetry != nil {
		a.telemetry.Close()
	}
	if a.storeMgr != nil {
		if err := a.storeMgr.Close(); err != nil {
			a.logger.Error("Failed to close variable store", "error", err)
		}
	}
	if err := a.logManager.Close(); err != nil {
		a.logger.Error("Failed to close log manager", "error", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
