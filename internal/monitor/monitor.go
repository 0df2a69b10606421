// Package monitor runs the background status service. It periodically
// snapshots the published loading state, writes it to a status file next to
// the config, and forwards a telemetry point when the client is available.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aguther/aircraft/internal/loader"
	"github.com/aguther/aircraft/internal/logging"
	"github.com/aguther/aircraft/internal/simvar"
	"github.com/aguther/aircraft/internal/store"
	"github.com/aguther/aircraft/internal/telemetry"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Vars             simvar.Store
	Store            *store.Manager
	Telemetry        *telemetry.Manager
	LogManager       *logging.Manager
	StatusDir        string
	Interval         time.Duration
	IsTelemetryValid func() bool
}

// Service manages status monitoring.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	if deps.IsTelemetryValid == nil {
		deps.IsTelemetryValid = func() bool { return false }
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// snapshot is the status file payload.
type snapshot struct {
	Time          time.Time `json:"time"`
	RequestedID   int64     `json:"requestedPresetId"`
	LoadingStepID int64     `json:"loadingStepId"`
	Progress      float64   `json:"progress"`
	OnGround      bool      `json:"onGround"`
	PendingWrites int       `json:"pendingVariableWrites"`
}

// GetStatus returns the current loading status built from the published
// progress variables.
func (s *Service) GetStatus() snapshot {
	snap := snapshot{
		Time:          time.Now(),
		RequestedID:   s.deps.Vars.Int(loader.RequestVar),
		LoadingStepID: s.deps.Vars.Int(loader.ProgressIDVar),
		Progress:      s.deps.Vars.Float(loader.ProgressVar),
		OnGround:      s.deps.Vars.Bool(loader.OnGroundVar),
	}
	if s.deps.Store != nil {
		snap.PendingWrites = s.deps.Store.PendingWrites()
	}
	return snap
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				snap := s.GetStatus()

				if statusFile != nil {
					out, err := json.MarshalIndent(snap, "", "  ")
					if err != nil {
						out = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(out, '\n'))
				}

				if s.deps.IsTelemetryValid() {
					point := telemetry.NewProgressPoint(
						snap.RequestedID,
						snap.LoadingStepID,
						snap.Progress,
						snap.LoadingStepID > 0,
					)
					if err := s.deps.Telemetry.WritePoint(context.Background(), "preset_runs", point); err != nil {
						logger.Error("Error writing status telemetry point", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
