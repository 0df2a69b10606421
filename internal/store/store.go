// Package store persists named host variables to a local SQLite database so
// cockpit state survives across sessions, and restores them on startup.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/aguther/aircraft/internal/queue"
	"github.com/aguther/aircraft/internal/simvar"
)

// Manager handles the variable snapshot database and the background flush
// loop that drains dirty variable names into it.
type Manager struct {
	DB         *gorm.DB
	IsValid    bool
	SqlitePath string
	Logger     zerolog.Logger

	vars  simvar.Store
	dirty *queue.Queue[string]

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewManager creates a new persistence manager for the given variable store.
func NewManager(log zerolog.Logger, sqlitePath string, vars simvar.Store) *Manager {
	return &Manager{
		SqlitePath: sqlitePath,
		Logger:     log,
		vars:       vars,
		dirty:      queue.New[string](),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Connect opens the SQLite database and migrates the schema.
func (m *Manager) Connect() error {
	db, err := gorm.Open(sqlite.Open(m.SqlitePath), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("opening variable db at %s: %w", m.SqlitePath, err)
	}
	if err := db.AutoMigrate(&NamedVariable{}); err != nil {
		m.IsValid = false
		return fmt.Errorf("migrating variable schema: %w", err)
	}
	m.DB = db
	m.IsValid = true
	m.Logger.Info().Str("path", m.SqlitePath).Msg("Variable store connected")
	return nil
}

// Restore loads all persisted variables into the live store.
// Returns the number of variables restored.
func (m *Manager) Restore() (int, error) {
	if !m.IsValid {
		return 0, fmt.Errorf("variable db not connected")
	}
	rows := []NamedVariable{}
	if err := m.DB.Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("loading persisted variables: %w", err)
	}
	restored := 0
	for _, row := range rows {
		var value float64
		if err := json.Unmarshal(row.Value, &value); err != nil {
			m.Logger.Warn().Err(err).Str("name", row.Name).Msg("Skipping unreadable persisted variable")
			continue
		}
		m.vars.SetFloat(row.Name, value)
		restored++
	}
	m.Logger.Info().Int("count", restored).Msg("Restored persisted variables")
	return restored, nil
}

// MarkDirty queues variable names for the next flush.
func (m *Manager) MarkDirty(names ...string) {
	m.dirty.Push(names...)
}

// PendingWrites returns the number of queued dirty names.
func (m *Manager) PendingWrites() int {
	return m.dirty.Len()
}

// Flush writes all dirty variables to the database and returns how many
// rows were written.
func (m *Manager) Flush() (int, error) {
	if !m.IsValid {
		return 0, fmt.Errorf("variable db not connected")
	}
	names := m.dirty.GetAndEmpty()
	if len(names) == 0 {
		return 0, nil
	}

	// collapse repeated writes of the same variable
	unique := make(map[string]struct{}, len(names))
	rows := make([]NamedVariable, 0, len(names))
	for _, name := range names {
		if _, ok := unique[name]; ok {
			continue
		}
		unique[name] = struct{}{}
		value, err := json.Marshal(m.vars.Float(name))
		if err != nil {
			continue
		}
		rows = append(rows, NamedVariable{
			Name:  name,
			Value: datatypes.JSON(value),
		})
	}

	err := m.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("flushing %d variables: %w", len(rows), err)
	}
	m.Logger.Debug().Int("count", len(rows)).Msg("Flushed variables to disk")
	return len(rows), nil
}

// Start launches the periodic flush goroutine.
func (m *Manager) Start(interval time.Duration) {
	m.started = true
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := m.Flush(); err != nil {
					m.Logger.Error().Err(err).Msg("Periodic variable flush failed")
				}
			case <-m.stop:
				return
			}
		}
	}()
}

// Close flushes outstanding writes and stops the background loop.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() {
		close(m.stop)
		if m.started {
			<-m.done
		}
	})
	if !m.IsValid {
		return nil
	}
	if _, err := m.Flush(); err != nil {
		return err
	}
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
