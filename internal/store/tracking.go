package store

import (
	"github.com/aguther/aircraft/internal/simvar"
)

// TrackingStore wraps a simvar.Store and marks every written variable
// dirty on the manager so the periodic flush picks it up.
type TrackingStore struct {
	inner   simvar.Store
	manager *Manager
}

// NewTrackingStore returns a store that forwards all reads and writes to
// inner and reports writes to manager.
func NewTrackingStore(inner simvar.Store, manager *Manager) *TrackingStore {
	return &TrackingStore{
		inner:   inner,
		manager: manager,
	}
}

func (t *TrackingStore) Float(name string) float64 {
	return t.inner.Float(name)
}

func (t *TrackingStore) SetFloat(name string, value float64) {
	t.inner.SetFloat(name, value)
	t.manager.MarkDirty(name)
}

func (t *TrackingStore) Int(name string) int64 {
	return t.inner.Int(name)
}

func (t *TrackingStore) SetInt(name string, value int64) {
	t.inner.SetInt(name, value)
	t.manager.MarkDirty(name)
}

func (t *TrackingStore) Bool(name string) bool {
	return t.inner.Bool(name)
}

func (t *TrackingStore) SetBool(name string, value bool) {
	t.inner.SetBool(name, value)
	t.manager.MarkDirty(name)
}

func (t *TrackingStore) Names() []string {
	return t.inner.Names()
}
