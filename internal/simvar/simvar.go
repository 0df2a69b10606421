// Package simvar provides access to named host simulation variables.
//
// The host sim owns these signals; everything in this extension reads and
// writes them through the Store interface so tests can drive the values
// directly.
package simvar

import (
	"sort"
	"sync"
)

// Store is a read/write view of named host variables. Values are numeric on
// the wire; boolean and integer accessors are conveniences over the float
// representation.
type Store interface {
	Float(name string) float64
	SetFloat(name string, value float64)
	Int(name string) int64
	SetInt(name string, value int64)
	Bool(name string) bool
	SetBool(name string, value bool)
	Names() []string
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	m    sync.RWMutex
	vars map[string]float64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vars: make(map[string]float64),
	}
}

// Float returns the value of a named variable, 0 if unset.
func (s *MemoryStore) Float(name string) float64 {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.vars[name]
}

// SetFloat writes a named variable.
func (s *MemoryStore) SetFloat(name string, value float64) {
	s.m.Lock()
	defer s.m.Unlock()
	s.vars[name] = value
}

// Int returns the value truncated to an integer.
func (s *MemoryStore) Int(name string) int64 {
	return int64(s.Float(name))
}

// SetInt writes an integer value.
func (s *MemoryStore) SetInt(name string, value int64) {
	s.SetFloat(name, float64(value))
}

// Bool returns true for any non-zero value.
func (s *MemoryStore) Bool(name string) bool {
	return s.Float(name) != 0
}

// SetBool writes 1 or 0.
func (s *MemoryStore) SetBool(name string, value bool) {
	if value {
		s.SetFloat(name, 1)
	} else {
		s.SetFloat(name, 0)
	}
}

// Names returns all variable names currently set, sorted.
func (s *MemoryStore) Names() []string {
	s.m.RLock()
	defer s.m.RUnlock()
	names := make([]string, 0, len(s.vars))
	for n := range s.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
