package procedure

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Repository holds all registered preset procedures keyed by preset ID.
// Lookups happen on every tick while a load request is pending, so the
// repository keeps everything in memory behind a single lock.
//
// The repository owns the Procedure values; callers receive shared read-only
// references that stay valid for the repository's lifetime.
type Repository struct {
	m          sync.RWMutex
	procedures map[int64]*Procedure
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		procedures: make(map[int64]*Procedure),
	}
}

// Get returns the procedure registered for the given preset ID.
func (r *Repository) Get(id int64) (*Procedure, bool) {
	r.m.RLock()
	defer r.m.RUnlock()
	p, ok := r.procedures[id]
	return p, ok
}

// Register adds a validated procedure. Registering a preset ID twice is an
// error since it would silently change what a cockpit request loads.
func (r *Repository) Register(p *Procedure) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.m.Lock()
	defer r.m.Unlock()
	if existing, ok := r.procedures[p.ID]; ok {
		return fmt.Errorf("preset id %d already registered as %q", p.ID, existing.Name)
	}
	r.procedures[p.ID] = p
	return nil
}

// IDs returns all registered preset IDs in ascending order.
func (r *Repository) IDs() []int64 {
	r.m.RLock()
	defer r.m.RUnlock()
	ids := make([]int64, 0, len(r.procedures))
	for id := range r.procedures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered procedures.
func (r *Repository) Len() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return len(r.procedures)
}

// LoadFile parses a single preset definition file and registers it.
func (r *Repository) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading preset file: %w", err)
	}
	p := &Procedure{}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parsing preset file %s: %w", path, err)
	}
	if err := r.Register(p); err != nil {
		return fmt.Errorf("registering preset from %s: %w", path, err)
	}
	return nil
}

// LoadDir loads every .json preset definition in the given directory.
// Returns the number of presets loaded.
func (r *Repository) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading presets directory: %w", err)
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, e.Name())); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
