package device

import (
	"strings"
	"sync"
)

// Registry is the in-memory catalogue of devices seen on the radio network.
//
// It holds whatever the last discovery responses reported. There is no
// persistence: a restart starts empty and the next discovery cycle
// repopulates it. The audit trail records command history separately and
// is never read back into the registry.
//
// All public methods are thread-safe. Returned records are deep copies,
// so callers can never mutate registry state through a snapshot, and
// concurrent readers never observe a partially applied upsert.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
	}
}

// Upsert inserts or replaces the record for its ID.
//
// Replacement is wholesale: the stored record becomes exactly the given
// one, with no field merging. A device that stops reporting an attribute
// loses it on the next discovery. Most recent report wins.
func (r *Registry) Upsert(rec *Record) {
	if rec == nil || rec.ID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[rec.ID] = rec.DeepCopy()
}

// Get retrieves a device by ID.
// Returns ErrNotFound if the device has not been discovered.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) Get(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.DeepCopy(), nil
}

// FindByName retrieves a device by its human-readable name,
// case-insensitively. If several devices share a name the pick among
// them is unspecified.
// Returns ErrNotFound when no device matches.
func (r *Registry) FindByName(name string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if strings.EqualFold(rec.Name, name) {
			return rec.DeepCopy(), nil
		}
	}
	return nil, ErrNotFound
}

// List returns a point-in-time snapshot of all known devices.
// The returned records are deep copies; callers can safely modify them.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, *rec.DeepCopy())
	}
	return records
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Clear removes all records.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*Record)
}
