// Package registry holds the in-memory authoritative set of machine records.
// It is the single consistency boundary of the service: the tick loop, the
// HTTP command handlers and the ERP sync all mutate machines through it, and
// every mutation runs under one mutex so readers never observe a record
// mid-update.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tacogroup/prodlive/internal/domain/models"
)

// ErrNotFound indicates no machine matches the requested location and id.
var ErrNotFound = errors.New("machine not found")

// ErrInvariant indicates a machine record violates the production invariants
// and was left untouched.
var ErrInvariant = errors.New("machine invariant violated")

type key struct {
	location string
	id       int
}

// Registry owns all machine records. Other components receive copies only.
type Registry struct {
	mu       sync.RWMutex
	machines map[key]*models.Machine
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{machines: make(map[key]*models.Machine)}
}

// Count returns the number of registered machines.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.machines)
}

// Get returns a copy of the machine at (location, id).
func (r *Registry) Get(location string, id int) (models.Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.machines[key{location, id}]
	if !ok {
		return models.Machine{}, ErrNotFound
	}
	return *m, nil
}

// List returns copies of all machines ordered by location then id.
func (r *Registry) List() []models.Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []models.Machine {
	out := make([]models.Machine, 0, len(r.machines))
	for _, m := range r.machines {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Snapshot builds the dashboard view of the whole fleet.
func (r *Registry) Snapshot() models.Snapshot {
	return models.BuildSnapshot(r.List())
}

// Put inserts a machine record. It is used by rehydration and seeding only;
// inserting a duplicate (location, id) is an error.
func (r *Registry) Put(m models.Machine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{m.Location, m.ID}
	if _, exists := r.machines[k]; exists {
		return fmt.Errorf("duplicate machine %s/%d", m.Location, m.ID)
	}
	stored := m
	r.machines[k] = &stored
	return nil
}

// SetRunning marks the machine running and stamps last_tick_time when it was
// previously unset. Starting an already-running machine is a no-op success.
func (r *Registry) SetRunning(location string, id int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[key{location, id}]
	if !ok {
		return ErrNotFound
	}
	m.Status = models.StatusRunning
	if m.LastTickTime == nil {
		ts := now.UTC()
		m.LastTickTime = &ts
	}
	return nil
}

// SetPaused marks the machine paused regardless of its prior status.
func (r *Registry) SetPaused(location string, id int) error {
	return r.setStatus(location, id, models.StatusPaused)
}

// SetStopped marks the machine stopped regardless of its prior status.
func (r *Registry) SetStopped(location string, id int) error {
	return r.setStatus(location, id, models.StatusStopped)
}

func (r *Registry) setStatus(location string, id int, status models.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[key{location, id}]
	if !ok {
		return ErrNotFound
	}
	m.Status = status
	return nil
}

// SetAdvisory updates the ERP-sourced advisory fields and reports whether
// anything changed.
func (r *Registry) SetAdvisory(location string, id int, workOrder, pipeSize string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[key{location, id}]
	if !ok {
		return false, ErrNotFound
	}
	if m.WorkOrder == workOrder && m.PipeSize == pipeSize {
		return false, nil
	}
	m.WorkOrder = workOrder
	m.PipeSize = pipeSize
	return true, nil
}

// AdvanceProduction credits the machine with one meter per whole
// seconds_per_meter interval elapsed since last_tick_time. last_tick_time
// advances by exactly the credited intervals, so sub-interval time carries
// over to the next cycle. The produced quantity is clamped to the target and
// the machine transitions to completed when the clamp is hit.
//
// It reports whether the record changed. Machines that are not running, have
// no rate, or whose interval has not yet elapsed are left untouched.
func (r *Registry) AdvanceProduction(location string, id int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[key{location, id}]
	if !ok {
		return false, ErrNotFound
	}
	if m.Status != models.StatusRunning || m.SecondsPerMeter <= 0 {
		return false, nil
	}
	if m.ProducedQty < 0 || m.ProducedQty > m.TargetQty {
		return false, fmt.Errorf("%w: %s/%d produced=%d target=%d",
			ErrInvariant, m.Location, m.ID, m.ProducedQty, m.TargetQty)
	}
	if m.ProducedQty == m.TargetQty {
		// Nothing left to produce.
		return false, nil
	}

	now = now.UTC()
	if m.LastTickTime == nil {
		// First tick after a restart: establish the baseline, produce nothing.
		ts := now
		m.LastTickTime = &ts
		return false, nil
	}

	interval := time.Duration(m.SecondsPerMeter) * time.Second
	elapsed := now.Sub(*m.LastTickTime)
	if elapsed < interval {
		return false, nil
	}

	intervals := int(elapsed / interval)
	m.ProducedQty += intervals
	ts := m.LastTickTime.Add(time.Duration(intervals) * interval)
	m.LastTickTime = &ts

	if m.ProducedQty >= m.TargetQty {
		m.ProducedQty = m.TargetQty
		m.Status = models.StatusCompleted
	}
	return true, nil
}
