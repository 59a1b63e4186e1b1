// Package registry tracks driver identity, availability and last-known
// location. It is the only owner of driver records; the matcher and trip
// service go through it for every driver query and reservation.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

var ErrNotFound = errors.New("driver not found")

// Registry is the driver-side contract. Reserve and Release implement the
// mutual exclusion required by assignment: a driver can back at most one
// active trip, and two concurrent matches must not both take the same
// driver.
type Registry interface {
	Register(ctx context.Context, driverID string) error
	Deactivate(ctx context.Context, driverID string) error
	SetAvailability(ctx context.Context, driverID string, available bool) error
	ReportLocation(ctx context.Context, driverID string, loc models.Coord) error
	// ListAvailable snapshots available, non-busy drivers with a location
	// reported within the staleness window. A driver whose app went dark
	// ages out and stops receiving offers.
	ListAvailable(ctx context.Context) ([]models.DriverSnapshot, error)
	// Reserve atomically marks a driver busy. Returns false if the driver
	// is already reserved by a concurrent assignment.
	Reserve(ctx context.Context, driverID string) (bool, error)
	Release(ctx context.Context, driverID string) error
}

// Memory is the in-process Registry used for tests and single-node runs.
type Memory struct {
	mu        sync.RWMutex
	drivers   map[string]*models.Driver
	staleness time.Duration

	now func() time.Time
}

func NewMemory(staleness time.Duration) *Memory {
	return &Memory{
		drivers:   make(map[string]*models.Driver),
		staleness: staleness,
		now:       time.Now,
	}
}

func (m *Memory) Register(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drivers[driverID]; ok {
		d.Active = true
		return nil
	}
	m.drivers[driverID] = &models.Driver{ID: driverID, Active: true}
	return nil
}

// Deactivate takes a driver out of rotation. Records are never deleted.
func (m *Memory) Deactivate(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrNotFound
	}
	d.Active = false
	d.Available = false
	return nil
}

func (m *Memory) SetAvailability(ctx context.Context, driverID string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrNotFound
	}
	d.Available = available
	return nil
}

// ReportLocation is an unconditional last-write-wins overwrite; an unknown
// driver is created on first report.
func (m *Memory) ReportLocation(ctx context.Context, driverID string, loc models.Coord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		d = &models.Driver{ID: driverID, Active: true}
		m.drivers[driverID] = d
	}
	c := loc
	d.Loc = &c
	d.Updated = m.now()
	return nil
}

func (m *Memory) ListAvailable(ctx context.Context) ([]models.DriverSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.now().Add(-m.staleness)
	out := make([]models.DriverSnapshot, 0, len(m.drivers))
	for _, d := range m.drivers {
		if !d.Active || !d.Available || d.Busy || d.Loc == nil {
			continue
		}
		if m.staleness > 0 && d.Updated.Before(cutoff) {
			continue
		}
		out = append(out, models.DriverSnapshot{ID: d.ID, Loc: *d.Loc})
	}
	return out, nil
}

func (m *Memory) Reserve(ctx context.Context, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return false, ErrNotFound
	}
	if d.Busy {
		return false, nil
	}
	d.Busy = true
	return true, nil
}

func (m *Memory) Release(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return ErrNotFound
	}
	d.Busy = false
	return nil
}
