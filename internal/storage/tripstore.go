// Package storage persists trips. Every mutating operation that guards the
// state machine is a conditional write: it applies only when the stored
// status (and driver, where relevant) still matches the caller's
// expectation, and reports whether it took effect. Callers translate a
// false return into a conflict; nothing here does read-then-write.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

var ErrNotFound = errors.New("trip not found")

type TripStore interface {
	CreateTrip(ctx context.Context, t *models.Trip) error
	GetTrip(ctx context.Context, id string) (*models.Trip, error)
	// TransitionStatus moves id from one status to another, conditional on
	// both the current status and the assigned driver.
	TransitionStatus(ctx context.Context, id string, from, to models.TripStatus, driverID string) (bool, error)
	// Reassign swaps the offered driver while the trip is pending,
	// recording the rejecting drivers and restamping the offer clock.
	// nextDriver may be empty: the trip stays pending with no driver
	// ("searching").
	Reassign(ctx context.Context, id, prevDriver, nextDriver string, rejected []string) (bool, error)
	// Settle moves the trip to a terminal status and writes the settled
	// amount in the same conditional update.
	Settle(ctx context.Context, id string, from, to models.TripStatus, amount float64) (bool, error)
	// SetDriverLocation is last-write-wins, applied only while the trip is
	// en route (heading_to_pickup or picked_up).
	SetDriverLocation(ctx context.Context, id string, loc models.Coord) (bool, error)
	// ListOfferedBefore returns pending trips whose current offer predates
	// the cutoff, for the offer-timeout monitor.
	ListOfferedBefore(ctx context.Context, cutoff time.Time) ([]*models.Trip, error)
}

type MemoryStore struct {
	mu    sync.RWMutex
	trips map[string]*models.Trip
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: make(map[string]*models.Trip)}
}

func (m *MemoryStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	cp.RejectedBy = append([]string(nil), t.RejectedBy...)
	if t.DriverLocation != nil {
		loc := *t.DriverLocation
		cp.DriverLocation = &loc
	}
	return &cp, nil
}

func (m *MemoryStore) TransitionStatus(ctx context.Context, id string, from, to models.TripStatus, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != from || t.DriverID != driverID {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) Reassign(ctx context.Context, id, prevDriver, nextDriver string, rejected []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != models.StatusPending || t.DriverID != prevDriver {
		return false, nil
	}
	t.DriverID = nextDriver
	t.RejectedBy = append([]string(nil), rejected...)
	t.DriverLocation = nil
	t.OfferedAt = time.Now()
	t.UpdatedAt = t.OfferedAt
	return true, nil
}

func (m *MemoryStore) Settle(ctx context.Context, id string, from, to models.TripStatus, amount float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != from {
		return false, nil
	}
	t.Status = to
	t.Amount = amount
	t.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) SetDriverLocation(ctx context.Context, id string, loc models.Coord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != models.StatusHeadingToPickup && t.Status != models.StatusPickedUp {
		return false, nil
	}
	c := loc
	t.DriverLocation = &c
	t.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) ListOfferedBefore(ctx context.Context, cutoff time.Time) ([]*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Trip
	for _, t := range m.trips {
		if t.Status != models.StatusPending || t.DriverID == "" {
			continue
		}
		if t.OfferedAt.Before(cutoff) {
			cp := *t
			cp.RejectedBy = append([]string(nil), t.RejectedBy...)
			out = append(out, &cp)
		}
	}
	return out, nil
}
