package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

func TestSetAvailabilityUnknownDriver(t *testing.T) {
	m := NewMemory(2 * time.Minute)
	if err := m.SetAvailability(context.Background(), "ghost", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAvailableFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2 * time.Minute)

	for _, id := range []string{"a", "b", "c", "d"} {
		_ = m.Register(ctx, id)
		_ = m.ReportLocation(ctx, id, models.Coord{Lat: 1, Lon: 1})
		_ = m.SetAvailability(ctx, id, true)
	}
	// b toggled off, c busy, d deactivated
	_ = m.SetAvailability(ctx, "b", false)
	if ok, _ := m.Reserve(ctx, "c"); !ok {
		t.Fatal("reserve c failed")
	}
	_ = m.Deactivate(ctx, "d")

	got, err := m.ListAvailable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only driver a, got %+v", got)
	}
}

func TestListAvailableExcludesStaleLocations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2 * time.Minute)
	base := time.Now()
	m.now = func() time.Time { return base }

	_ = m.ReportLocation(ctx, "fresh", models.Coord{Lat: 1, Lon: 1})
	_ = m.SetAvailability(ctx, "fresh", true)

	m.now = func() time.Time { return base.Add(-3 * time.Minute) }
	_ = m.ReportLocation(ctx, "stale", models.Coord{Lat: 2, Lon: 2})
	_ = m.SetAvailability(ctx, "stale", true)

	m.now = func() time.Time { return base }
	got, err := m.ListAvailable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Fatalf("expected only fresh driver, got %+v", got)
	}
}

func TestListAvailableExcludesDriversWithoutLocation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	_ = m.Register(ctx, "noloc")
	_ = m.SetAvailability(ctx, "noloc", true)
	got, _ := m.ListAvailable(ctx)
	if len(got) != 0 {
		t.Fatalf("driver without location must be excluded, got %+v", got)
	}
}

func TestReserveMutualExclusion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	_ = m.Register(ctx, "d1")

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Reserve(ctx, "d1")
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful reservation, got %d", wins)
	}

	if err := m.Release(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := m.Reserve(ctx, "d1"); !ok {
		t.Fatal("expected reservation to succeed after release")
	}
}
