package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/models"
)

type fakeCandidates struct{ drivers []models.DriverSnapshot }

func (f *fakeCandidates) ListAvailable(ctx context.Context) ([]models.DriverSnapshot, error) {
	return f.drivers, nil
}

// pickup in Kigali with drivers roughly 0.8, 1.2 and 3.0 km out.
var pickup = models.Coord{Lat: -1.9441, Lon: 30.0619}

func kigaliPool() *fakeCandidates {
	return &fakeCandidates{drivers: []models.DriverSnapshot{
		{ID: "far", Loc: models.Coord{Lat: -1.9711, Lon: 30.0619}},  // ~3.0 km
		{ID: "near", Loc: models.Coord{Lat: -1.9513, Lon: 30.0619}}, // ~0.8 km
		{ID: "mid", Loc: models.Coord{Lat: -1.9549, Lon: 30.0619}},  // ~1.2 km
	}}
}

func TestFindNearest(t *testing.T) {
	s := New(kigaliPool(), geo.MetricHaversine)
	got, err := s.FindNearest(context.Background(), pickup, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "near" {
		t.Fatalf("expected near, got %s", got)
	}
}

func TestFindNearestWithExclusion(t *testing.T) {
	s := New(kigaliPool(), geo.MetricHaversine)
	got, err := s.FindNearest(context.Background(), pickup, map[string]bool{"near": true})
	if err != nil {
		t.Fatal(err)
	}
	if got != "mid" {
		t.Fatalf("expected mid after excluding near, got %s", got)
	}

	got, err = s.FindNearest(context.Background(), pickup, map[string]bool{"near": true, "mid": true})
	if err != nil {
		t.Fatal(err)
	}
	if got != "far" {
		t.Fatalf("expected far, got %s", got)
	}
}

func TestFindNearestExhausted(t *testing.T) {
	s := New(kigaliPool(), geo.MetricHaversine)
	_, err := s.FindNearest(context.Background(), pickup, map[string]bool{"near": true, "mid": true, "far": true})
	if !errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}
}

func TestFindNearestEmptyPool(t *testing.T) {
	s := New(&fakeCandidates{}, geo.MetricHaversine)
	if _, err := s.FindNearest(context.Background(), pickup, nil); !errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}
}

func TestFindNearestTieBreaksByDriverID(t *testing.T) {
	same := models.Coord{Lat: -1.9513, Lon: 30.0619}
	f := &fakeCandidates{drivers: []models.DriverSnapshot{
		{ID: "zeta", Loc: same},
		{ID: "alpha", Loc: same},
	}}
	s := New(f, geo.MetricHaversine)
	got, err := s.FindNearest(context.Background(), pickup, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "alpha" {
		t.Fatalf("tie must break by ascending id, got %s", got)
	}
}

func TestFindNearestPlanarMetric(t *testing.T) {
	s := New(kigaliPool(), geo.MetricPlanar)
	got, err := s.FindNearest(context.Background(), pickup, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "near" {
		t.Fatalf("expected near under planar metric, got %s", got)
	}
}
