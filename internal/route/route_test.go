package route

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

type fixedClient struct {
	km    float64
	err   error
	calls int
}

func (f *fixedClient) RouteKm(ctx context.Context, from, to models.Coord) (float64, error) {
	f.calls++
	return f.km, f.err
}

var (
	from = models.Coord{Lat: -1.9441, Lon: 30.0619}
	to   = models.Coord{Lat: -1.9706, Lon: 30.1044}
)

func TestEstimatorUsesClient(t *testing.T) {
	e := &Estimator{Client: &fixedClient{km: 6.2}}
	if got := e.DistanceKm(context.Background(), from, to); got != 6.2 {
		t.Fatalf("expected 6.2, got %f", got)
	}
}

func TestEstimatorFallsBackToHaversine(t *testing.T) {
	e := &Estimator{Client: &fixedClient{err: errors.New("down")}}
	got := e.DistanceKm(context.Background(), from, to)
	// straight-line distance between the two points is ~5.5km
	if math.Abs(got-5.5) > 0.5 {
		t.Fatalf("expected haversine fallback ~5.5, got %f", got)
	}
}

func TestEstimatorCaches(t *testing.T) {
	c := &fixedClient{km: 4.0}
	e := &Estimator{Client: c, Cache: NewCache(time.Minute)}
	_ = e.DistanceKm(context.Background(), from, to)
	_ = e.DistanceKm(context.Background(), from, to)
	if c.calls != 1 {
		t.Fatalf("expected a single backend call, got %d", c.calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(1 * time.Millisecond)
	c.Set(from, to, 9)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(from, to); ok {
		t.Fatal("expected expired entry")
	}
}
