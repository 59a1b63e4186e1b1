// Package matcher finds the nearest eligible driver for a pickup point.
// It is a pure query: the trip service performs the actual assignment
// transactionally, so a match result carries no side effects.
package matcher

import (
	"context"
	"errors"
	"sort"

	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/models"
)

var ErrNoDriverAvailable = errors.New("no driver available")

type Candidates interface {
	ListAvailable(ctx context.Context) ([]models.DriverSnapshot, error)
}

type Service struct {
	Candidates Candidates
	Metric     geo.Metric
}

func New(candidates Candidates, metric geo.Metric) *Service {
	return &Service{Candidates: candidates, Metric: metric}
}

// FindNearest scans the available pool and returns the closest driver not
// in the exclude set. Candidates are ordered by driver id before the scan
// and ties keep the first minimum, so results are reproducible. A linear
// scan is fine at this pool size; a geohash index is the scale-out path.
func (s *Service) FindNearest(ctx context.Context, pickup models.Coord, exclude map[string]bool) (string, error) {
	cands, err := s.Candidates.ListAvailable(ctx)
	if err != nil {
		return "", err
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })

	best := ""
	bestDist := 0.0
	for _, c := range cands {
		if exclude[c.ID] {
			continue
		}
		d := geo.DistanceKm(s.Metric, pickup, c.Loc)
		if best == "" || d < bestDist {
			best = c.ID
			bestDist = d
		}
	}
	if best == "" {
		return "", ErrNoDriverAvailable
	}
	return best, nil
}
