package geo

import (
	"math"

	"github.com/example/trip-dispatch/internal/models"
)

// Metric names a distance function used by the matcher.
type Metric string

const (
	// MetricHaversine is the great-circle distance and the default.
	MetricHaversine Metric = "haversine"
	// MetricPlanar is raw coordinate-degree Euclidean distance. Geometrically
	// wrong at scale; kept selectable because the legacy behavior matched on it.
	MetricPlanar Metric = "planar"
)

// DistanceKm returns the distance between two points under the given metric.
func DistanceKm(m Metric, a, b models.Coord) float64 {
	if m == MetricPlanar {
		return PlanarDegrees(a, b)
	}
	return HaversineKm(a, b)
}

// HaversineKm is the great-circle distance in kilometers.
func HaversineKm(a, b models.Coord) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon) / 1000.0
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// PlanarDegrees is the Euclidean distance in degree space. Only ordering
// matters to callers, so no unit conversion is applied.
func PlanarDegrees(a, b models.Coord) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}
