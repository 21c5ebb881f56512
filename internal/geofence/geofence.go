// Package geofence computes distances to the work site and decides zone membership
package geofence

import (
	"math"

	"dawam/internal/models"
)

const earthRadiusKm = 6371

// Evaluation is the result of checking a coordinate against a work site
type Evaluation struct {
	DistanceKm float64 `json:"distance_km"`
	InZone     bool    `json:"in_zone"`
}

// Distance returns the great-circle distance between a and b in kilometres
func Distance(a, b models.Coordinate) float64 {
	latRad1 := a.Latitude * math.Pi / 180
	latRad2 := b.Latitude * math.Pi / 180

	diffLat := latRad2 - latRad1
	diffLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(diffLat/2)*math.Sin(diffLat/2) +
		math.Cos(latRad1)*math.Cos(latRad2)*
			math.Sin(diffLon/2)*math.Sin(diffLon/2)
	// rounding can push h just past 1 for antipodal points
	h = math.Min(math.Max(h, 0), 1)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// InZone reports whether distanceKm lies inside the radius; the boundary counts as inside
func InZone(distanceKm, radiusKm float64) bool {
	return distanceKm <= radiusKm
}

// Evaluate checks a coordinate against the site snapshot
func Evaluate(site models.WorkSite, at models.Coordinate) Evaluation {
	d := Distance(at, site.Center())
	return Evaluation{
		DistanceKm: d,
		InZone:     InZone(d, site.RadiusKm),
	}
}
