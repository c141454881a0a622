package routing

import (
	"math"

	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/models"
)

// Curvature scales the arc bow with flight distance, capped at cfg.MaxCurvature
func Curvature(distanceKm float64, cfg Config) float64 {
	if cfg.CurvatureDistanceKm <= 0 {
		return cfg.MaxCurvature
	}
	return cfg.MaxCurvature * math.Min(1, distanceKm/cfg.CurvatureDistanceKm)
}

// FlightArc samples a quadratic Bezier curve from a to b whose control point sits
// off the chord midpoint by curvature times the chord length.
// It returns samples+1 points including both endpoints.
func FlightArc(a, b models.LatLng, curvature float64, samples int) []models.LatLng {
	if samples < 1 {
		samples = 1
	}

	// Interpolate across the antimeridian instead of around the globe
	end := b
	if d := end.Lng - a.Lng; d > 180 {
		end.Lng -= 360
	} else if d < -180 {
		end.Lng += 360
	}

	mid := geo.Interpolate(a, end, 0.5)
	dLat := end.Lat - a.Lat
	dLng := end.Lng - a.Lng
	// Samples are convex combinations of a, control and end, so a clamped
	// control point keeps the whole arc off the poles
	control := models.LatLng{
		Lat: math.Max(-90, math.Min(90, mid.Lat+curvature*dLng)),
		Lng: mid.Lng - curvature*dLat,
	}

	points := make([]models.LatLng, 0, samples+1)
	for i := 0; i <= samples; i++ {
		t := float64(i) / float64(samples)
		u := 1 - t
		p := models.LatLng{
			Lat: u*u*a.Lat + 2*u*t*control.Lat + t*t*end.Lat,
			Lng: u*u*a.Lng + 2*u*t*control.Lng + t*t*end.Lng,
		}
		p.Lng = normalizeLng(p.Lng)
		points = append(points, p)
	}
	points[len(points)-1] = b
	return points
}

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
