package geo

import (
	"fmt"
	"math"

	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-polyline"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm
const EarthRadiusKm = 6371.0

// BoundingBox is the min/max extent of a set of points
type BoundingBox struct {
	Northeast models.LatLng `json:"northeast"`
	Southwest models.LatLng `json:"southwest"`
}

// DistanceKm calculates the great-circle distance between two points using the Haversine formula
func DistanceKm(a, b models.LatLng) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	// Rounding can push h slightly above 1 for antipodal points
	h = math.Min(1, h)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// DistanceMeters is DistanceKm rounded to whole meters
func DistanceMeters(a, b models.LatLng) int {
	return int(math.Round(DistanceKm(a, b) * 1000))
}

// DecodePolyline decodes an encoded polyline with 1e5 precision.
// Callers must not pass corrupt strings; whatever was decoded before the error is returned with it.
func DecodePolyline(encoded string) ([]models.LatLng, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	points := make([]models.LatLng, 0, len(coords))
	for _, c := range coords {
		points = append(points, models.LatLng{Lat: c[0], Lng: c[1]})
	}
	if err != nil {
		return points, fmt.Errorf("failed to decode polyline: %w", err)
	}
	return points, nil
}

// EncodePolyline encodes points with 1e5 precision
func EncodePolyline(points []models.LatLng) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}

// Bounds computes the bounding box of the points.
// Empty input returns the degenerate box at the origin.
func Bounds(points []models.LatLng) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}

	mp := geom.NewMultiPoint(geom.XY).MustSetCoords(Coords(points))
	b := mp.Bounds()

	return BoundingBox{
		Northeast: models.LatLng{Lat: b.Max(1), Lng: b.Max(0)},
		Southwest: models.LatLng{Lat: b.Min(1), Lng: b.Min(0)},
	}
}

// Coords converts points to go-geom XY coordinates (x = lng, y = lat)
func Coords(points []models.LatLng) []geom.Coord {
	coords := make([]geom.Coord, len(points))
	for i, p := range points {
		coords[i] = geom.Coord{p.Lng, p.Lat}
	}
	return coords
}

// Interpolate returns the point at fraction t along the straight chord from a to b
func Interpolate(a, b models.LatLng, t float64) models.LatLng {
	t = math.Max(0, math.Min(1, t))
	return models.LatLng{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}
