package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/trip"
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
)

// LegsGeoJSON exports the itinerary as a GeoJSON FeatureCollection:
// one Point per located stop and one LineString per drawn leg.
func (h *Handler) LegsGeoJSON(c *fiber.Ctx) error {
	it, err := h.trips.Itinerary(c.UserContext(), c.Params("tripId"))
	if err != nil {
		return writeError(c, err)
	}

	fc, err := FeatureCollection(it)
	if err != nil {
		return err
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}

	c.Set(fiber.HeaderContentType, "application/geo+json")
	return c.Send(data)
}

// FeatureCollection converts an itinerary to GeoJSON features
func FeatureCollection(it *trip.Itinerary) (*gjson.FeatureCollection, error) {
	fc := &gjson.FeatureCollection{Features: []*gjson.Feature{}}

	for _, s := range it.Stops {
		if s.Location.IsZero() {
			continue
		}
		point, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{s.Location.Lng, s.Location.Lat})
		if err != nil {
			return nil, fmt.Errorf("stop %s: %w", s.ID, err)
		}
		fc.Features = append(fc.Features, &gjson.Feature{
			ID:       s.ID,
			Geometry: point,
			Properties: map[string]interface{}{
				"kind":     "stop",
				"name":     s.Name,
				"day":      s.Day,
				"order":    s.Order,
				"category": s.Category,
			},
		})
	}

	for i, leg := range it.Legs {
		line, err := geom.NewLineString(geom.XY).SetCoords(geo.Coords(leg.Coordinates))
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		props := map[string]interface{}{
			"kind":             "leg",
			"from_stop_id":     leg.FromStopID,
			"to_stop_id":       leg.ToStopID,
			"mode":             leg.Mode,
			"duration_seconds": leg.DurationSeconds,
			"approximate":      leg.Approximate,
		}
		if leg.Label != "" {
			props["label"] = leg.Label
		}
		fc.Features = append(fc.Features, &gjson.Feature{
			ID:         fmt.Sprintf("%s-%s-%d", leg.FromStopID, leg.ToStopID, i),
			Geometry:   line,
			Properties: props,
		})
	}

	return fc, nil
}
