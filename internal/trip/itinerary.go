package trip

import (
	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/itinerary"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"github.com/passbi/passbi_itinerary/internal/segments"
)

// Totals aggregates distance and time over segments and stop visits
type Totals struct {
	DistanceMeters int `json:"distance_meters"`
	TravelSeconds  int `json:"travel_seconds"`
	VisitSeconds   int `json:"visit_seconds"`
	TotalSeconds   int `json:"total_seconds"`
}

func (t *Totals) addSegment(s models.TransportSegment) {
	t.DistanceMeters += s.DistanceMeters
	t.TravelSeconds += s.DurationSeconds
	t.TotalSeconds += s.DurationSeconds
}

func (t *Totals) addVisit(s models.Stop) {
	t.VisitSeconds += s.VisitMinutes * 60
	t.TotalSeconds += s.VisitMinutes * 60
}

// Day is one day group of the itinerary
type Day struct {
	Day    int           `json:"day"`
	Stops  []models.Stop `json:"stops"`
	Totals Totals        `json:"totals"`
}

// Connection is the rendered link between two adjacent stops.
// Segment is nil when the pair has no segment yet; Legs is empty when nothing can be drawn.
type Connection struct {
	FromStopID string                   `json:"from_stop_id"`
	ToStopID   string                   `json:"to_stop_id"`
	Segment    *models.TransportSegment `json:"segment"`
	Legs       []models.Leg             `json:"legs"`
}

// Itinerary is the rendered view of a trip
type Itinerary struct {
	TripID        string            `json:"trip_id"`
	Name          string            `json:"name"`
	Collaborative bool              `json:"collaborative"`
	Stops         []models.Stop     `json:"stops"`
	Days          []Day             `json:"days"`
	Connections   []Connection      `json:"connections"`
	Legs          []models.Leg      `json:"legs"`
	Bounds        geo.BoundingBox   `json:"bounds"`
	Totals        Totals            `json:"totals"`
	Warnings      []routing.Warning `json:"warnings,omitempty"`
}

func buildItinerary(t models.Trip, stops []models.Stop, conns []segments.Connection) *Itinerary {
	it := &Itinerary{
		TripID:        t.ID,
		Name:          t.Name,
		Collaborative: t.Collaborative,
		Stops:         stops,
		Connections:   make([]Connection, 0, len(conns)),
		Legs:          segments.Legs(conns),
	}
	if it.Stops == nil {
		it.Stops = []models.Stop{}
	}
	if it.Legs == nil {
		it.Legs = []models.Leg{}
	}

	perDay := make(map[int]*Totals)
	dayTotals := func(day int) *Totals {
		if perDay[day] == nil {
			perDay[day] = &Totals{}
		}
		return perDay[day]
	}

	for _, s := range stops {
		it.Totals.addVisit(s)
		dayTotals(s.Day).addVisit(s)
	}

	for _, c := range conns {
		conn := Connection{
			FromStopID: c.From.ID,
			ToStopID:   c.To.ID,
			Legs:       c.Legs,
		}
		if conn.Legs == nil {
			conn.Legs = []models.Leg{}
		}
		if c.HasSegment {
			seg := c.Segment
			conn.Segment = &seg
			it.Totals.addSegment(seg)
			// travel counts toward the day it leaves from
			dayTotals(c.From.Day).addSegment(seg)

			if w, ok := checkPair(c.From, c.To, seg.Mode); ok {
				it.Warnings = append(it.Warnings, w)
			}
		}
		it.Connections = append(it.Connections, conn)
	}

	groups := itinerary.GroupByDay(stops)
	for _, day := range itinerary.Days(stops) {
		it.Days = append(it.Days, Day{
			Day:    day,
			Stops:  groups[day],
			Totals: *dayTotals(day),
		})
	}
	if it.Days == nil {
		it.Days = []Day{}
	}

	var points []models.LatLng
	for _, s := range itinerary.Located(stops) {
		points = append(points, s.Location)
	}
	it.Bounds = geo.Bounds(points)

	return it
}
