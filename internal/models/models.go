package models

import "time"

// TransportMode represents how travelers move between two stops
type TransportMode string

const (
	ModeDriving   TransportMode = "driving"
	ModeWalking   TransportMode = "walking"
	ModeBicycling TransportMode = "bicycling"
	ModeFlight    TransportMode = "flight"
)

// IsValid checks if the transport mode is one of the known modes
func (m TransportMode) IsValid() bool {
	switch m {
	case ModeDriving, ModeWalking, ModeBicycling, ModeFlight:
		return true
	default:
		return false
	}
}

// Category is the closed set of stop kinds
type Category string

const (
	CategoryFood        Category = "food"
	CategoryActivity    Category = "activity"
	CategoryHotel       Category = "hotel"
	CategorySightseeing Category = "sightseeing"
	CategoryTransport   Category = "transport"
	CategoryOther       Category = "other"
)

// ParseCategory maps free text to a category, defaulting to other
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategoryFood, CategoryActivity, CategoryHotel, CategorySightseeing, CategoryTransport:
		return c
	default:
		return CategoryOther
	}
}

// LatLng is a WGS84 point in degrees
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point was never set
func (p LatLng) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Stop is one place in a trip itinerary.
// Day starts at 1; Order is only meaningful relative to other stops of the same day.
type Stop struct {
	ID           string    `json:"id"`
	TripID       string    `json:"trip_id"`
	Name         string    `json:"name"`
	Location     LatLng    `json:"location"`
	Day          int       `json:"day"`
	Order        int       `json:"order"`
	Category     Category  `json:"category"`
	Notes        string    `json:"notes,omitempty"`
	VisitMinutes int       `json:"visit_minutes,omitempty"`
	Cost         float64   `json:"cost,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Contact      string    `json:"contact,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StopPair identifies an ordered pair of stops
type StopPair struct {
	FromStopID string `json:"from_stop_id"`
	ToStopID   string `json:"to_stop_id"`
}

// TransportSegment is the persisted mode/distance/duration record for one adjacent stop pair
type TransportSegment struct {
	ID              string        `json:"id"`
	TripID          string        `json:"trip_id"`
	FromStopID      string        `json:"from_stop_id"`
	ToStopID        string        `json:"to_stop_id"`
	Mode            TransportMode `json:"mode"`
	DistanceMeters  int           `json:"distance_meters"`
	DurationSeconds int           `json:"duration_seconds"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Pair returns the stop pair the segment describes
func (s TransportSegment) Pair() StopPair {
	return StopPair{FromStopID: s.FromStopID, ToStopID: s.ToStopID}
}

// Trip is the collection of stops and segments scoped by trip id
type Trip struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Collaborative bool               `json:"collaborative"`
	Stops         []Stop             `json:"stops"`
	Segments      []TransportSegment `json:"segments"`
}

// Leg is one renderable path between two adjacent stops.
// A flight connection is rendered as three legs sharing the same stop pair.
type Leg struct {
	FromStopID      string        `json:"from_stop_id"`
	ToStopID        string        `json:"to_stop_id"`
	Mode            TransportMode `json:"mode"`
	DurationSeconds int           `json:"duration_seconds"`
	Coordinates     []LatLng      `json:"coordinates"`
	Approximate     bool          `json:"approximate,omitempty"` // straight-line fallback
	Label           string        `json:"label,omitempty"`
}

// Airport is a designated airport used for flight legs
type Airport struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Location LatLng `json:"location"`
}

// WriteOp is the kind of a segment write
type WriteOp string

const (
	WriteUpsert WriteOp = "UPSERT"
	WriteDelete WriteOp = "DELETE"
)

// SegmentWrite is one entry of an atomic segment batch write
type SegmentWrite struct {
	Op      WriteOp
	Segment TransportSegment
}

// TripSnapshot is the full stop/segment state of a trip as broadcast on the realtime channel.
// Receivers replace their local state with it wholesale.
type TripSnapshot struct {
	Origin string    `json:"origin"`
	SentAt time.Time `json:"sent_at"`
	Trip   Trip      `json:"trip"`
}
