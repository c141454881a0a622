package routing

import (
	"math"

	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/models"
)

// Resolution is the mode and travel estimate for one stop pair.
// Distance and duration are always computed together.
type Resolution struct {
	Mode            models.TransportMode
	DistanceKm      float64
	DistanceMeters  int
	DurationSeconds int
}

// Resolver assigns a transport mode and duration to a stop pair without network calls
type Resolver struct {
	cfg Config
}

// NewResolver creates a resolver for the given configuration
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve infers the mode between two stops using their categories as hints
func (r *Resolver) Resolve(from, to models.Stop) Resolution {
	if from.Location.IsZero() || to.Location.IsZero() {
		// No usable distance: timing unknown, keep the safe default mode
		return Resolution{Mode: models.ModeDriving}
	}

	d := geo.DistanceKm(from.Location, to.Location)
	mode := r.ModeForDistance(d, isHub(from) && isHub(to))
	return r.resolution(mode, d)
}

// ResolveWithMode computes distance and duration for an explicitly chosen mode
func (r *Resolver) ResolveWithMode(from, to models.Stop, mode models.TransportMode) Resolution {
	if from.Location.IsZero() || to.Location.IsZero() {
		return Resolution{Mode: mode}
	}
	return r.resolution(mode, geo.DistanceKm(from.Location, to.Location))
}

// ModeForDistance picks the mode for a straight-line distance.
// Only flight and driving are ever selected; walking and bicycling are user overrides.
func (r *Resolver) ModeForDistance(distanceKm float64, hubs bool) models.TransportMode {
	threshold := r.cfg.FlightThresholdKm
	if hubs {
		threshold = r.cfg.HubFlightThresholdKm
	}
	if distanceKm > threshold {
		return models.ModeFlight
	}
	return models.ModeDriving
}

// Duration estimates seconds for distanceKm at the mode's average speed
func (r *Resolver) Duration(distanceKm float64, mode models.TransportMode) int {
	speed := r.Speed(mode)
	if speed <= 0 {
		return 0
	}
	return int(math.Round(distanceKm / speed * 3600))
}

// Speed returns the average speed in km/h for a mode
func (r *Resolver) Speed(mode models.TransportMode) float64 {
	switch mode {
	case models.ModeWalking:
		return r.cfg.Speeds.Walking
	case models.ModeBicycling:
		return r.cfg.Speeds.Bicycling
	case models.ModeFlight:
		return r.cfg.Speeds.Flight
	default:
		return r.cfg.Speeds.Driving
	}
}

func (r *Resolver) resolution(mode models.TransportMode, distanceKm float64) Resolution {
	return Resolution{
		Mode:            mode,
		DistanceKm:      distanceKm,
		DistanceMeters:  int(math.Round(distanceKm * 1000)),
		DurationSeconds: r.Duration(distanceKm, mode),
	}
}

func isHub(s models.Stop) bool {
	return s.Category == models.CategoryTransport
}
