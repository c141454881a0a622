package routing

import (
	"context"
	"fmt"

	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pair is one adjacent stop pair with its resolved segment
type Pair struct {
	From    models.Stop
	To      models.Stop
	Segment models.TransportSegment
}

// Synthesizer turns adjacent stop pairs into renderable legs.
// Provider and airport failures fall back to straight lines and are never returned.
type Synthesizer struct {
	cfg      Config
	resolver *Resolver
	provider RouteProvider
	airports AirportLookup
}

// NewSynthesizer creates a synthesizer. provider and airports may be nil, in which
// case every leg uses the straight-line fallback.
func NewSynthesizer(cfg Config, resolver *Resolver, provider RouteProvider, airports AirportLookup) *Synthesizer {
	return &Synthesizer{
		cfg:      cfg,
		resolver: resolver,
		provider: provider,
		airports: airports,
	}
}

// Legs synthesizes every pair concurrently, bounded by cfg.MaxConcurrency.
// The result is index-aligned with pairs; a nil entry means the pair has no drawn path.
func (s *Synthesizer) Legs(ctx context.Context, pairs []Pair) [][]models.Leg {
	results := make([][]models.Leg, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.MaxConcurrency > 0 {
		g.SetLimit(s.cfg.MaxConcurrency)
	}

	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			// Leg failures are isolated; nothing here cancels siblings
			results[i] = s.Leg(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Leg synthesizes the legs for one pair: one leg for ground modes, three for flights.
// It returns nil when the stops lack coordinates.
func (s *Synthesizer) Leg(ctx context.Context, p Pair) []models.Leg {
	if p.From.Location.IsZero() || p.To.Location.IsZero() {
		logrus.WithFields(logrus.Fields{
			"from_stop_id": p.From.ID,
			"to_stop_id":   p.To.ID,
		}).Debug("Skipping leg without coordinates")
		return nil
	}

	mode := p.Segment.Mode
	if !mode.IsValid() {
		mode = models.ModeDriving
	}

	if mode == models.ModeFlight {
		return s.flightLegs(ctx, p)
	}

	leg := s.groundLeg(ctx, p.From.Location, p.To.Location, mode)
	leg.FromStopID = p.From.ID
	leg.ToStopID = p.To.ID
	leg.DurationSeconds = p.Segment.DurationSeconds
	return []models.Leg{leg}
}

// flightLegs builds ground, air and ground legs through the nearest airports.
// When one airport serves both ends the stops act as their own airfields.
func (s *Synthesizer) flightLegs(ctx context.Context, p Pair) []models.Leg {
	origin, destination := p.From.Location, p.To.Location
	log := logrus.WithFields(logrus.Fields{
		"from_stop_id": p.From.ID,
		"to_stop_id":   p.To.ID,
	})

	depart, arrive, err := s.airportsFor(ctx, origin, destination)
	if err != nil {
		log.WithError(err).Warn("Airport lookup failed, using straight flight line")
		return []models.Leg{{
			FromStopID:      p.From.ID,
			ToStopID:        p.To.ID,
			Mode:            models.ModeFlight,
			DurationSeconds: p.Segment.DurationSeconds,
			Coordinates:     []models.LatLng{origin, destination},
			Approximate:     true,
		}}
	}

	var toAirport, fromAirport models.Leg
	if depart.Code == arrive.Code {
		// One airport serves both ends: fly stop to stop
		log.WithField("airport", depart.Code).Debug("Both ends share an airport, flying between the stops")
		depart = models.Airport{Location: origin}
		arrive = models.Airport{Location: destination}
		toAirport = transferLeg(origin)
		fromAirport = transferLeg(destination)
	} else {
		toAirport = s.groundLeg(ctx, origin, depart.Location, models.ModeDriving)
		toAirport.DurationSeconds = s.resolver.Duration(geo.DistanceKm(origin, depart.Location), models.ModeDriving)
		toAirport.Label = depart.Code

		fromAirport = s.groundLeg(ctx, arrive.Location, destination, models.ModeDriving)
		fromAirport.DurationSeconds = s.resolver.Duration(geo.DistanceKm(arrive.Location, destination), models.ModeDriving)
		fromAirport.Label = arrive.Code
	}

	flightKm := geo.DistanceKm(depart.Location, arrive.Location)
	air := models.Leg{
		Mode:            models.ModeFlight,
		DurationSeconds: s.resolver.Duration(flightKm, models.ModeFlight),
		Coordinates:     FlightArc(depart.Location, arrive.Location, Curvature(flightKm, s.cfg), s.cfg.ArcSamples),
		Approximate:     depart.Code == "",
	}
	if depart.Code != "" {
		air.Label = fmt.Sprintf("%s-%s", depart.Code, arrive.Code)
	}

	legs := []models.Leg{toAirport, air, fromAirport}
	for i := range legs {
		legs[i].FromStopID = p.From.ID
		legs[i].ToStopID = p.To.ID
	}
	return legs
}

func (s *Synthesizer) airportsFor(ctx context.Context, origin, destination models.LatLng) (models.Airport, models.Airport, error) {
	if s.airports == nil {
		return models.Airport{}, models.Airport{}, ErrNoAirport
	}

	depart, err := s.airports.NearestAirport(ctx, origin)
	if err != nil {
		return models.Airport{}, models.Airport{}, fmt.Errorf("origin airport: %w", err)
	}
	arrive, err := s.airports.NearestAirport(ctx, destination)
	if err != nil {
		return models.Airport{}, models.Airport{}, fmt.Errorf("destination airport: %w", err)
	}
	return depart, arrive, nil
}

// transferLeg is the zero-length ground leg of a stop that is its own airfield
func transferLeg(p models.LatLng) models.Leg {
	return models.Leg{
		Mode:        models.ModeDriving,
		Coordinates: []models.LatLng{p, p},
		Approximate: true,
	}
}

// groundLeg asks the provider for a realistic path, falling back to a straight line
func (s *Synthesizer) groundLeg(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode) models.Leg {
	leg := models.Leg{Mode: mode}

	points, err := s.request(ctx, origin, destination, mode)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"mode":  mode,
			"error": err,
		}).Warn("Route provider failed, using straight line")
		leg.Coordinates = []models.LatLng{origin, destination}
		leg.Approximate = true
		return leg
	}

	leg.Coordinates = points
	return leg
}

func (s *Synthesizer) request(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode) ([]models.LatLng, error) {
	if s.provider == nil {
		return nil, ErrRouteUnavailable
	}

	if s.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		defer cancel()
	}

	points, err := s.provider.RequestRoute(ctx, origin, destination, mode, s.cfg.Realistic)
	if err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: provider returned %d points", ErrRouteUnavailable, len(points))
	}
	return points, nil
}
