package routing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingProvider always fails
type failingProvider struct {
	calls atomic.Int32
}

func (p *failingProvider) RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error) {
	p.calls.Add(1)
	return nil, errors.New("provider down")
}

// detourProvider returns origin, a midpoint and destination
type detourProvider struct {
	mu    sync.Mutex
	modes []models.TransportMode
}

func (p *detourProvider) RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error) {
	p.mu.Lock()
	p.modes = append(p.modes, mode)
	p.mu.Unlock()
	return []models.LatLng{origin, geo.Interpolate(origin, destination, 0.5), destination}, nil
}

// slowProvider blocks until the context is done
type slowProvider struct{}

func (slowProvider) RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func pairFor(resolver *Resolver, from, to models.Stop) Pair {
	r := resolver.Resolve(from, to)
	return Pair{
		From: from,
		To:   to,
		Segment: models.TransportSegment{
			FromStopID:      from.ID,
			ToStopID:        to.ID,
			Mode:            r.Mode,
			DistanceMeters:  r.DistanceMeters,
			DurationSeconds: r.DurationSeconds,
		},
	}
}

func TestSynthesizerGroundLeg(t *testing.T) {
	cfg := DefaultConfig()
	resolver := NewResolver(cfg)
	a := testStop("A", paris, models.CategoryFood)
	b := testStop("B", parisNord, models.CategoryHotel)

	t.Run("Uses provider polyline verbatim", func(t *testing.T) {
		provider := &detourProvider{}
		synth := NewSynthesizer(cfg, resolver, provider, NewAirportIndex(DefaultAirports))
		p := pairFor(resolver, a, b)

		legs := synth.Leg(context.Background(), p)
		require.Len(t, legs, 1)
		assert.Equal(t, models.ModeDriving, legs[0].Mode)
		assert.Len(t, legs[0].Coordinates, 3)
		assert.False(t, legs[0].Approximate)
		assert.Equal(t, p.Segment.DurationSeconds, legs[0].DurationSeconds, "provider timing does not overwrite the estimate")
		assert.Equal(t, "A", legs[0].FromStopID)
		assert.Equal(t, "B", legs[0].ToStopID)
	})

	t.Run("Falls back to a straight line", func(t *testing.T) {
		provider := &failingProvider{}
		synth := NewSynthesizer(cfg, resolver, provider, nil)

		legs := synth.Leg(context.Background(), pairFor(resolver, a, b))
		require.Len(t, legs, 1)
		assert.Equal(t, []models.LatLng{paris, parisNord}, legs[0].Coordinates)
		assert.True(t, legs[0].Approximate)
		assert.Equal(t, int32(1), provider.calls.Load(), "no retry at this layer")
	})

	t.Run("Times out slow providers", func(t *testing.T) {
		slowCfg := cfg
		slowCfg.ProviderTimeout = 20 * time.Millisecond
		synth := NewSynthesizer(slowCfg, resolver, slowProvider{}, nil)

		legs := synth.Leg(context.Background(), pairFor(resolver, a, b))
		require.Len(t, legs, 1)
		assert.True(t, legs[0].Approximate)
	})

	t.Run("Explicit walking mode is requested as walking", func(t *testing.T) {
		provider := &detourProvider{}
		synth := NewSynthesizer(cfg, resolver, provider, nil)
		p := pairFor(resolver, a, b)
		p.Segment.Mode = models.ModeWalking

		legs := synth.Leg(context.Background(), p)
		require.Len(t, legs, 1)
		assert.Equal(t, models.ModeWalking, legs[0].Mode)
		assert.Equal(t, []models.TransportMode{models.ModeWalking}, provider.modes)
	})

	t.Run("Missing coordinates omit the leg", func(t *testing.T) {
		synth := NewSynthesizer(cfg, resolver, &detourProvider{}, nil)
		nowhere := testStop("X", models.LatLng{}, models.CategoryOther)

		assert.Nil(t, synth.Leg(context.Background(), pairFor(resolver, a, nowhere)))
	})
}

func TestSynthesizerFlight(t *testing.T) {
	cfg := DefaultConfig()
	resolver := NewResolver(cfg)
	b := testStop("B", parisNord, models.CategoryHotel)
	c := testStop("C", marseille, models.CategorySightseeing)

	t.Run("Ground, air, ground", func(t *testing.T) {
		provider := &detourProvider{}
		synth := NewSynthesizer(cfg, resolver, provider, NewAirportIndex(DefaultAirports))
		p := pairFor(resolver, b, c)
		require.Equal(t, models.ModeFlight, p.Segment.Mode)

		legs := synth.Leg(context.Background(), p)
		require.Len(t, legs, 3)

		assert.Equal(t, models.ModeDriving, legs[0].Mode)
		assert.Equal(t, models.ModeFlight, legs[1].Mode)
		assert.Equal(t, models.ModeDriving, legs[2].Mode)

		assert.Greater(t, len(legs[1].Coordinates), 2, "air leg is curved")
		assert.Len(t, legs[1].Coordinates, cfg.ArcSamples+1)
		assert.Equal(t, "CDG-BCN", legs[1].Label)

		assert.Equal(t, parisNord, legs[0].Coordinates[0])
		assert.Equal(t, marseille, legs[2].Coordinates[len(legs[2].Coordinates)-1])

		for _, leg := range legs {
			assert.Equal(t, "B", leg.FromStopID)
			assert.Equal(t, "C", leg.ToStopID)
			assert.Greater(t, leg.DurationSeconds, 0)
		}

		// the provider is only asked for the ground legs
		assert.Equal(t, []models.TransportMode{models.ModeDriving, models.ModeDriving}, provider.modes)
	})

	t.Run("Ground fallbacks inside a flight", func(t *testing.T) {
		synth := NewSynthesizer(cfg, resolver, &failingProvider{}, NewAirportIndex(DefaultAirports))

		legs := synth.Leg(context.Background(), pairFor(resolver, b, c))
		require.Len(t, legs, 3)
		assert.True(t, legs[0].Approximate)
		assert.False(t, legs[1].Approximate)
		assert.True(t, legs[2].Approximate)
	})

	t.Run("Airport lookup failure draws a straight flight line", func(t *testing.T) {
		synth := NewSynthesizer(cfg, resolver, &detourProvider{}, NewAirportIndex(nil))
		p := pairFor(resolver, b, c)

		legs := synth.Leg(context.Background(), p)
		require.Len(t, legs, 1)
		assert.Equal(t, models.ModeFlight, legs[0].Mode)
		assert.Equal(t, []models.LatLng{parisNord, marseille}, legs[0].Coordinates)
		assert.Equal(t, p.Segment.DurationSeconds, legs[0].DurationSeconds)
	})

	t.Run("Same airport at both ends keeps the composite", func(t *testing.T) {
		one := NewAirportIndex([]models.Airport{DefaultAirports[0]})
		provider := &detourProvider{}
		synth := NewSynthesizer(cfg, resolver, provider, one)

		legs := synth.Leg(context.Background(), pairFor(resolver, b, c))
		require.Len(t, legs, 3)

		assert.Equal(t, models.ModeDriving, legs[0].Mode)
		assert.Equal(t, []models.LatLng{parisNord, parisNord}, legs[0].Coordinates)
		assert.Equal(t, 0, legs[0].DurationSeconds)

		air := legs[1]
		assert.Equal(t, models.ModeFlight, air.Mode)
		assert.True(t, air.Approximate)
		assert.Empty(t, air.Label)
		require.Len(t, air.Coordinates, cfg.ArcSamples+1)
		assert.Equal(t, parisNord, air.Coordinates[0])
		assert.Equal(t, marseille, air.Coordinates[cfg.ArcSamples])
		assert.Equal(t, resolver.Duration(geo.DistanceKm(parisNord, marseille), models.ModeFlight), air.DurationSeconds)

		assert.Equal(t, []models.LatLng{marseille, marseille}, legs[2].Coordinates)
		assert.Empty(t, provider.modes, "no ground routes requested")
	})
}

func TestSynthesizerFlightDefaultAirports(t *testing.T) {
	cfg := DefaultConfig()
	resolver := NewResolver(cfg)
	airports := NewAirportIndex(DefaultAirports)
	synth := NewSynthesizer(cfg, resolver, &detourProvider{}, airports)

	tests := []struct {
		name string
		from models.LatLng
		to   models.LatLng
	}{
		{"Perth to Adelaide", models.LatLng{Lat: -31.9505, Lng: 115.8605}, models.LatLng{Lat: -34.9285, Lng: 138.6007}},
		{"Dakar to Bamako", models.LatLng{Lat: 14.6928, Lng: -17.4467}, models.LatLng{Lat: 12.6392, Lng: -8.0029}},
		{"Anchorage to Juneau", models.LatLng{Lat: 61.2181, Lng: -149.9003}, models.LatLng{Lat: 58.3019, Lng: -134.4197}},
		{"Paris to Barcelona", parisNord, models.LatLng{Lat: 41.3874, Lng: 2.1686}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from := testStop("F", tt.from, models.CategoryHotel)
			to := testStop("T", tt.to, models.CategoryHotel)
			p := pairFor(resolver, from, to)
			require.Greater(t, geo.DistanceKm(tt.from, tt.to), 500.0)
			require.Equal(t, models.ModeFlight, p.Segment.Mode)

			legs := synth.Leg(context.Background(), p)
			require.Len(t, legs, 3)
			assert.Equal(t, models.ModeDriving, legs[0].Mode)
			assert.Equal(t, models.ModeFlight, legs[1].Mode)
			assert.Equal(t, models.ModeDriving, legs[2].Mode)
			assert.Greater(t, len(legs[1].Coordinates), 2, "air leg is curved")
			assert.Equal(t, tt.from, legs[0].Coordinates[0])
			assert.Equal(t, tt.to, legs[2].Coordinates[len(legs[2].Coordinates)-1])
		})
	}
}

func TestSynthesizerLegsKeepOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 2
	resolver := NewResolver(cfg)
	synth := NewSynthesizer(cfg, resolver, &failingProvider{}, NewAirportIndex(DefaultAirports))

	stops := []models.Stop{
		testStop("A", paris, models.CategoryFood),
		testStop("B", parisNord, models.CategoryHotel),
		testStop("C", marseille, models.CategorySightseeing),
		testStop("D", lyon, models.CategoryOther),
	}
	var pairs []Pair
	for i := 0; i+1 < len(stops); i++ {
		pairs = append(pairs, pairFor(resolver, stops[i], stops[i+1]))
	}

	results := synth.Legs(context.Background(), pairs)
	require.Len(t, results, 3)
	for i, legs := range results {
		require.NotEmpty(t, legs, "fallback always yields coordinates")
		for _, leg := range legs {
			assert.Equal(t, pairs[i].From.ID, leg.FromStopID)
			assert.Equal(t, pairs[i].To.ID, leg.ToStopID)
			assert.GreaterOrEqual(t, len(leg.Coordinates), 2)
		}
	}
	assert.Len(t, results[1], 3)
}
