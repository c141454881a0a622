package segments

import (
	"context"
	"errors"
	"testing"

	"github.com/passbi/passbi_itinerary/internal/itinerary"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downProvider struct{}

func (downProvider) RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error) {
	return nil, errors.New("down")
}

var (
	pointA = models.LatLng{Lat: 48.8566, Lng: 2.3522}
	pointB = models.LatLng{Lat: 48.8746, Lng: 2.3522} // ~2 km from A
	pointC = models.LatLng{Lat: 43.2965, Lng: 5.3698} // ~650 km from B
)

func newCache() *Cache {
	cfg := routing.DefaultConfig()
	resolver := routing.NewResolver(cfg)
	synth := routing.NewSynthesizer(cfg, resolver, downProvider{}, routing.NewAirportIndex(routing.DefaultAirports))
	return New("trip-1", resolver, synth)
}

func scenarioStops() []models.Stop {
	return []models.Stop{
		{ID: "A", TripID: "trip-1", Location: pointA, Day: 1, Order: 0},
		{ID: "B", TripID: "trip-1", Location: pointB, Day: 1, Order: 1},
		{ID: "C", TripID: "trip-1", Location: pointC, Day: 1, Order: 2},
	}
}

func pairSet(segs []models.TransportSegment) map[models.StopPair]bool {
	set := make(map[models.StopPair]bool)
	for _, s := range segs {
		set[s.Pair()] = true
	}
	return set
}

func adjacentSet(stops []models.Stop) map[models.StopPair]bool {
	set := make(map[models.StopPair]bool)
	for _, p := range itinerary.AdjacentPairs(stops) {
		set[p] = true
	}
	return set
}

func TestRegenerateScenario(t *testing.T) {
	c := newCache()
	stops := scenarioStops()

	batch := c.Regenerate(context.Background(), stops)
	assert.Empty(t, batch.Deletes)
	require.Len(t, batch.Upserts, 2)

	ab, ok := c.Get(models.StopPair{FromStopID: "A", ToStopID: "B"})
	require.True(t, ok)
	assert.Equal(t, models.ModeDriving, ab.Mode)
	assert.InDelta(t, 2000, ab.DistanceMeters, 50)
	assert.Equal(t, "trip-1", ab.TripID)
	assert.NotEmpty(t, ab.ID)

	bc, ok := c.Get(models.StopPair{FromStopID: "B", ToStopID: "C"})
	require.True(t, ok)
	assert.Equal(t, models.ModeFlight, bc.Mode)

	conns := c.Connections(context.Background(), stops)
	require.Len(t, conns, 2)
	assert.Len(t, conns[0].Legs, 1)
	require.Len(t, conns[1].Legs, 3)
	assert.Greater(t, len(conns[1].Legs[1].Coordinates), 2)

	legs := Legs(conns)
	assert.Len(t, legs, 4)
	assert.Equal(t, "A", legs[0].FromStopID)
	assert.Equal(t, "C", legs[3].ToStopID)
}

func TestRegenerateMatchesAdjacency(t *testing.T) {
	c := newCache()
	stops := scenarioStops()
	c.Regenerate(context.Background(), stops)

	moved := itinerary.Move(stops, 2, 0, nil)
	batch := c.Regenerate(context.Background(), moved)

	assert.Len(t, batch.Deletes, 2)
	assert.Len(t, batch.Upserts, 2)
	assert.Equal(t, adjacentSet(moved), pairSet(c.Segments()))

	ca, ok := c.Get(models.StopPair{FromStopID: "C", ToStopID: "A"})
	require.True(t, ok)
	assert.Equal(t, models.ModeFlight, ca.Mode)
}

func TestIncrementalAfterMoveLeavesStaleSegments(t *testing.T) {
	c := newCache()
	stops := scenarioStops()
	c.Regenerate(context.Background(), stops)

	moved := itinerary.Move(stops, 2, 0, nil)
	batch := c.Incremental(context.Background(), moved)

	// C->A is new; A->B already exists; B->C is stale but still cached
	require.Len(t, batch.Upserts, 1)
	assert.Equal(t, models.StopPair{FromStopID: "C", ToStopID: "A"}, batch.Upserts[0].Pair())
	assert.Equal(t, 3, c.Len())

	// rendering only ever uses adjacent pairs
	conns := c.Connections(context.Background(), moved)
	require.Len(t, conns, 2)
	assert.Equal(t, "C", conns[0].From.ID)
	assert.Equal(t, "B", conns[1].To.ID)
}

func TestIncremental(t *testing.T) {
	t.Run("Adds only missing pairs", func(t *testing.T) {
		c := newCache()
		stops := scenarioStops()[:2]
		c.Incremental(context.Background(), stops)
		first, _ := c.Get(models.StopPair{FromStopID: "A", ToStopID: "B"})

		stops = scenarioStops()
		batch := c.Incremental(context.Background(), stops)
		require.Len(t, batch.Upserts, 1)
		assert.Equal(t, "B", batch.Upserts[0].FromStopID)

		again, _ := c.Get(models.StopPair{FromStopID: "A", ToStopID: "B"})
		assert.Equal(t, first.ID, again.ID)
	})

	t.Run("No-op when every pair has a segment", func(t *testing.T) {
		c := newCache()
		c.Regenerate(context.Background(), scenarioStops())

		batch := c.Incremental(context.Background(), scenarioStops())
		assert.True(t, batch.Empty())
	})

	t.Run("Changed stop content keeps the segment", func(t *testing.T) {
		c := newCache()
		stops := scenarioStops()
		c.Regenerate(context.Background(), stops)

		stops[1].Location = pointC
		batch := c.Incremental(context.Background(), stops)
		assert.True(t, batch.Empty())

		ab, _ := c.Get(models.StopPair{FromStopID: "A", ToStopID: "B"})
		assert.Equal(t, models.ModeDriving, ab.Mode)
	})

	t.Run("Single stop has no pairs", func(t *testing.T) {
		c := newCache()
		batch := c.Incremental(context.Background(), scenarioStops()[:1])
		assert.True(t, batch.Empty())
	})
}

func TestMissingCoordinates(t *testing.T) {
	c := newCache()
	stops := scenarioStops()
	stops[1].Location = models.LatLng{}

	c.Regenerate(context.Background(), stops)
	assert.Equal(t, 2, c.Len(), "pairs without coordinates still get a segment")

	ab, _ := c.Get(models.StopPair{FromStopID: "A", ToStopID: "B"})
	assert.Equal(t, models.ModeDriving, ab.Mode)
	assert.Equal(t, 0, ab.DurationSeconds)

	conns := c.Connections(context.Background(), stops)
	require.Len(t, conns, 2)
	assert.True(t, conns[0].HasSegment)
	assert.Empty(t, conns[0].Legs)
	assert.Empty(t, conns[1].Legs)
}

func TestRemoveStop(t *testing.T) {
	c := newCache()
	stops := scenarioStops()
	c.Regenerate(context.Background(), stops)

	batch := c.RemoveStop("B")
	assert.Len(t, batch.Deletes, 2)
	assert.Equal(t, 0, c.Len())

	remaining := []models.Stop{stops[0], stops[2]}
	added := c.Incremental(context.Background(), remaining)
	require.Len(t, added.Upserts, 1)
	assert.Equal(t, models.StopPair{FromStopID: "A", ToStopID: "C"}, added.Upserts[0].Pair())
}

func TestSetMode(t *testing.T) {
	c := newCache()
	stops := scenarioStops()
	c.Regenerate(context.Background(), stops)
	before, _ := c.Get(models.StopPair{FromStopID: "A", ToStopID: "B"})

	seg, batch, err := c.SetMode(context.Background(), stops, models.StopPair{FromStopID: "A", ToStopID: "B"}, models.ModeWalking)
	require.NoError(t, err)
	assert.Equal(t, before.ID, seg.ID)
	assert.Equal(t, models.ModeWalking, seg.Mode)
	// 2 km at 5 km/h
	assert.InDelta(t, 1440, seg.DurationSeconds, 40)
	require.Len(t, batch.Upserts, 1)

	conns := c.Connections(context.Background(), stops)
	assert.Equal(t, models.ModeWalking, conns[0].Legs[0].Mode)

	_, _, err = c.SetMode(context.Background(), stops, models.StopPair{FromStopID: "A", ToStopID: "C"}, models.ModeDriving)
	assert.ErrorIs(t, err, ErrNotAdjacent)

	_, _, err = c.SetMode(context.Background(), stops, models.StopPair{FromStopID: "A", ToStopID: "B"}, "teleport")
	assert.Error(t, err)
}

func TestLoadDropsGeometry(t *testing.T) {
	c := newCache()
	stops := scenarioStops()
	c.Regenerate(context.Background(), stops)
	segs := c.Segments()

	c.Load(segs[:1])
	assert.Equal(t, 1, c.Len())

	conns := c.Connections(context.Background(), stops)
	require.Len(t, conns, 2)
	drawn := 0
	for _, conn := range conns {
		if conn.HasSegment {
			drawn++
			assert.NotEmpty(t, conn.Legs, "geometry is synthesized lazily")
		} else {
			assert.Empty(t, conn.Legs)
		}
	}
	assert.Equal(t, 1, drawn)
}

func TestBatchWrites(t *testing.T) {
	b := Batch{
		Upserts: []models.TransportSegment{{ID: "new"}},
		Deletes: []models.TransportSegment{{ID: "old"}},
	}
	writes := b.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, models.WriteDelete, writes[0].Op)
	assert.Equal(t, "old", writes[0].Segment.ID)
	assert.Equal(t, models.WriteUpsert, writes[1].Op)
	assert.False(t, b.Empty())
	assert.True(t, Batch{}.Empty())
}
