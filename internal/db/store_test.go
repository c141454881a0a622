package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/trip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"

	assert.Equal(t,
		"host=localhost port=5432 dbname=passbi_itinerary user=postgres password=secret sslmode=disable",
		cfg.ConnString())
}

// testStore connects to the database named by TEST_DB_HOST, skipping otherwise
func testStore(t *testing.T) *Store {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set")
	}

	cfg := DefaultConfig()
	cfg.Host = host
	if name := os.Getenv("TEST_DB_NAME"); name != "" {
		cfg.Database = name
	}
	cfg.Password = os.Getenv("TEST_DB_PASSWORD")

	ctx := context.Background()
	pool, err := NewPool(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	tripID := uuid.NewString()
	require.NoError(t, store.CreateTrip(ctx, models.Trip{ID: tripID, Name: "Lisbon", Collaborative: true}))

	now := time.Now().UTC().Truncate(time.Millisecond)
	stops := []models.Stop{
		{ID: uuid.NewString(), Name: "Belem", Location: models.LatLng{Lat: 38.6916, Lng: -9.2160}, Day: 1, Order: 0, Category: models.CategorySightseeing, Tags: []string{"tower"}, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), Name: "Alfama", Location: models.LatLng{Lat: 38.7118, Lng: -9.1300}, Day: 1, Order: 1, Category: models.CategoryFood, VisitMinutes: 90, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, store.SaveStops(ctx, tripID, stops))

	seg := models.TransportSegment{
		ID:              uuid.NewString(),
		FromStopID:      stops[0].ID,
		ToStopID:        stops[1].ID,
		Mode:            models.ModeDriving,
		DistanceMeters:  7800,
		DurationSeconds: 562,
	}
	require.NoError(t, store.ApplySegmentWrites(ctx, tripID, []models.SegmentWrite{{Op: models.WriteUpsert, Segment: seg}}))

	loaded, err := store.LoadTrip(ctx, tripID)
	require.NoError(t, err)
	assert.True(t, loaded.Collaborative)
	require.Len(t, loaded.Stops, 2)
	assert.Equal(t, "Belem", loaded.Stops[0].Name)
	assert.Equal(t, []string{"tower"}, loaded.Stops[0].Tags)
	assert.Equal(t, 90, loaded.Stops[1].VisitMinutes)
	require.Len(t, loaded.Segments, 1)
	assert.Equal(t, models.ModeDriving, loaded.Segments[0].Mode)

	t.Run("Upsert on the same pair replaces the segment", func(t *testing.T) {
		replacement := seg
		replacement.ID = uuid.NewString()
		replacement.Mode = models.ModeWalking
		require.NoError(t, store.ApplySegmentWrites(ctx, tripID, []models.SegmentWrite{
			{Op: models.WriteDelete, Segment: seg},
			{Op: models.WriteUpsert, Segment: replacement},
		}))

		loaded, err := store.LoadTrip(ctx, tripID)
		require.NoError(t, err)
		require.Len(t, loaded.Segments, 1)
		assert.Equal(t, replacement.ID, loaded.Segments[0].ID)
	})

	t.Run("Deleting a stop cascades to its segments", func(t *testing.T) {
		require.NoError(t, store.DeleteStop(ctx, tripID, stops[0].ID))

		loaded, err := store.LoadTrip(ctx, tripID)
		require.NoError(t, err)
		assert.Len(t, loaded.Stops, 1)
		assert.Empty(t, loaded.Segments)

		err = store.DeleteStop(ctx, tripID, stops[0].ID)
		assert.ErrorIs(t, err, trip.ErrStopNotFound)
	})

	t.Run("Unknown trip", func(t *testing.T) {
		_, err := store.LoadTrip(ctx, uuid.NewString())
		assert.ErrorIs(t, err, trip.ErrTripNotFound)
	})
}
