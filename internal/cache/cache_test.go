package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	paris     = models.LatLng{Lat: 48.8566, Lng: 2.3522}
	parisNord = models.LatLng{Lat: 48.8746, Lng: 2.3522}
)

func TestRouteKey(t *testing.T) {
	key := RouteKey(paris, parisNord, models.ModeDriving, true)

	assert.True(t, strings.HasPrefix(key, "route:"))
	assert.True(t, strings.HasSuffix(key, ":driving"))
	assert.Equal(t, key, RouteKey(paris, parisNord, models.ModeDriving, true), "keys are deterministic")

	tests := []struct {
		name  string
		other string
	}{
		{"Reversed direction", RouteKey(parisNord, paris, models.ModeDriving, true)},
		{"Different mode", RouteKey(paris, parisNord, models.ModeWalking, true)},
		{"Simplified geometry", RouteKey(paris, parisNord, models.ModeDriving, false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, key, tt.other)
		})
	}

	assert.Equal(t, "lock:"+key, LockKey(key))
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "trip:abc", ChannelName("abc"))
}

func TestDecodeSnapshot(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"origin":"node-1","trip":{"id":"t1","name":"Rome","collaborative":true,"stops":[{"id":"s1","day":1,"order":0,"location":{"lat":41.9,"lng":12.5}}],"segments":[]}}`))
	require.NoError(t, err)
	assert.Equal(t, "node-1", snap.Origin)
	assert.Equal(t, "t1", snap.Trip.ID)
	require.Len(t, snap.Trip.Stops, 1)
	assert.Equal(t, 41.9, snap.Trip.Stops[0].Location.Lat)

	_, err = DecodeSnapshot([]byte(`{"trip":{}}`))
	assert.Error(t, err)

	_, err = DecodeSnapshot([]byte(`not json`))
	assert.Error(t, err)
}

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []models.LatLng{origin, destination}, nil
}

// unreachableClient points at a port nothing listens on
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRouteCacheDegradesToProvider(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	t.Run("Provider answers when Redis is down", func(t *testing.T) {
		provider := &countingProvider{}
		rc := NewRouteCache(client, provider, time.Hour, DefaultConfig())

		points, err := rc.RequestRoute(context.Background(), paris, parisNord, models.ModeDriving, true)
		require.NoError(t, err)
		assert.Equal(t, []models.LatLng{paris, parisNord}, points)
		assert.Equal(t, 1, provider.calls)
	})

	t.Run("Provider errors pass through", func(t *testing.T) {
		provider := &countingProvider{err: errors.New("no route")}
		rc := NewRouteCache(client, provider, time.Hour, DefaultConfig())

		_, err := rc.RequestRoute(context.Background(), paris, parisNord, models.ModeDriving, true)
		assert.Error(t, err)
	})
}

func TestHealthCheck(t *testing.T) {
	assert.Error(t, HealthCheck(context.Background(), nil))

	client := unreachableClient()
	defer client.Close()
	assert.Error(t, HealthCheck(context.Background(), client))
}
