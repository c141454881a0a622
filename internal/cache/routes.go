package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RouteCache decorates a route provider with a shared Redis geometry cache.
// Values are stored as encoded polylines. Redis failures degrade to calling the provider.
type RouteCache struct {
	client   *redis.Client
	provider routing.RouteProvider
	ttl      time.Duration
	mutexTTL time.Duration
	lockWait time.Duration
}

// NewRouteCache wraps provider with a cache holding routes for ttl
func NewRouteCache(client *redis.Client, provider routing.RouteProvider, ttl time.Duration, config Config) *RouteCache {
	return &RouteCache{
		client:   client,
		provider: provider,
		ttl:      ttl,
		mutexTTL: config.MutexTTL,
		lockWait: config.LockWait,
	}
}

// RequestRoute returns the cached route or asks the provider, holding a lock so
// concurrent callers for the same route wait for one provider call.
func (rc *RouteCache) RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error) {
	key := RouteKey(origin, destination, mode, realistic)
	log := logrus.WithFields(logrus.Fields{"key": key, "mode": mode})

	points, err := rc.get(ctx, key)
	if err != nil {
		log.WithError(err).Debug("Route cache unavailable")
		return rc.provider.RequestRoute(ctx, origin, destination, mode, realistic)
	}
	if points != nil {
		return points, nil
	}

	lockKey := LockKey(key)
	acquired, err := rc.client.SetNX(ctx, lockKey, "1", rc.mutexTTL).Result()
	if err != nil {
		return rc.provider.RequestRoute(ctx, origin, destination, mode, realistic)
	}

	if !acquired {
		// Someone else is computing this route
		points, err := rc.waitForLock(ctx, key)
		if err == nil && points != nil {
			return points, nil
		}
		return rc.provider.RequestRoute(ctx, origin, destination, mode, realistic)
	}
	defer rc.client.Del(context.WithoutCancel(ctx), lockKey)

	points, err = rc.provider.RequestRoute(ctx, origin, destination, mode, realistic)
	if err != nil {
		return nil, err
	}

	if err := rc.client.Set(ctx, key, geo.EncodePolyline(points), rc.ttl).Err(); err != nil {
		log.WithError(err).Warn("Failed to cache route")
	}
	return points, nil
}

// get returns nil, nil on a cache miss
func (rc *RouteCache) get(ctx context.Context, key string) ([]models.LatLng, error) {
	data, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	points, err := geo.DecodePolyline(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached route: %w", err)
	}
	if len(points) < 2 {
		return nil, nil
	}
	return points, nil
}

// waitForLock waits for the lock holder to finish and then reads its result
func (rc *RouteCache) waitForLock(ctx context.Context, key string) ([]models.LatLng, error) {
	lockKey := LockKey(key)
	deadline := time.Now().Add(rc.lockWait)

	for time.Now().Before(deadline) {
		exists, err := rc.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return nil, err
		}

		if exists == 0 {
			return rc.get(ctx, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("timeout waiting for lock")
}
