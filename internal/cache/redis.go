package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis configuration
type Config struct {
	Host       string        `yaml:"host" toml:"host" validate:"required"`
	Port       int           `yaml:"port" toml:"port" validate:"gt=0,lte=65535"`
	Password   string        `yaml:"password" toml:"password"`
	DB         int           `yaml:"db" toml:"db" validate:"gte=0"`
	TLSEnabled bool          `yaml:"tls_enabled" toml:"tls_enabled"`
	MutexTTL   time.Duration `yaml:"mutex_ttl" toml:"mutex_ttl"`
	LockWait   time.Duration `yaml:"lock_wait" toml:"lock_wait"`
}

// DefaultConfig returns the local development Redis settings
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     6379,
		MutexTTL: 5 * time.Second,
		LockWait: 3 * time.Second,
	}
}

// NewClient creates a Redis client and checks the connection
func NewClient(ctx context.Context, config Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Managed Redis offerings require TLS
	if config.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RouteKey generates a cache key for a provider route query
func RouteKey(origin, destination models.LatLng, mode models.TransportMode, realistic bool) string {
	// Create deterministic hash of coordinates
	data := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%t", origin.Lat, origin.Lng, destination.Lat, destination.Lng, realistic)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("route:%x:%s", hash[:8], mode)
}

// LockKey generates a mutex lock key
func LockKey(routeKey string) string {
	return fmt.Sprintf("lock:%s", routeKey)
}

// HealthCheck performs a health check on the Redis connection
func HealthCheck(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}

	return nil
}

// Stats returns Redis connection pool stats
func Stats(client *redis.Client) map[string]interface{} {
	poolStats := client.PoolStats()

	return map[string]interface{}{
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}
}
