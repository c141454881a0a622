package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig is a fixed-window limit
type RateLimitConfig struct {
	Name   string        `yaml:"name" toml:"name"`
	Limit  int           `yaml:"limit" toml:"limit" validate:"gte=0"`
	Window time.Duration `yaml:"window" toml:"window"`
}

// RateLimitKey is the counter key for a client in the window containing now
func RateLimitKey(name, client string, window time.Duration, now time.Time) string {
	return fmt.Sprintf("rl:%s:%s:%d", name, client, now.Unix()/int64(window.Seconds()))
}

// RateLimitMiddleware limits requests per client IP and trip with a Redis counter.
// A zero limit, a nil client or a Redis error lets the request through.
func RateLimitMiddleware(rdb *redis.Client, cfg RateLimitConfig) fiber.Handler {
	if cfg.Window < time.Second {
		cfg.Window = time.Minute
	}

	return func(c *fiber.Ctx) error {
		if rdb == nil || cfg.Limit <= 0 {
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
		defer cancel()

		now := time.Now()
		client := c.IP()
		if tripID := c.Params("tripId"); tripID != "" {
			client = client + ":" + tripID
		}
		key := RateLimitKey(cfg.Name, client, cfg.Window, now)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logrus.WithError(err).Warn("Rate limiter unavailable")
			return c.Next()
		}
		if count == 1 {
			rdb.Expire(ctx, key, cfg.Window+time.Second)
		}

		windowSeconds := int64(cfg.Window.Seconds())
		resetAt := (now.Unix()/windowSeconds + 1) * windowSeconds

		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if count > int64(cfg.Limit) {
			retryAfter := resetAt - now.Unix()
			c.Set("X-RateLimit-Remaining", "0")
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate_limit_exceeded",
				"message":     fmt.Sprintf("Too many %s requests", cfg.Name),
				"limit":       cfg.Limit,
				"retry_after": retryAfter,
			})
		}

		c.Set("X-RateLimit-Remaining", strconv.FormatInt(int64(cfg.Limit)-count, 10))
		return c.Next()
	}
}
