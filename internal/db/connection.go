package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds database configuration
type Config struct {
	Host     string `yaml:"host" toml:"host" validate:"required"`
	Port     int    `yaml:"port" toml:"port" validate:"gt=0,lte=65535"`
	Database string `yaml:"name" toml:"name" validate:"required"`
	User     string `yaml:"user" toml:"user" validate:"required"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"sslmode" toml:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MinConns int32  `yaml:"min_conns" toml:"min_conns" validate:"gte=0"`
	MaxConns int32  `yaml:"max_conns" toml:"max_conns" validate:"gtefield=MinConns"`
}

// DefaultConfig returns the local development database settings
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     5432,
		Database: "passbi_itinerary",
		User:     "postgres",
		SSLMode:  "disable",
		MinConns: 2,
		MaxConns: 10,
	}
}

// ConnString renders the config as a libpq keyword/value connection string
func (c Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host,
		c.Port,
		c.Database,
		c.User,
		c.Password,
		c.SSLMode,
	)
}

// NewPool creates and checks a new pgxpool.Pool
func NewPool(ctx context.Context, config Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Configure connection pool
	poolConfig.MinConns = config.MinConns
	poolConfig.MaxConns = config.MaxConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Transaction-mode poolers (pgbouncer, Supabase on 6543) reject prepared statements
	if config.Port == 6543 {
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// HealthCheck performs a health check on the database connection
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database connection not initialized")
	}

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
