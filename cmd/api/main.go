package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/passbi/passbi_itinerary/internal/api"
	"github.com/passbi/passbi_itinerary/internal/cache"
	"github.com/passbi/passbi_itinerary/internal/config"
	"github.com/passbi/passbi_itinerary/internal/db"
	applog "github.com/passbi/passbi_itinerary/internal/logger"
	"github.com/passbi/passbi_itinerary/internal/middleware"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"github.com/passbi/passbi_itinerary/internal/trip"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to a YAML or TOML config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := applog.Setup(cfg.Log); err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}

	logrus.Info("Starting itinerary API server...")
	ctx := context.Background()

	// Initialize database connection
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	logrus.Info("✓ Database connection established")

	store := db.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logrus.Fatalf("Failed to prepare schema: %v", err)
	}

	// Initialize Redis connection
	rdb, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()
	logrus.Info("✓ Redis connection established")

	// Routing engine
	resolver := routing.NewResolver(cfg.Routing)
	var provider routing.RouteProvider = routing.NewOSRMProvider(cfg.Routing.ProviderURL, cfg.Routing.ProviderTimeout)
	provider = cache.NewRouteCache(rdb, provider, cfg.Routing.GeometryTTL, cfg.Redis)
	airports := routing.NewAirportIndex(routing.DefaultAirports)
	synth := routing.NewSynthesizer(cfg.Routing, resolver, provider, airports)

	var channel trip.Channel
	if cfg.Realtime {
		channel = cache.NewRealtime(rdb)
	}
	trips := trip.NewService(store, channel, resolver, synth)
	defer trips.CloseAll()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "PassBi Itinerary API",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Routes
	handler := api.NewHandler(trips, resolver, pool, rdb)
	handler.Register(app, middleware.RateLimitMiddleware(rdb, cfg.Regenerate))

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logrus.Info("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("Error during shutdown: %v", err)
		}
	}()

	// Start server
	logrus.Infof("Server listening on http://localhost%s", addr)
	logrus.Infof("Itinerary: http://localhost%s/v1/trips/{tripId}/itinerary", addr)
	logrus.Infof("Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	logrus.WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"status": code,
	}).Errorf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
