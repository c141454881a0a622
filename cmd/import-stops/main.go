package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/passbi/passbi_itinerary/internal/config"
	"github.com/passbi/passbi_itinerary/internal/db"
	"github.com/passbi/passbi_itinerary/internal/importer"
	applog "github.com/passbi/passbi_itinerary/internal/logger"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"github.com/passbi/passbi_itinerary/internal/trip"
	"github.com/sirupsen/logrus"
)

func main() {
	// Command-line flags
	tripID := flag.String("trip", "", "Trip ID to import into (required)")
	csvPath := flag.String("csv", "", "Path to the stops CSV file (required)")
	name := flag.String("name", "", "Trip name, used when the trip does not exist yet")
	collaborative := flag.Bool("collaborative", false, "Create the trip as collaborative")
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to a YAML or TOML config file")

	flag.Parse()

	// Validate required flags
	if *tripID == "" || *csvPath == "" {
		fmt.Println("Usage: import-stops --trip=<id> --csv=<stops.csv> [--name=<trip name>] [--collaborative]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Validate file exists
	if _, err := os.Stat(*csvPath); os.IsNotExist(err) {
		logrus.Fatalf("CSV file not found: %s", *csvPath)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := applog.Setup(cfg.Log); err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}

	logrus.WithFields(logrus.Fields{"trip_id": *tripID, "csv": *csvPath}).Info("Starting stop import...")
	startTime := time.Now()

	// Parse and clean rows
	logrus.Info("Step 1/3: Parsing CSV...")
	rows, err := importer.ParseStopsFile(*csvPath)
	if err != nil {
		logrus.Fatalf("Failed to parse CSV: %v", err)
	}
	rows = importer.CleanStops(rows)
	if len(rows) == 0 {
		logrus.Fatal("No valid stops found in CSV")
	}

	ctx := context.Background()

	// Initialize database connection
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	logrus.Info("Step 2/3: Preparing trip...")
	if err := store.EnsureSchema(ctx); err != nil {
		logrus.Fatalf("Failed to prepare schema: %v", err)
	}
	if err := store.CreateTrip(ctx, models.Trip{ID: *tripID, Name: *name, Collaborative: *collaborative}); err != nil {
		logrus.Fatalf("Failed to create trip: %v", err)
	}

	resolver := routing.NewResolver(cfg.Routing)
	provider := routing.NewOSRMProvider(cfg.Routing.ProviderURL, cfg.Routing.ProviderTimeout)
	synth := routing.NewSynthesizer(cfg.Routing, resolver, provider, routing.NewAirportIndex(routing.DefaultAirports))
	trips := trip.NewService(store, nil, resolver, synth)
	defer trips.CloseAll()

	// Each stop is appended with incremental segment generation
	logrus.Infof("Step 3/3: Importing %d stops...", len(rows))
	imported := 0
	for _, row := range rows {
		stop, err := trips.AddStop(ctx, *tripID, row.Input)
		if err != nil {
			logrus.WithField("line", row.Line).Errorf("Failed to import stop: %v", err)
			continue
		}
		imported++
		logrus.WithFields(logrus.Fields{
			"stop_id": stop.ID,
			"day":     stop.Day,
			"order":   stop.Order,
		}).Debugf("Imported %s", stop.Name)
	}

	it, err := trips.Itinerary(ctx, *tripID)
	if err != nil {
		logrus.Fatalf("Failed to read itinerary: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"imported":       imported,
		"skipped":        len(rows) - imported,
		"segments":       len(it.Connections),
		"distance_km":    float64(it.Totals.DistanceMeters) / 1000,
		"travel_seconds": it.Totals.TravelSeconds,
		"duration":       time.Since(startTime).String(),
	}).Info("Import completed successfully!")
}
