package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/passbi/passbi_itinerary/internal/config"
	"github.com/passbi/passbi_itinerary/internal/db"
	applog "github.com/passbi/passbi_itinerary/internal/logger"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"github.com/passbi/passbi_itinerary/internal/trip"
	"github.com/sirupsen/logrus"
)

func main() {
	tripID := flag.String("trip", "", "Trip ID to regenerate (required)")
	yes := flag.Bool("yes", false, "Skip the confirmation prompt")
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to a YAML or TOML config file")
	flag.Parse()

	if *tripID == "" {
		fmt.Println("Usage: regenerate --trip=<id> [--yes] [--config=<file>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := applog.Setup(cfg.Log); err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}

	fmt.Println("PassBi Itinerary - Transport Regeneration Tool")
	fmt.Println("==============================================")

	ctx := context.Background()

	// Connect to database
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	store := db.NewStore(pool)

	current, err := store.LoadTrip(ctx, *tripID)
	if err != nil {
		logrus.Fatalf("Failed to load trip: %v", err)
	}

	fmt.Printf("Trip %s (%s)\n", current.ID, current.Name)
	fmt.Printf("   Stops: %d\n", len(current.Stops))
	fmt.Printf("   Segments: %d\n", len(current.Segments))

	if len(current.Stops) < 2 {
		fmt.Println("Nothing to regenerate: the trip has fewer than two stops")
		os.Exit(0)
	}

	// Confirm rebuild
	if !*yes {
		fmt.Println()
		fmt.Println("This will DELETE every transport segment of the trip and recompute them!")
		fmt.Print("Continue? (yes/no): ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "yes" && answer != "y" {
			fmt.Println("Regeneration cancelled")
			os.Exit(0)
		}
	}

	resolver := routing.NewResolver(cfg.Routing)
	provider := routing.NewOSRMProvider(cfg.Routing.ProviderURL, cfg.Routing.ProviderTimeout)
	synth := routing.NewSynthesizer(cfg.Routing, resolver, provider, routing.NewAirportIndex(routing.DefaultAirports))
	trips := trip.NewService(store, nil, resolver, synth)
	defer trips.CloseAll()

	startTime := time.Now()
	segs, err := trips.Regenerate(ctx, *tripID)
	if err != nil {
		logrus.Fatalf("Failed to regenerate: %v", err)
	}

	byMode := make(map[models.TransportMode]int)
	distance, duration := 0, 0
	for _, s := range segs {
		byMode[s.Mode]++
		distance += s.DistanceMeters
		duration += s.DurationSeconds
	}

	fmt.Println()
	fmt.Println("Regeneration completed!")
	fmt.Printf("Duration: %v\n", time.Since(startTime))
	fmt.Printf("Segments: %d\n", len(segs))
	for _, mode := range []models.TransportMode{models.ModeDriving, models.ModeFlight, models.ModeWalking, models.ModeBicycling} {
		if byMode[mode] > 0 {
			fmt.Printf("   %s: %d\n", mode, byMode[mode])
		}
	}
	fmt.Printf("Total distance: %.1f km\n", float64(distance)/1000)
	fmt.Printf("Total travel time: %v\n", time.Duration(duration)*time.Second)
}
