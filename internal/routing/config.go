package routing

import "time"

// SpeedTable holds the average speed per mode in km/h
type SpeedTable struct {
	Walking   float64 `yaml:"walking" toml:"walking" validate:"gt=0"`
	Bicycling float64 `yaml:"bicycling" toml:"bicycling" validate:"gt=0"`
	Driving   float64 `yaml:"driving" toml:"driving" validate:"gt=0"`
	Flight    float64 `yaml:"flight" toml:"flight" validate:"gt=0"`
}

// Config holds routing configuration.
// It is constructed explicitly and passed to NewResolver and NewSynthesizer.
type Config struct {
	Speeds SpeedTable `yaml:"speeds" toml:"speeds"`

	// Straight-line distance above which a pair is flown, and the same
	// threshold when both stops are transport hubs (airports, stations)
	FlightThresholdKm    float64 `yaml:"flight_threshold_km" toml:"flight_threshold_km" validate:"gt=0"`
	HubFlightThresholdKm float64 `yaml:"hub_flight_threshold_km" toml:"hub_flight_threshold_km" validate:"gt=0"`

	ArcSamples          int     `yaml:"arc_samples" toml:"arc_samples" validate:"gte=2"`
	MaxCurvature        float64 `yaml:"max_curvature" toml:"max_curvature" validate:"gt=0,lte=1"`
	CurvatureDistanceKm float64 `yaml:"curvature_distance_km" toml:"curvature_distance_km" validate:"gt=0"`

	ProviderURL     string        `yaml:"provider_url" toml:"provider_url" validate:"omitempty,url"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" toml:"provider_timeout" validate:"gte=0"`
	Realistic       bool          `yaml:"realistic" toml:"realistic"`

	// Maximum concurrent provider requests per batch, 0 means unbounded
	MaxConcurrency int `yaml:"max_concurrency" toml:"max_concurrency" validate:"gte=0"`

	GeometryTTL time.Duration `yaml:"geometry_ttl" toml:"geometry_ttl" validate:"gte=0"`
}

// DefaultConfig returns the routing defaults
func DefaultConfig() Config {
	return Config{
		Speeds: SpeedTable{
			Walking:   5,
			Bicycling: 15,
			Driving:   50,
			Flight:    800,
		},
		FlightThresholdKm:    500,
		HubFlightThresholdKm: 100,
		ArcSamples:           30,
		MaxCurvature:         0.2,
		CurvatureDistanceKm:  3000,
		ProviderURL:          "http://router.project-osrm.org",
		ProviderTimeout:      8 * time.Second,
		Realistic:            true,
		MaxConcurrency:       4,
		GeometryTTL:          24 * time.Hour,
	}
}
