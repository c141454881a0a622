package routing

import (
	"fmt"
	"math"

	"github.com/passbi/passbi_itinerary/internal/models"
)

// Strength grades how firmly the advisory resolver suggests a mode
type Strength string

const (
	StrengthFavored  Strength = "favored"
	StrengthAdvised  Strength = "advised"
	StrengthStrongly Strength = "strongly_advised"
)

// Advice is the advisory resolver's output. It never changes a segment.
type Advice struct {
	DistanceKm float64              `json:"distance_km"`
	Suggested  models.TransportMode `json:"suggested_mode"`
	Strength   Strength             `json:"strength"`
	Warnings   []Warning            `json:"warnings,omitempty"`
}

// Warning flags a chosen mode that is unreasonable for the distance
type Warning struct {
	FromStopID string               `json:"from_stop_id,omitempty"`
	ToStopID   string               `json:"to_stop_id,omitempty"`
	Mode       models.TransportMode `json:"mode"`
	Code       string               `json:"code"`
	Message    string               `json:"message"`
}

type advisoryBand struct {
	maxKm    float64
	mode     models.TransportMode
	strength Strength
}

var advisoryBands = []advisoryBand{
	{maxKm: 1, mode: models.ModeWalking, strength: StrengthFavored},
	{maxKm: 5, mode: models.ModeBicycling, strength: StrengthFavored},
	{maxKm: 30, mode: models.ModeDriving, strength: StrengthFavored},
	{maxKm: 300, mode: models.ModeDriving, strength: StrengthAdvised},
	{maxKm: 1000, mode: models.ModeFlight, strength: StrengthAdvised},
	{maxKm: math.Inf(1), mode: models.ModeFlight, strength: StrengthStrongly},
}

type modeLimit struct {
	mode  models.TransportMode
	minKm float64
	maxKm float64
}

var modeLimits = []modeLimit{
	{mode: models.ModeWalking, minKm: 0, maxKm: 10},
	{mode: models.ModeBicycling, minKm: 0, maxKm: 50},
	{mode: models.ModeFlight, minKm: 100, maxKm: math.Inf(1)},
}

// Advise suggests a mode for the distance and warns when chosen is unreasonable.
// chosen may be empty.
func Advise(distanceKm float64, chosen models.TransportMode) Advice {
	advice := Advice{DistanceKm: distanceKm}
	for _, b := range advisoryBands {
		if distanceKm < b.maxKm {
			advice.Suggested = b.mode
			advice.Strength = b.strength
			break
		}
	}

	if w, ok := CheckMode(distanceKm, chosen); ok {
		advice.Warnings = append(advice.Warnings, w)
	}
	return advice
}

// CheckMode returns a warning when mode is unreasonable for distanceKm
func CheckMode(distanceKm float64, mode models.TransportMode) (Warning, bool) {
	for _, l := range modeLimits {
		if l.mode != mode {
			continue
		}
		switch {
		case distanceKm > l.maxKm:
			return Warning{
				Mode:    mode,
				Code:    "too_far",
				Message: fmt.Sprintf("%s over %.0f km is unrealistic (%.1f km)", mode, l.maxKm, distanceKm),
			}, true
		case distanceKm < l.minKm:
			return Warning{
				Mode:    mode,
				Code:    "too_close",
				Message: fmt.Sprintf("%s under %.0f km is unusual (%.1f km)", mode, l.minKm, distanceKm),
			}, true
		}
	}
	return Warning{}, false
}
