package routing

import (
	"context"
	"errors"

	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/models"
)

// ErrNoAirport is returned when no airport can serve a point
var ErrNoAirport = errors.New("no airport available")

// AirportLookup finds the designated airport for a point
type AirportLookup interface {
	NearestAirport(ctx context.Context, p models.LatLng) (models.Airport, error)
}

// AirportIndex is an in-memory AirportLookup over a fixed airport list
type AirportIndex struct {
	airports []models.Airport
}

// NewAirportIndex creates an index over airports
func NewAirportIndex(airports []models.Airport) *AirportIndex {
	return &AirportIndex{airports: airports}
}

// NearestAirport returns the airport with the smallest Haversine distance to p
func (idx *AirportIndex) NearestAirport(ctx context.Context, p models.LatLng) (models.Airport, error) {
	if len(idx.airports) == 0 || p.IsZero() {
		return models.Airport{}, ErrNoAirport
	}

	best := idx.airports[0]
	bestDist := geo.DistanceKm(p, best.Location)
	for _, a := range idx.airports[1:] {
		if d := geo.DistanceKm(p, a.Location); d < bestDist {
			best, bestDist = a, d
		}
	}
	return best, nil
}

// Len returns the number of indexed airports
func (idx *AirportIndex) Len() int {
	return len(idx.airports)
}

// DefaultAirports contains major international airports.
// Source: ACI World busiest airports plus regional hubs.
var DefaultAirports = []models.Airport{
	// North America
	{Code: "ATL", Name: "Hartsfield-Jackson Atlanta", Location: models.LatLng{Lat: 33.6407, Lng: -84.4277}},
	{Code: "LAX", Name: "Los Angeles", Location: models.LatLng{Lat: 33.9416, Lng: -118.4085}},
	{Code: "ORD", Name: "Chicago O'Hare", Location: models.LatLng{Lat: 41.9742, Lng: -87.9073}},
	{Code: "DFW", Name: "Dallas/Fort Worth", Location: models.LatLng{Lat: 32.8998, Lng: -97.0403}},
	{Code: "DEN", Name: "Denver", Location: models.LatLng{Lat: 39.8561, Lng: -104.6737}},
	{Code: "JFK", Name: "New York JFK", Location: models.LatLng{Lat: 40.6413, Lng: -73.7781}},
	{Code: "SFO", Name: "San Francisco", Location: models.LatLng{Lat: 37.6213, Lng: -122.3790}},
	{Code: "SEA", Name: "Seattle-Tacoma", Location: models.LatLng{Lat: 47.4502, Lng: -122.3088}},
	{Code: "MIA", Name: "Miami", Location: models.LatLng{Lat: 25.7959, Lng: -80.2870}},
	{Code: "BOS", Name: "Boston Logan", Location: models.LatLng{Lat: 42.3656, Lng: -71.0096}},
	{Code: "HNL", Name: "Honolulu", Location: models.LatLng{Lat: 21.3187, Lng: -157.9225}},
	{Code: "YYZ", Name: "Toronto Pearson", Location: models.LatLng{Lat: 43.6777, Lng: -79.6248}},
	{Code: "YVR", Name: "Vancouver", Location: models.LatLng{Lat: 49.1967, Lng: -123.1815}},
	{Code: "MEX", Name: "Mexico City", Location: models.LatLng{Lat: 19.4361, Lng: -99.0719}},

	// South America
	{Code: "GRU", Name: "Sao Paulo Guarulhos", Location: models.LatLng{Lat: -23.4356, Lng: -46.4731}},
	{Code: "EZE", Name: "Buenos Aires Ezeiza", Location: models.LatLng{Lat: -34.8222, Lng: -58.5358}},
	{Code: "BOG", Name: "Bogota El Dorado", Location: models.LatLng{Lat: 4.7016, Lng: -74.1469}},

	// Europe
	{Code: "LHR", Name: "London Heathrow", Location: models.LatLng{Lat: 51.4700, Lng: -0.4543}},
	{Code: "CDG", Name: "Paris Charles de Gaulle", Location: models.LatLng{Lat: 49.0097, Lng: 2.5479}},
	{Code: "AMS", Name: "Amsterdam Schiphol", Location: models.LatLng{Lat: 52.3105, Lng: 4.7683}},
	{Code: "FRA", Name: "Frankfurt", Location: models.LatLng{Lat: 50.0379, Lng: 8.5622}},
	{Code: "MUC", Name: "Munich", Location: models.LatLng{Lat: 48.3537, Lng: 11.7750}},
	{Code: "ZRH", Name: "Zurich", Location: models.LatLng{Lat: 47.4582, Lng: 8.5555}},
	{Code: "VIE", Name: "Vienna", Location: models.LatLng{Lat: 48.1103, Lng: 16.5697}},
	{Code: "MAD", Name: "Madrid Barajas", Location: models.LatLng{Lat: 40.4983, Lng: -3.5676}},
	{Code: "BCN", Name: "Barcelona El Prat", Location: models.LatLng{Lat: 41.2974, Lng: 2.0833}},
	{Code: "LIS", Name: "Lisbon", Location: models.LatLng{Lat: 38.7742, Lng: -9.1342}},
	{Code: "FCO", Name: "Rome Fiumicino", Location: models.LatLng{Lat: 41.8003, Lng: 12.2389}},
	{Code: "ATH", Name: "Athens", Location: models.LatLng{Lat: 37.9364, Lng: 23.9445}},
	{Code: "CPH", Name: "Copenhagen", Location: models.LatLng{Lat: 55.6180, Lng: 12.6508}},
	{Code: "IST", Name: "Istanbul", Location: models.LatLng{Lat: 41.2753, Lng: 28.7519}},

	// Middle East & Africa
	{Code: "DXB", Name: "Dubai", Location: models.LatLng{Lat: 25.2532, Lng: 55.3657}},
	{Code: "DOH", Name: "Doha Hamad", Location: models.LatLng{Lat: 25.2731, Lng: 51.6081}},
	{Code: "CAI", Name: "Cairo", Location: models.LatLng{Lat: 30.1219, Lng: 31.4056}},
	{Code: "NBO", Name: "Nairobi Jomo Kenyatta", Location: models.LatLng{Lat: -1.3192, Lng: 36.9278}},
	{Code: "JNB", Name: "Johannesburg O.R. Tambo", Location: models.LatLng{Lat: -26.1367, Lng: 28.2411}},
	{Code: "DSS", Name: "Dakar Blaise Diagne", Location: models.LatLng{Lat: 14.6700, Lng: -17.0733}},

	// Asia & Oceania
	{Code: "DEL", Name: "Delhi Indira Gandhi", Location: models.LatLng{Lat: 28.5562, Lng: 77.1000}},
	{Code: "BOM", Name: "Mumbai", Location: models.LatLng{Lat: 19.0896, Lng: 72.8656}},
	{Code: "SIN", Name: "Singapore Changi", Location: models.LatLng{Lat: 1.3644, Lng: 103.9915}},
	{Code: "BKK", Name: "Bangkok Suvarnabhumi", Location: models.LatLng{Lat: 13.6900, Lng: 100.7501}},
	{Code: "HKG", Name: "Hong Kong", Location: models.LatLng{Lat: 22.3080, Lng: 113.9185}},
	{Code: "PEK", Name: "Beijing Capital", Location: models.LatLng{Lat: 40.0799, Lng: 116.6031}},
	{Code: "PVG", Name: "Shanghai Pudong", Location: models.LatLng{Lat: 31.1443, Lng: 121.8083}},
	{Code: "ICN", Name: "Seoul Incheon", Location: models.LatLng{Lat: 37.4602, Lng: 126.4407}},
	{Code: "HND", Name: "Tokyo Haneda", Location: models.LatLng{Lat: 35.5494, Lng: 139.7798}},
	{Code: "KIX", Name: "Osaka Kansai", Location: models.LatLng{Lat: 34.4320, Lng: 135.2304}},
	{Code: "SYD", Name: "Sydney", Location: models.LatLng{Lat: -33.9399, Lng: 151.1753}},
	{Code: "MEL", Name: "Melbourne", Location: models.LatLng{Lat: -37.6690, Lng: 144.8410}},
	{Code: "AKL", Name: "Auckland", Location: models.LatLng{Lat: -37.0082, Lng: 174.7850}},
}
