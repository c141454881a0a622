package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/models"
)

// ErrRouteUnavailable is returned when a provider has no route for a request
var ErrRouteUnavailable = errors.New("route unavailable")

// RouteProvider returns a drawable path between two points.
// Retry policy, if any, belongs to the implementation.
type RouteProvider interface {
	RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error)
}

// OSRM API response structures
type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
	Geometry string  `json:"geometry"` // encoded polyline
}

// OSRMProvider requests routes from an OSRM server
type OSRMProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewOSRMProvider creates a provider for the OSRM server at baseURL
func NewOSRMProvider(baseURL string, timeout time.Duration) *OSRMProvider {
	return &OSRMProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RequestRoute calls the OSRM route service and decodes the route geometry
func (p *OSRMProvider) RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error) {
	profile, ok := osrmProfile(mode)
	if !ok {
		return nil, fmt.Errorf("%w: no %s profile", ErrRouteUnavailable, mode)
	}

	overview := "simplified"
	if realistic {
		overview = "full"
	}

	// OSRM expects lng,lat;lng,lat
	url := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=%s&geometries=polyline&alternatives=false&steps=false",
		p.baseURL, profile,
		origin.Lng, origin.Lat,
		destination.Lng, destination.Lat,
		overview,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSRM request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request to OSRM: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading OSRM response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OSRM returned status %d: %s", resp.StatusCode, string(body))
	}

	var osrmResp osrmResponse
	if err := json.Unmarshal(body, &osrmResp); err != nil {
		return nil, fmt.Errorf("failed to decode OSRM response: %w", err)
	}

	if osrmResp.Code != "Ok" || len(osrmResp.Routes) == 0 {
		return nil, fmt.Errorf("%w: OSRM code %s %s", ErrRouteUnavailable, osrmResp.Code, osrmResp.Message)
	}

	points, err := geo.DecodePolyline(osrmResp.Routes[0].Geometry)
	if err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: OSRM geometry has %d points", ErrRouteUnavailable, len(points))
	}
	return points, nil
}

func osrmProfile(mode models.TransportMode) (string, bool) {
	switch mode {
	case models.ModeDriving:
		return "driving", true
	case models.ModeWalking:
		return "foot", true
	case models.ModeBicycling:
		return "bike", true
	default:
		return "", false
	}
}
