package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/passbi_itinerary/internal/cache"
	"github.com/passbi/passbi_itinerary/internal/db"
	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"github.com/passbi/passbi_itinerary/internal/segments"
	"github.com/passbi/passbi_itinerary/internal/trip"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Handler serves the itinerary API
type Handler struct {
	trips    *trip.Service
	resolver *routing.Resolver
	pool     *pgxpool.Pool
	rdb      *redis.Client
}

// NewHandler creates the API handler. pool and rdb are only used for health checks
// and may be nil when the backing service is not configured.
func NewHandler(trips *trip.Service, resolver *routing.Resolver, pool *pgxpool.Pool, rdb *redis.Client) *Handler {
	return &Handler{
		trips:    trips,
		resolver: resolver,
		pool:     pool,
		rdb:      rdb,
	}
}

// Register mounts every route on app. regenerateLimit guards the regenerate endpoint.
func (h *Handler) Register(app *fiber.App, regenerateLimit fiber.Handler) {
	app.Get("/health", h.Health)
	app.Get("/v1/advisory", h.Advisory)

	trips := app.Group("/v1/trips/:tripId")
	trips.Post("/session", h.OpenSession)
	trips.Delete("/session", h.CloseSession)
	trips.Get("/itinerary", h.Itinerary)
	trips.Get("/legs.geojson", h.LegsGeoJSON)
	trips.Post("/stops", h.AddStop)
	trips.Post("/stops/move", h.MoveStop)
	trips.Patch("/stops/:stopId", h.UpdateStop)
	trips.Delete("/stops/:stopId", h.DeleteStop)
	trips.Put("/segments/mode", h.SetMode)
	if regenerateLimit != nil {
		trips.Post("/regenerate", regenerateLimit, h.Regenerate)
	} else {
		trips.Post("/regenerate", h.Regenerate)
	}
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()

	// Check database
	dbStatus := "disabled"
	var dbErr error
	if h.pool != nil {
		dbStatus = "ok"
		if dbErr = db.HealthCheck(ctx, h.pool); dbErr != nil {
			dbStatus = dbErr.Error()
		}
	}

	// Check Redis
	redisStatus := "disabled"
	var redisErr error
	if h.rdb != nil {
		redisStatus = "ok"
		if redisErr = cache.HealthCheck(ctx, h.rdb); redisErr != nil {
			redisStatus = redisErr.Error()
		}
	}

	// Overall status
	status := "healthy"
	httpStatus := fiber.StatusOK
	if dbErr != nil || redisErr != nil {
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

// OpenSession opens the trip view and returns its itinerary
func (h *Handler) OpenSession(c *fiber.Ctx) error {
	tripID := c.Params("tripId")
	if err := h.trips.Open(c.UserContext(), tripID); err != nil {
		return writeError(c, err)
	}
	return h.Itinerary(c)
}

// CloseSession closes the trip view
func (h *Handler) CloseSession(c *fiber.Ctx) error {
	h.trips.Close(c.Params("tripId"))
	return c.SendStatus(fiber.StatusNoContent)
}

// Itinerary returns the sorted stops, connections, legs and totals
func (h *Handler) Itinerary(c *fiber.Ctx) error {
	it, err := h.trips.Itinerary(c.UserContext(), c.Params("tripId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(it)
}

// AddStop appends a stop
func (h *Handler) AddStop(c *fiber.Ctx) error {
	var in trip.StopInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}
	if strings.TrimSpace(in.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required field: name",
		})
	}

	stop, err := h.trips.AddStop(c.UserContext(), c.Params("tripId"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(stop)
}

// UpdateStop edits a stop's content
func (h *Handler) UpdateStop(c *fiber.Ctx) error {
	var patch trip.StopPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}

	stop, err := h.trips.UpdateStop(c.UserContext(), c.Params("tripId"), c.Params("stopId"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(stop)
}

// DeleteStop removes a stop and its segments
func (h *Handler) DeleteStop(c *fiber.Ctx) error {
	if err := h.trips.DeleteStop(c.UserContext(), c.Params("tripId"), c.Params("stopId")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MoveRequest is the body of a reorder
type MoveRequest struct {
	From int  `json:"from"`
	To   int  `json:"to"`
	Day  *int `json:"day"`
}

// MoveStop reorders the itinerary
func (h *Handler) MoveStop(c *fiber.Ctx) error {
	var req MoveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}

	stops, err := h.trips.MoveStop(c.UserContext(), c.Params("tripId"), req.From, req.To, req.Day)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"stops": stops,
	})
}

// ModeRequest is the body of a mode override
type ModeRequest struct {
	FromStopID string               `json:"from_stop_id"`
	ToStopID   string               `json:"to_stop_id"`
	Mode       models.TransportMode `json:"mode"`
}

// SetMode applies an explicit transport mode to a segment
func (h *Handler) SetMode(c *fiber.Ctx) error {
	var req ModeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}
	if req.FromStopID == "" || req.ToStopID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required fields: from_stop_id and to_stop_id",
		})
	}

	pair := models.StopPair{FromStopID: req.FromStopID, ToStopID: req.ToStopID}
	seg, warnings, err := h.trips.SetMode(c.UserContext(), c.Params("tripId"), pair, req.Mode)
	if err != nil {
		return writeError(c, err)
	}
	if warnings == nil {
		warnings = []routing.Warning{}
	}
	return c.JSON(fiber.Map{
		"segment":  seg,
		"warnings": warnings,
	})
}

// Regenerate recomputes every segment of the trip
func (h *Handler) Regenerate(c *fiber.Ctx) error {
	segs, err := h.trips.Regenerate(c.UserContext(), c.Params("tripId"))
	if err != nil {
		return writeError(c, err)
	}
	if segs == nil {
		segs = []models.TransportSegment{}
	}
	return c.JSON(fiber.Map{
		"segments": segs,
		"count":    len(segs),
	})
}

// Advisory handles /v1/advisory?from=lat,lng&to=lat,lng[&mode=]
func (h *Handler) Advisory(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")

	if fromStr == "" || toStr == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required parameters: from and to",
		})
	}

	from, err := parseCoordinates(fromStr)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid 'from' coordinates: %v", err),
		})
	}

	to, err := parseCoordinates(toStr)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid 'to' coordinates: %v", err),
		})
	}

	mode := models.TransportMode(c.Query("mode"))
	if mode != "" && !mode.IsValid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unknown mode %q", mode),
		})
	}

	km := geo.DistanceKm(from, to)
	assigned := h.resolver.ModeForDistance(km, false)

	return c.JSON(fiber.Map{
		"advice":           routing.Advise(km, mode),
		"assigned_mode":    assigned,
		"duration_seconds": h.resolver.Duration(km, assigned),
	})
}

// writeError maps service errors to HTTP responses
func writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, trip.ErrInvalidStop), errors.Is(err, segments.ErrNotAdjacent):
		status = fiber.StatusBadRequest
	case trip.IsNotFound(err):
		status = fiber.StatusNotFound
	case errors.Is(err, trip.ErrTripClosed):
		status = fiber.StatusConflict
	default:
		// let the app error handler log it
		return err
	}

	logrus.WithFields(logrus.Fields{
		"trip_id": c.Params("tripId"),
		"status":  status,
	}).Debug(err.Error())

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// parseCoordinates parses "lat,lng" string into a point
func parseCoordinates(coordStr string) (models.LatLng, error) {
	parts := strings.Split(coordStr, ",")
	if len(parts) != 2 {
		return models.LatLng{}, fmt.Errorf("expected format: lat,lng")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.LatLng{}, fmt.Errorf("invalid latitude: %w", err)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.LatLng{}, fmt.Errorf("invalid longitude: %w", err)
	}

	// Validate ranges
	if lat < -90 || lat > 90 {
		return models.LatLng{}, fmt.Errorf("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return models.LatLng{}, fmt.Errorf("longitude must be between -180 and 180")
	}

	return models.LatLng{Lat: lat, Lng: lng}, nil
}
