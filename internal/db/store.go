package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/trip"
)

const schema = `
CREATE TABLE IF NOT EXISTS trip (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	collaborative BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trip_stop (
	id            TEXT PRIMARY KEY,
	trip_id       TEXT NOT NULL REFERENCES trip(id) ON DELETE CASCADE,
	name          TEXT NOT NULL DEFAULT '',
	lat           DOUBLE PRECISION NOT NULL DEFAULT 0,
	lng           DOUBLE PRECISION NOT NULL DEFAULT 0,
	day           INTEGER NOT NULL DEFAULT 1 CHECK (day >= 1),
	sort_order    INTEGER NOT NULL DEFAULT 0,
	category      TEXT NOT NULL DEFAULT 'other',
	notes         TEXT NOT NULL DEFAULT '',
	visit_minutes INTEGER NOT NULL DEFAULT 0,
	cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
	tags          TEXT[] NOT NULL DEFAULT '{}',
	contact       TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_trip_stop_trip ON trip_stop (trip_id, day, sort_order);

CREATE TABLE IF NOT EXISTS transport_segment (
	id               TEXT PRIMARY KEY,
	trip_id          TEXT NOT NULL REFERENCES trip(id) ON DELETE CASCADE,
	from_stop_id     TEXT NOT NULL REFERENCES trip_stop(id) ON DELETE CASCADE,
	to_stop_id       TEXT NOT NULL REFERENCES trip_stop(id) ON DELETE CASCADE,
	mode             TEXT NOT NULL,
	distance_meters  INTEGER NOT NULL DEFAULT 0 CHECK (distance_meters >= 0),
	duration_seconds INTEGER NOT NULL DEFAULT 0 CHECK (duration_seconds >= 0),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (trip_id, from_stop_id, to_stop_id)
);
`

// Store persists trips, stops and transport segments in Postgres
type Store struct {
	db *pgxpool.Pool
}

var _ trip.Store = (*Store)(nil)

// NewStore creates a store on the pool
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables if they are missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateTrip inserts a trip, leaving an existing one untouched
func (s *Store) CreateTrip(ctx context.Context, t models.Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip (id, name, collaborative) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, t.ID, t.Name, t.Collaborative)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// LoadTrip reads a trip with all its stops and segments
func (s *Store) LoadTrip(ctx context.Context, tripID string) (models.Trip, error) {
	var t models.Trip
	err := s.db.QueryRow(ctx, `SELECT id, name, collaborative FROM trip WHERE id = $1`, tripID).
		Scan(&t.ID, &t.Name, &t.Collaborative)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, fmt.Errorf("%w: %s", trip.ErrTripNotFound, tripID)
	}
	if err != nil {
		return t, fmt.Errorf("failed to load trip: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, name, lat, lng, day, sort_order, category, notes,
		       visit_minutes, cost, tags, contact, created_at, updated_at
		FROM trip_stop
		WHERE trip_id = $1
		ORDER BY day, sort_order, created_at
	`, tripID)
	if err != nil {
		return t, fmt.Errorf("failed to load stops: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st models.Stop
		var category string
		if err := rows.Scan(&st.ID, &st.TripID, &st.Name, &st.Location.Lat, &st.Location.Lng,
			&st.Day, &st.Order, &category, &st.Notes, &st.VisitMinutes, &st.Cost, &st.Tags,
			&st.Contact, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return t, fmt.Errorf("failed to scan stop: %w", err)
		}
		st.Category = models.ParseCategory(category)
		t.Stops = append(t.Stops, st)
	}
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("failed to read stops: %w", err)
	}

	segRows, err := s.db.Query(ctx, `
		SELECT id, trip_id, from_stop_id, to_stop_id, mode, distance_meters,
		       duration_seconds, created_at, updated_at
		FROM transport_segment
		WHERE trip_id = $1
	`, tripID)
	if err != nil {
		return t, fmt.Errorf("failed to load segments: %w", err)
	}
	defer segRows.Close()

	for segRows.Next() {
		var seg models.TransportSegment
		var mode string
		if err := segRows.Scan(&seg.ID, &seg.TripID, &seg.FromStopID, &seg.ToStopID, &mode,
			&seg.DistanceMeters, &seg.DurationSeconds, &seg.CreatedAt, &seg.UpdatedAt); err != nil {
			return t, fmt.Errorf("failed to scan segment: %w", err)
		}
		seg.Mode = models.TransportMode(mode)
		t.Segments = append(t.Segments, seg)
	}
	if err := segRows.Err(); err != nil {
		return t, fmt.Errorf("failed to read segments: %w", err)
	}

	return t, nil
}

// SaveStops upserts stops in one batch
func (s *Store) SaveStops(ctx context.Context, tripID string, stops []models.Stop) error {
	if len(stops) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, st := range stops {
		queueStop(batch, tripID, st)
	}
	return s.inTx(ctx, batch)
}

// DeleteStop removes a stop; the foreign keys cascade to its segments
func (s *Store) DeleteStop(ctx context.Context, tripID, stopID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM trip_stop WHERE trip_id = $1 AND id = $2`, tripID, stopID)
	if err != nil {
		return fmt.Errorf("failed to delete stop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", trip.ErrStopNotFound, stopID)
	}
	return nil
}

// ApplySegmentWrites executes upserts and deletes as one atomic batch
func (s *Store) ApplySegmentWrites(ctx context.Context, tripID string, writes []models.SegmentWrite) error {
	if len(writes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range writes {
		switch w.Op {
		case models.WriteDelete:
			batch.Queue(`DELETE FROM transport_segment WHERE trip_id = $1 AND id = $2`, tripID, w.Segment.ID)
		case models.WriteUpsert:
			queueSegment(batch, tripID, w.Segment)
		default:
			return fmt.Errorf("unknown segment write op %q", w.Op)
		}
	}
	return s.inTx(ctx, batch)
}

// inTx sends the batch inside a transaction so it applies all or nothing
func (s *Store) inTx(ctx context.Context, batch *pgx.Batch) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := executeBatch(ctx, tx, batch); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// executeBatch executes a batch of queries
func executeBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	results := tx.SendBatch(ctx, batch)

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("batch statement %d failed: %w", i, err)
		}
	}
	return results.Close()
}

func queueStop(batch *pgx.Batch, tripID string, st models.Stop) {
	tags := st.Tags
	if tags == nil {
		tags = []string{}
	}
	batch.Queue(`
		INSERT INTO trip_stop (id, trip_id, name, lat, lng, day, sort_order, category, notes,
		                       visit_minutes, cost, tags, contact, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			day = EXCLUDED.day,
			sort_order = EXCLUDED.sort_order,
			category = EXCLUDED.category,
			notes = EXCLUDED.notes,
			visit_minutes = EXCLUDED.visit_minutes,
			cost = EXCLUDED.cost,
			tags = EXCLUDED.tags,
			contact = EXCLUDED.contact,
			updated_at = EXCLUDED.updated_at
	`, st.ID, tripID, st.Name, st.Location.Lat, st.Location.Lng, st.Day, st.Order,
		string(st.Category), st.Notes, st.VisitMinutes, st.Cost, tags, st.Contact,
		timestampOrNow(st.CreatedAt), timestampOrNow(st.UpdatedAt))
}

func queueSegment(batch *pgx.Batch, tripID string, seg models.TransportSegment) {
	batch.Queue(`
		INSERT INTO transport_segment (id, trip_id, from_stop_id, to_stop_id, mode,
		                               distance_meters, duration_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (trip_id, from_stop_id, to_stop_id) DO UPDATE SET
			id = EXCLUDED.id,
			mode = EXCLUDED.mode,
			distance_meters = EXCLUDED.distance_meters,
			duration_seconds = EXCLUDED.duration_seconds,
			updated_at = EXCLUDED.updated_at
	`, seg.ID, tripID, seg.FromStopID, seg.ToStopID, string(seg.Mode),
		seg.DistanceMeters, seg.DurationSeconds,
		timestampOrNow(seg.CreatedAt), timestampOrNow(seg.UpdatedAt))
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
