// Package trip serializes the mutations of a trip itinerary, keeps the segment
// cache in step with them and syncs collaborative trips over a realtime channel.
package trip

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/passbi/passbi_itinerary/internal/geo"
	"github.com/passbi/passbi_itinerary/internal/itinerary"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"github.com/passbi/passbi_itinerary/internal/segments"
	"github.com/sirupsen/logrus"
)

// Store persists trips. ApplySegmentWrites must apply the writes atomically.
type Store interface {
	LoadTrip(ctx context.Context, tripID string) (models.Trip, error)
	SaveStops(ctx context.Context, tripID string, stops []models.Stop) error
	DeleteStop(ctx context.Context, tripID, stopID string) error
	ApplySegmentWrites(ctx context.Context, tripID string, writes []models.SegmentWrite) error
}

// Channel is the realtime channel collaborative trips are synced over
type Channel interface {
	Subscribe(ctx context.Context, tripID string, onUpdate func(models.TripSnapshot)) (unsubscribe func(), err error)
	Publish(ctx context.Context, snap models.TripSnapshot) error
}

// StopInput is the caller-supplied content of a new stop
type StopInput struct {
	Name         string          `json:"name"`
	Location     models.LatLng   `json:"location"`
	Day          int             `json:"day"`
	Category     models.Category `json:"category"`
	Notes        string          `json:"notes"`
	VisitMinutes int             `json:"visit_minutes"`
	Cost         float64         `json:"cost"`
	Tags         []string        `json:"tags"`
	Contact      string          `json:"contact"`
}

// StopPatch edits a stop; nil fields are left alone.
// Day and order only change through MoveStop.
type StopPatch struct {
	Name         *string          `json:"name"`
	Location     *models.LatLng   `json:"location"`
	Category     *models.Category `json:"category"`
	Notes        *string          `json:"notes"`
	VisitMinutes *int             `json:"visit_minutes"`
	Cost         *float64         `json:"cost"`
	Tags         []string         `json:"tags"`
	Contact      *string          `json:"contact"`
}

// Service is the mutation entry point for trips.
// Operations on the same trip are serialized; different trips proceed in parallel.
type Service struct {
	store    Store
	channel  Channel
	resolver *routing.Resolver
	synth    *routing.Synthesizer

	// instance tags published snapshots so our own echoes are ignored
	instance string
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService creates a trip service. channel may be nil when realtime sync is disabled.
func NewService(store Store, channel Channel, resolver *routing.Resolver, synth *routing.Synthesizer) *Service {
	return &Service{
		store:    store,
		channel:  channel,
		resolver: resolver,
		synth:    synth,
		instance: uuid.NewString(),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Open loads a trip into a view session and, for collaborative trips, subscribes
// to its realtime channel. Opening an open trip reuses the session.
func (s *Service) Open(ctx context.Context, tripID string) error {
	_, err := s.acquire(ctx, tripID)
	return err
}

// Close tears down the trip's session and subscription.
// Results of operations still in flight are discarded.
func (s *Service) Close(tripID string) {
	s.mu.Lock()
	sess, ok := s.sessions[tripID]
	delete(s.sessions, tripID)
	s.mu.Unlock()

	if !ok {
		return
	}
	sess.close()

	logrus.WithField("trip_id", tripID).Info("Closed trip view")
}

// CloseAll closes every open session
func (s *Service) CloseAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Close(id)
	}
}

// IsOpen reports whether the trip has a live session
func (s *Service) IsOpen(tripID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[tripID]
	return ok
}

// AddStop appends a stop to a day and generates segments for the new adjacencies only
func (s *Service) AddStop(ctx context.Context, tripID string, in StopInput) (models.Stop, error) {
	if err := validateLocation(in.Location); err != nil {
		return models.Stop{}, err
	}

	var created models.Stop
	err := s.mutate(ctx, tripID, func(ctx context.Context, sess *session) (*change, error) {
		stops := sess.stopList()
		now := s.now()
		created = models.Stop{
			ID:           uuid.NewString(),
			TripID:       tripID,
			Name:         strings.TrimSpace(in.Name),
			Location:     in.Location,
			Day:          itinerary.NormalizeDay(in.Day),
			Order:        itinerary.NextOrder(stops),
			Category:     models.ParseCategory(string(in.Category)),
			Notes:        in.Notes,
			VisitMinutes: max(in.VisitMinutes, 0),
			Cost:         in.Cost,
			Tags:         in.Tags,
			Contact:      in.Contact,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		stops = append(stops, created)

		return &change{
			saved: []models.Stop{created},
			batch: sess.segments.Incremental(ctx, stops),
		}, nil
	})
	return created, err
}

// UpdateStop edits a stop's content. Segments are not recomputed.
func (s *Service) UpdateStop(ctx context.Context, tripID, stopID string, patch StopPatch) (models.Stop, error) {
	if patch.Location != nil {
		if err := validateLocation(*patch.Location); err != nil {
			return models.Stop{}, err
		}
	}

	var updated models.Stop
	err := s.mutate(ctx, tripID, func(ctx context.Context, sess *session) (*change, error) {
		stop, ok := sess.stops[stopID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStopNotFound, stopID)
		}

		if patch.Name != nil {
			stop.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Location != nil {
			stop.Location = *patch.Location
		}
		if patch.Category != nil {
			stop.Category = models.ParseCategory(string(*patch.Category))
		}
		if patch.Notes != nil {
			stop.Notes = *patch.Notes
		}
		if patch.VisitMinutes != nil {
			stop.VisitMinutes = max(*patch.VisitMinutes, 0)
		}
		if patch.Cost != nil {
			stop.Cost = *patch.Cost
		}
		if patch.Tags != nil {
			stop.Tags = patch.Tags
		}
		if patch.Contact != nil {
			stop.Contact = *patch.Contact
		}
		stop.UpdatedAt = s.now()
		updated = stop

		return &change{saved: []models.Stop{stop}}, nil
	})
	return updated, err
}

// MoveStop reorders the itinerary and regenerates every segment.
// day, when non-nil, moves the stop to that day. A no-op move writes nothing.
func (s *Service) MoveStop(ctx context.Context, tripID string, fromIndex, toIndex int, day *int) ([]models.Stop, error) {
	var result []models.Stop
	err := s.mutate(ctx, tripID, func(ctx context.Context, sess *session) (*change, error) {
		stops := sess.stopList()
		moved := itinerary.Move(stops, fromIndex, toIndex, day)

		var changed []models.Stop
		dayChanged := false
		now := s.now()
		for i, m := range moved {
			old := sess.stops[m.ID]
			if old.Day != m.Day {
				dayChanged = true
			}
			if old.Day != m.Day || old.Order != m.Order {
				moved[i].UpdatedAt = now
				changed = append(changed, moved[i])
			}
		}

		if !dayChanged && sameSequence(stops, moved) {
			result = stops
			return nil, nil
		}
		result = moved

		return &change{
			saved: changed,
			batch: sess.segments.Regenerate(ctx, moved),
		}, nil
	})
	return result, err
}

// DeleteStop removes a stop and every segment referencing it, then fills the new adjacency
func (s *Service) DeleteStop(ctx context.Context, tripID, stopID string) error {
	return s.mutate(ctx, tripID, func(ctx context.Context, sess *session) (*change, error) {
		if _, ok := sess.stops[stopID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrStopNotFound, stopID)
		}

		removed := sess.segments.RemoveStop(stopID)

		remaining := make([]models.Stop, 0, len(sess.stops)-1)
		for _, st := range sess.stopList() {
			if st.ID != stopID {
				remaining = append(remaining, st)
			}
		}
		added := sess.segments.Incremental(ctx, remaining)

		return &change{
			deleted: stopID,
			batch:   segments.Batch{Upserts: added.Upserts, Deletes: removed.Deletes},
		}, nil
	})
}

// SetMode applies an explicit mode to the segment between two adjacent stops.
// Unreasonable choices are kept and reported as warnings.
func (s *Service) SetMode(ctx context.Context, tripID string, pair models.StopPair, mode models.TransportMode) (models.TransportSegment, []routing.Warning, error) {
	if !mode.IsValid() {
		return models.TransportSegment{}, nil, fmt.Errorf("%w: unknown transport mode %q", ErrInvalidStop, mode)
	}

	var seg models.TransportSegment
	var warnings []routing.Warning
	err := s.mutate(ctx, tripID, func(ctx context.Context, sess *session) (*change, error) {
		from, ok := sess.stops[pair.FromStopID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStopNotFound, pair.FromStopID)
		}
		to, ok := sess.stops[pair.ToStopID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStopNotFound, pair.ToStopID)
		}

		var batch segments.Batch
		var err error
		seg, batch, err = sess.segments.SetMode(ctx, sess.stopList(), pair, mode)
		if err != nil {
			return nil, err
		}
		if w, ok := checkPair(from, to, mode); ok {
			warnings = append(warnings, w)
		}

		return &change{batch: batch}, nil
	})
	return seg, warnings, err
}

// Regenerate discards and recomputes every segment of the trip
func (s *Service) Regenerate(ctx context.Context, tripID string) ([]models.TransportSegment, error) {
	var segs []models.TransportSegment
	err := s.mutate(ctx, tripID, func(ctx context.Context, sess *session) (*change, error) {
		batch := sess.segments.Regenerate(ctx, sess.stopList())
		segs = batch.Upserts
		return &change{batch: batch}, nil
	})
	return segs, err
}

// Itinerary renders the current state of the trip
func (s *Service) Itinerary(ctx context.Context, tripID string) (*Itinerary, error) {
	sess, err := s.acquire(ctx, tripID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stale() {
		return nil, ErrTripClosed
	}

	opCtx, cancel := sess.bind(ctx)
	defer cancel()

	stops := sess.stopList()
	conns := sess.segments.Connections(opCtx, stops)

	if sess.stale() {
		return nil, ErrTripClosed
	}
	return buildItinerary(sess.trip, stops, conns), nil
}

// change is what a mutation wants persisted
type change struct {
	saved   []models.Stop
	deleted string
	batch   segments.Batch
}

// mutate runs fn under the trip's session lock, then persists and publishes its change.
// fn works on the live session; if persisting fails the session is dropped so the
// next access reloads it from the store.
func (s *Service) mutate(ctx context.Context, tripID string, fn func(ctx context.Context, sess *session) (*change, error)) error {
	sess, err := s.acquire(ctx, tripID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stale() {
		return ErrTripClosed
	}

	opCtx, cancel := sess.bind(ctx)
	defer cancel()

	ch, err := fn(opCtx, sess)
	if err != nil {
		return err
	}
	if ch == nil {
		return nil
	}

	// The view may have closed while routes were requested
	if sess.stale() {
		logrus.WithField("trip_id", tripID).Warn("Discarding result for closed trip view")
		return ErrTripClosed
	}

	if err := s.persist(ctx, tripID, ch); err != nil {
		s.drop(tripID, sess)
		return err
	}

	for _, st := range ch.saved {
		sess.stops[st.ID] = st
	}
	if ch.deleted != "" {
		delete(sess.stops, ch.deleted)
	}
	sess.version++

	s.publish(ctx, sess)
	return nil
}

func (s *Service) persist(ctx context.Context, tripID string, ch *change) error {
	if ch.deleted != "" {
		if err := s.store.DeleteStop(ctx, tripID, ch.deleted); err != nil {
			return fmt.Errorf("failed to delete stop: %w", err)
		}
	}
	if len(ch.saved) > 0 {
		if err := s.store.SaveStops(ctx, tripID, ch.saved); err != nil {
			return fmt.Errorf("failed to save stops: %w", err)
		}
	}
	if !ch.batch.Empty() {
		if err := s.store.ApplySegmentWrites(ctx, tripID, ch.batch.Writes()); err != nil {
			return fmt.Errorf("failed to write segments: %w", err)
		}
	}
	return nil
}

// publish broadcasts the session state of a collaborative trip. Failures are logged only.
func (s *Service) publish(ctx context.Context, sess *session) {
	if s.channel == nil || !sess.trip.Collaborative {
		return
	}

	snap := models.TripSnapshot{
		Origin: s.instance,
		SentAt: s.now(),
		Trip:   sess.snapshot(),
	}
	if err := s.channel.Publish(ctx, snap); err != nil {
		logrus.WithFields(logrus.Fields{
			"trip_id": sess.trip.ID,
			"error":   err,
		}).Warn("Failed to publish trip snapshot")
	}
}

// acquire returns the open session for the trip, opening one if needed
func (s *Service) acquire(ctx context.Context, tripID string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[tripID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	t, err := s.store.LoadTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip %s: %w", tripID, err)
	}

	sess = newSession(t, segments.New(tripID, s.resolver, s.synth))

	if t.Collaborative && s.channel != nil {
		unsubscribe, err := s.channel.Subscribe(sess.ctx, tripID, func(snap models.TripSnapshot) {
			if snap.Origin == s.instance || snap.Trip.ID != tripID {
				return
			}
			sess.applySnapshot(snap)
		})
		if err != nil {
			sess.close()
			return nil, fmt.Errorf("failed to subscribe to trip %s: %w", tripID, err)
		}
		sess.unsubscribe = unsubscribe
	}

	s.mu.Lock()
	if existing, ok := s.sessions[tripID]; ok {
		// Lost a race with a concurrent open
		s.mu.Unlock()
		sess.close()
		return existing, nil
	}
	s.sessions[tripID] = sess
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"trip_id":       tripID,
		"stops":         len(t.Stops),
		"segments":      len(t.Segments),
		"collaborative": t.Collaborative,
	}).Info("Opened trip view")

	return sess, nil
}

// drop removes sess if it is still the trip's session
func (s *Service) drop(tripID string, sess *session) {
	s.mu.Lock()
	if s.sessions[tripID] == sess {
		delete(s.sessions, tripID)
	}
	s.mu.Unlock()

	// sess.mu is held by the caller; close without taking it
	sess.cancel()
	sess.closed = true
	if sess.unsubscribe != nil {
		sess.unsubscribe()
		sess.unsubscribe = nil
	}
}

func validateLocation(p models.LatLng) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.Abs(p.Lat) > 90 || math.Abs(p.Lng) > 180 {
		return fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrInvalidStop, p.Lat, p.Lng)
	}
	return nil
}

func sameSequence(a, b []models.Stop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// checkPair runs the advisory check for a chosen mode between two located stops
func checkPair(from, to models.Stop, mode models.TransportMode) (routing.Warning, bool) {
	if from.Location.IsZero() || to.Location.IsZero() {
		return routing.Warning{}, false
	}
	w, ok := routing.CheckMode(geo.DistanceKm(from.Location, to.Location), mode)
	if !ok {
		return w, false
	}
	w.FromStopID = from.ID
	w.ToStopID = to.ID
	return w, true
}

// IsNotFound reports whether err means a missing trip or stop
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTripNotFound) || errors.Is(err, ErrStopNotFound)
}
