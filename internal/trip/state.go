package trip

import (
	"context"
	"sort"
	"sync"

	"github.com/passbi/passbi_itinerary/internal/itinerary"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/segments"
	"github.com/sirupsen/logrus"
)

// session holds the in-memory state of one open trip view.
// Every mutation and every remote snapshot goes through mu.
type session struct {
	mu       sync.Mutex
	trip     models.Trip
	stops    map[string]models.Stop
	segments *segments.Cache
	version  uint64

	// ctx is cancelled when the view is closed; in-flight work bound to it is discarded
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	closed      bool
}

func newSession(t models.Trip, cache *segments.Cache) *session {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		segments: cache,
		ctx:      ctx,
		cancel:   cancel,
	}
	sess.replace(t)
	return sess
}

// replace swaps in a complete stop/segment set
func (sess *session) replace(t models.Trip) {
	stops := make(map[string]models.Stop, len(t.Stops))
	for _, s := range t.Stops {
		stops[s.ID] = s
	}

	sess.trip = models.Trip{ID: t.ID, Name: t.Name, Collaborative: t.Collaborative}
	sess.stops = stops
	sess.segments.Load(t.Segments)
	sess.version++
}

// applySnapshot replaces local state with a remote snapshot: last writer wins
func (sess *session) applySnapshot(snap models.TripSnapshot) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return
	}

	sess.replace(snap.Trip)

	logrus.WithFields(logrus.Fields{
		"trip_id":  snap.Trip.ID,
		"origin":   snap.Origin,
		"stops":    len(snap.Trip.Stops),
		"segments": len(snap.Trip.Segments),
	}).Info("Applied remote trip snapshot")
}

// bind derives an operation context that is also cancelled when the view closes
func (sess *session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(sess.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// stale reports whether results computed for this session must be discarded
func (sess *session) stale() bool {
	return sess.closed || sess.ctx.Err() != nil
}

// close cancels in-flight work, then tears down the subscription
func (sess *session) close() {
	sess.cancel()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return
	}
	sess.closed = true
	if sess.unsubscribe != nil {
		sess.unsubscribe()
		sess.unsubscribe = nil
	}
}

// stopList returns the stops in itinerary order
func (sess *session) stopList() []models.Stop {
	stops := make([]models.Stop, 0, len(sess.stops))
	for _, s := range sess.stops {
		stops = append(stops, s)
	}
	// map order is random; ties on (day, order) fall back to creation order
	sort.Slice(stops, func(i, j int) bool {
		if !stops[i].CreatedAt.Equal(stops[j].CreatedAt) {
			return stops[i].CreatedAt.Before(stops[j].CreatedAt)
		}
		return stops[i].ID < stops[j].ID
	})
	return itinerary.Sorted(stops)
}

// snapshot returns the current stops and the segments of their adjacent pairs.
// Segments left behind by incremental generation are not broadcast.
func (sess *session) snapshot() models.Trip {
	t := sess.trip
	t.Stops = sess.stopList()

	adjacent := make(map[models.StopPair]bool, len(t.Stops))
	for _, pair := range itinerary.AdjacentPairs(t.Stops) {
		adjacent[pair] = true
	}
	t.Segments = make([]models.TransportSegment, 0, len(adjacent))
	for _, seg := range sess.segments.Segments() {
		if adjacent[seg.Pair()] {
			t.Segments = append(t.Segments, seg)
		}
	}
	return t
}
