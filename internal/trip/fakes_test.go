package trip

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/passbi/passbi_itinerary/internal/models"
)

// memStore is an in-memory Store
type memStore struct {
	mu       sync.Mutex
	trips    map[string]models.Trip
	writes   [][]models.SegmentWrite
	saves    int
	failNext error
}

func newMemStore(trips ...models.Trip) *memStore {
	st := &memStore{trips: make(map[string]models.Trip)}
	for _, t := range trips {
		st.trips[t.ID] = t
	}
	return st
}

func (m *memStore) LoadTrip(ctx context.Context, tripID string) (models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok {
		return models.Trip{}, fmt.Errorf("%w: %s", ErrTripNotFound, tripID)
	}
	t.Stops = append([]models.Stop(nil), t.Stops...)
	t.Segments = append([]models.TransportSegment(nil), t.Segments...)
	return t, nil
}

func (m *memStore) SaveStops(ctx context.Context, tripID string, stops []models.Stop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.saves++
	t := m.trips[tripID]
	for _, s := range stops {
		replaced := false
		for i := range t.Stops {
			if t.Stops[i].ID == s.ID {
				t.Stops[i] = s
				replaced = true
			}
		}
		if !replaced {
			t.Stops = append(t.Stops, s)
		}
	}
	m.trips[tripID] = t
	return nil
}

func (m *memStore) DeleteStop(ctx context.Context, tripID, stopID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	t := m.trips[tripID]
	var stops []models.Stop
	for _, s := range t.Stops {
		if s.ID != stopID {
			stops = append(stops, s)
		}
	}
	var segs []models.TransportSegment
	for _, s := range t.Segments {
		if s.FromStopID != stopID && s.ToStopID != stopID {
			segs = append(segs, s)
		}
	}
	t.Stops, t.Segments = stops, segs
	m.trips[tripID] = t
	return nil
}

func (m *memStore) ApplySegmentWrites(ctx context.Context, tripID string, writes []models.SegmentWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.writes = append(m.writes, writes)
	t := m.trips[tripID]
	for _, w := range writes {
		var segs []models.TransportSegment
		for _, s := range t.Segments {
			if s.ID != w.Segment.ID && s.Pair() != w.Segment.Pair() {
				segs = append(segs, s)
			}
		}
		if w.Op == models.WriteUpsert {
			segs = append(segs, w.Segment)
		}
		t.Segments = segs
	}
	m.trips[tripID] = t
	return nil
}

func (m *memStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) trip(tripID string) models.Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trips[tripID]
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// fakeChannel records subscriptions and published snapshots
type fakeChannel struct {
	mu        sync.Mutex
	handlers  map[string]func(models.TripSnapshot)
	subscribe int
	published []models.TripSnapshot
	failSub   bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string]func(models.TripSnapshot))}
}

func (c *fakeChannel) Subscribe(ctx context.Context, tripID string, onUpdate func(models.TripSnapshot)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSub {
		return nil, errors.New("subscribe failed")
	}
	c.subscribe++
	c.handlers[tripID] = onUpdate
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, tripID)
	}, nil
}

func (c *fakeChannel) Publish(ctx context.Context, snap models.TripSnapshot) error {
	c.mu.Lock()
	c.published = append(c.published, snap)
	c.mu.Unlock()
	c.deliver(snap)
	return nil
}

// deliver hands a snapshot to the trip's subscriber, if any
func (c *fakeChannel) deliver(snap models.TripSnapshot) {
	c.mu.Lock()
	fn := c.handlers[snap.Trip.ID]
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (c *fakeChannel) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

// gateProvider blocks every request until the context ends
type gateProvider struct {
	once    sync.Once
	started chan struct{}
}

func newGateProvider() *gateProvider {
	return &gateProvider{started: make(chan struct{})}
}

func (p *gateProvider) RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error) {
	p.once.Do(func() { close(p.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

// lineProvider answers with a straight line
type lineProvider struct{}

func (lineProvider) RequestRoute(ctx context.Context, origin, destination models.LatLng, mode models.TransportMode, realistic bool) ([]models.LatLng, error) {
	return []models.LatLng{origin, destination}, nil
}
