// Package segments keeps one transport segment per adjacent stop pair of a trip
// and decides when segments are reused, extended or recomputed.
package segments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/passbi/passbi_itinerary/internal/itinerary"
	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/passbi/passbi_itinerary/internal/routing"
	"github.com/sirupsen/logrus"
)

// ErrNotAdjacent is returned when a mode override targets stops that are not consecutive
var ErrNotAdjacent = errors.New("stops are not adjacent")

// Batch is the set of segment writes produced by one cache operation
type Batch struct {
	Upserts []models.TransportSegment
	Deletes []models.TransportSegment
}

// Empty reports whether the batch has nothing to write
func (b Batch) Empty() bool {
	return len(b.Upserts) == 0 && len(b.Deletes) == 0
}

// Writes flattens the batch, deletes first so a pair can be deleted and recreated atomically
func (b Batch) Writes() []models.SegmentWrite {
	writes := make([]models.SegmentWrite, 0, len(b.Upserts)+len(b.Deletes))
	for _, s := range b.Deletes {
		writes = append(writes, models.SegmentWrite{Op: models.WriteDelete, Segment: s})
	}
	for _, s := range b.Upserts {
		writes = append(writes, models.SegmentWrite{Op: models.WriteUpsert, Segment: s})
	}
	return writes
}

// Connection is one adjacent stop pair with its segment and drawn legs.
// Legs may be empty: known timing, no drawn path.
type Connection struct {
	From       models.Stop
	To         models.Stop
	Segment    models.TransportSegment
	HasSegment bool
	Legs       []models.Leg
}

// Cache holds the segments of one trip and the geometry synthesized for them.
// It is not safe for concurrent use; callers serialize mutations per trip.
type Cache struct {
	tripID   string
	resolver *routing.Resolver
	synth    *routing.Synthesizer

	segments map[models.StopPair]models.TransportSegment
	// geometry presence means synthesis ran; a nil value means nothing drawable
	geometry map[models.StopPair][]models.Leg

	now func() time.Time
}

// New creates an empty cache for a trip
func New(tripID string, resolver *routing.Resolver, synth *routing.Synthesizer) *Cache {
	return &Cache{
		tripID:   tripID,
		resolver: resolver,
		synth:    synth,
		segments: make(map[models.StopPair]models.TransportSegment),
		geometry: make(map[models.StopPair][]models.Leg),
		now:      time.Now,
	}
}

// Load replaces the cached segments wholesale and drops all geometry.
// Duplicate pairs keep the last occurrence.
func (c *Cache) Load(segs []models.TransportSegment) {
	c.segments = make(map[models.StopPair]models.TransportSegment, len(segs))
	c.geometry = make(map[models.StopPair][]models.Leg)
	for _, s := range segs {
		c.segments[s.Pair()] = s
	}
}

// Len returns the number of cached segments
func (c *Cache) Len() int {
	return len(c.segments)
}

// Get returns the segment for a pair
func (c *Cache) Get(pair models.StopPair) (models.TransportSegment, bool) {
	s, ok := c.segments[pair]
	return s, ok
}

// Segments returns every cached segment ordered by pair
func (c *Cache) Segments() []models.TransportSegment {
	segs := make([]models.TransportSegment, 0, len(c.segments))
	for _, s := range c.segments {
		segs = append(segs, s)
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].FromStopID != segs[j].FromStopID {
			return segs[i].FromStopID < segs[j].FromStopID
		}
		return segs[i].ToStopID < segs[j].ToStopID
	})
	return segs
}

// Incremental adds a segment for every adjacent pair that has none.
// Existing segments are untouched, even when the stops changed or are no longer adjacent.
func (c *Cache) Incremental(ctx context.Context, stops []models.Stop) Batch {
	var pairs []routing.Pair
	for _, p := range adjacent(stops) {
		if _, ok := c.segments[p.Segment.Pair()]; ok {
			continue
		}
		pairs = append(pairs, c.resolve(p))
	}

	batch := Batch{Upserts: c.store(ctx, pairs)}

	logrus.WithFields(logrus.Fields{
		"trip_id": c.tripID,
		"added":   len(batch.Upserts),
	}).Debug("Incremental segment generation")

	return batch
}

// Regenerate discards every segment of the trip and recomputes one per adjacent pair,
// re-resolving mode and duration unconditionally.
func (c *Cache) Regenerate(ctx context.Context, stops []models.Stop) Batch {
	batch := Batch{Deletes: c.Segments()}

	c.segments = make(map[models.StopPair]models.TransportSegment)
	c.geometry = make(map[models.StopPair][]models.Leg)

	pairs := adjacent(stops)
	for i := range pairs {
		pairs[i] = c.resolve(pairs[i])
	}
	batch.Upserts = c.store(ctx, pairs)

	logrus.WithFields(logrus.Fields{
		"trip_id": c.tripID,
		"deleted": len(batch.Deletes),
		"created": len(batch.Upserts),
	}).Info("Regenerated transport segments")

	return batch
}

// RemoveStop drops every segment referencing the stop
func (c *Cache) RemoveStop(stopID string) Batch {
	var batch Batch
	for pair, s := range c.segments {
		if pair.FromStopID == stopID || pair.ToStopID == stopID {
			batch.Deletes = append(batch.Deletes, s)
			delete(c.segments, pair)
			delete(c.geometry, pair)
		}
	}
	sort.Slice(batch.Deletes, func(i, j int) bool {
		return batch.Deletes[i].ID < batch.Deletes[j].ID
	})
	return batch
}

// SetMode applies an explicit user mode to an adjacent pair, recomputing its
// duration and geometry. A missing segment for the pair is created.
func (c *Cache) SetMode(ctx context.Context, stops []models.Stop, pair models.StopPair, mode models.TransportMode) (models.TransportSegment, Batch, error) {
	if !mode.IsValid() {
		return models.TransportSegment{}, Batch{}, fmt.Errorf("invalid transport mode %q", mode)
	}

	var target *routing.Pair
	for _, p := range adjacent(stops) {
		if p.Segment.Pair() == pair {
			target = &p
			break
		}
	}
	if target == nil {
		return models.TransportSegment{}, Batch{}, fmt.Errorf("%w: %s -> %s", ErrNotAdjacent, pair.FromStopID, pair.ToStopID)
	}

	r := c.resolver.ResolveWithMode(target.From, target.To, mode)
	seg, ok := c.segments[pair]
	if !ok {
		seg = c.newSegment(pair)
	}
	seg.Mode = r.Mode
	seg.DistanceMeters = r.DistanceMeters
	seg.DurationSeconds = r.DurationSeconds
	seg.UpdatedAt = c.now()
	target.Segment = seg

	stored := c.store(ctx, []routing.Pair{*target})
	return stored[0], Batch{Upserts: stored}, nil
}

// Connections returns one connection per adjacent pair of the sorted sequence.
// Geometry missing for a segment (after Load, for instance) is synthesized here.
// Segments for pairs that are not adjacent are never returned.
func (c *Cache) Connections(ctx context.Context, stops []models.Stop) []Connection {
	pairs := adjacent(stops)
	conns := make([]Connection, len(pairs))

	var missing []routing.Pair
	var missingIdx []int
	for i, p := range pairs {
		conns[i] = Connection{From: p.From, To: p.To}
		seg, ok := c.segments[p.Segment.Pair()]
		if !ok {
			continue
		}
		conns[i].Segment = seg
		conns[i].HasSegment = true
		if legs, drawn := c.geometry[seg.Pair()]; drawn {
			conns[i].Legs = legs
			continue
		}
		p.Segment = seg
		missing = append(missing, p)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		results := c.synth.Legs(ctx, missing)
		for j, legs := range results {
			c.geometry[missing[j].Segment.Pair()] = legs
			conns[missingIdx[j]].Legs = legs
		}
	}

	return conns
}

// Legs flattens the drawn legs of the current connections, in itinerary order
func Legs(conns []Connection) []models.Leg {
	var legs []models.Leg
	for _, c := range conns {
		legs = append(legs, c.Legs...)
	}
	return legs
}

// store saves resolved pairs, synthesizing their geometry concurrently
func (c *Cache) store(ctx context.Context, pairs []routing.Pair) []models.TransportSegment {
	if len(pairs) == 0 {
		return nil
	}

	results := c.synth.Legs(ctx, pairs)
	saved := make([]models.TransportSegment, 0, len(pairs))
	for i, p := range pairs {
		pair := p.Segment.Pair()
		c.segments[pair] = p.Segment
		c.geometry[pair] = results[i]
		if results[i] == nil {
			logrus.WithFields(logrus.Fields{
				"trip_id":      c.tripID,
				"from_stop_id": pair.FromStopID,
				"to_stop_id":   pair.ToStopID,
				"mode":         p.Segment.Mode,
			}).Debug("Segment has no drawn path")
		}
		saved = append(saved, p.Segment)
	}
	return saved
}

// resolve assigns a fresh segment with inferred mode and duration to the pair
func (c *Cache) resolve(p routing.Pair) routing.Pair {
	r := c.resolver.Resolve(p.From, p.To)
	seg := c.newSegment(p.Segment.Pair())
	seg.Mode = r.Mode
	seg.DistanceMeters = r.DistanceMeters
	seg.DurationSeconds = r.DurationSeconds
	p.Segment = seg
	return p
}

func (c *Cache) newSegment(pair models.StopPair) models.TransportSegment {
	now := c.now()
	return models.TransportSegment{
		ID:         uuid.NewString(),
		TripID:     c.tripID,
		FromStopID: pair.FromStopID,
		ToStopID:   pair.ToStopID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// adjacent returns the consecutive pairs of the sorted sequence with only the pair ids set
func adjacent(stops []models.Stop) []routing.Pair {
	seq := itinerary.Sorted(stops)
	if len(seq) < 2 {
		return nil
	}
	pairs := make([]routing.Pair, 0, len(seq)-1)
	for i := 0; i+1 < len(seq); i++ {
		pairs = append(pairs, routing.Pair{
			From: seq[i],
			To:   seq[i+1],
			Segment: models.TransportSegment{
				FromStopID: seq[i].ID,
				ToStopID:   seq[i+1].ID,
			},
		})
	}
	return pairs
}
