package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/passbi/passbi_itinerary/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Realtime broadcasts trip snapshots over Redis pub/sub, one channel per trip
type Realtime struct {
	client *redis.Client
}

// NewRealtime creates a realtime channel on client
func NewRealtime(client *redis.Client) *Realtime {
	return &Realtime{client: client}
}

// ChannelName is the pub/sub channel for a trip
func ChannelName(tripID string) string {
	return fmt.Sprintf("trip:%s", tripID)
}

// Subscribe delivers every snapshot published for tripID to onUpdate until the
// returned unsubscribe is called or ctx ends.
func (r *Realtime) Subscribe(ctx context.Context, tripID string, onUpdate func(models.TripSnapshot)) (func(), error) {
	pubsub := r.client.Subscribe(ctx, ChannelName(tripID))

	// Wait for the subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", ChannelName(tripID), err)
	}

	done := make(chan struct{})
	go func() {
		messages := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				snap, err := DecodeSnapshot([]byte(msg.Payload))
				if err != nil {
					logrus.WithFields(logrus.Fields{
						"trip_id": tripID,
						"error":   err,
					}).Warn("Dropping malformed trip snapshot")
					continue
				}
				onUpdate(snap)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}, nil
}

// Publish broadcasts a snapshot to the trip's subscribers
func (r *Realtime) Publish(ctx context.Context, snap models.TripSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return r.client.Publish(ctx, ChannelName(snap.Trip.ID), data).Err()
}

// DecodeSnapshot parses a published snapshot
func DecodeSnapshot(data []byte) (models.TripSnapshot, error) {
	var snap models.TripSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Trip.ID == "" {
		return snap, fmt.Errorf("snapshot has no trip id")
	}
	return snap, nil
}
