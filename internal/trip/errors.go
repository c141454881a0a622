package trip

import "errors"

var (
	// ErrTripNotFound is returned when the store has no trip with the id
	ErrTripNotFound = errors.New("trip not found")
	// ErrStopNotFound is returned when a stop id is not part of the trip
	ErrStopNotFound = errors.New("stop not found")
	// ErrTripClosed is returned when the trip view was closed while an operation was in flight.
	// The operation's result was discarded.
	ErrTripClosed = errors.New("trip view closed")
	// ErrInvalidStop is returned for stop input that cannot be stored
	ErrInvalidStop = errors.New("invalid stop")
)
