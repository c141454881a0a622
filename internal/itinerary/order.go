// Package itinerary keeps the (day, order) ordering of a trip's stops.
// Days are derived from the stops; there is no separate day entity.
package itinerary

import (
	"sort"

	"github.com/passbi/passbi_itinerary/internal/models"
)

// DefaultDay is the day assigned to stops created without one
const DefaultDay = 1

// Sorted returns a copy of stops stable-sorted by day, then order.
// This is the itinerary sequence every other component works on.
func Sorted(stops []models.Stop) []models.Stop {
	sorted := make([]models.Stop, len(stops))
	copy(sorted, stops)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Day != sorted[j].Day {
			return sorted[i].Day < sorted[j].Day
		}
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}

// GroupByDay partitions the sorted sequence by day.
// Keys are exactly the days present.
func GroupByDay(stops []models.Stop) map[int][]models.Stop {
	groups := make(map[int][]models.Stop)
	for _, s := range Sorted(stops) {
		groups[s.Day] = append(groups[s.Day], s)
	}
	return groups
}

// Days returns the distinct days present, ascending
func Days(stops []models.Stop) []int {
	seen := make(map[int]bool)
	var days []int
	for _, s := range stops {
		if !seen[s.Day] {
			seen[s.Day] = true
			days = append(days, s.Day)
		}
	}
	sort.Ints(days)
	return days
}

// NextOrder is the order given to a newly appended stop: one past the highest
// order in the trip, so gaps left by deleted stops are never reused
func NextOrder(stops []models.Stop) int {
	next := 0
	for _, s := range stops {
		if s.Order >= next {
			next = s.Order + 1
		}
	}
	return next
}

// NormalizeDay maps a missing or invalid day to DefaultDay
func NormalizeDay(day int) int {
	if day < 1 {
		return DefaultDay
	}
	return day
}

// Move removes the stop at fromIndex of the sorted sequence and reinserts it at toIndex,
// then rewrites order to the 0-based position of every stop.
//
// Indices are clamped. day, when non-nil, overrides the moved stop's day (cross-day drag).
// Without an override the moved stop adopts its new neighbor's day when keeping its own
// would contradict the position it was dropped at. Only the moved stop's day ever changes.
func Move(stops []models.Stop, fromIndex, toIndex int, day *int) []models.Stop {
	seq := Sorted(stops)
	if len(seq) == 0 {
		return seq
	}

	fromIndex = clamp(fromIndex, 0, len(seq)-1)
	moved := seq[fromIndex]
	rest := make([]models.Stop, 0, len(seq)-1)
	rest = append(rest, seq[:fromIndex]...)
	rest = append(rest, seq[fromIndex+1:]...)

	toIndex = clamp(toIndex, 0, len(rest))

	if day != nil {
		moved.Day = NormalizeDay(*day)
	} else {
		moved.Day = dayAt(rest, toIndex, moved.Day)
	}

	result := make([]models.Stop, 0, len(seq))
	result = append(result, rest[:toIndex]...)
	result = append(result, moved)
	result = append(result, rest[toIndex:]...)

	// An explicit day that disagrees with the drop position moves the stop to the
	// edge of its day group; relative order is otherwise preserved.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Day < result[j].Day
	})

	for i := range result {
		result[i].Order = i
	}
	return result
}

// IndexOf returns the position of stopID in the sorted sequence, or -1
func IndexOf(stops []models.Stop, stopID string) int {
	for i, s := range Sorted(stops) {
		if s.ID == stopID {
			return i
		}
	}
	return -1
}

// AdjacentPairs returns the consecutive pairs of the sorted sequence
func AdjacentPairs(stops []models.Stop) []models.StopPair {
	seq := Sorted(stops)
	if len(seq) < 2 {
		return nil
	}
	pairs := make([]models.StopPair, 0, len(seq)-1)
	for i := 0; i+1 < len(seq); i++ {
		pairs = append(pairs, models.StopPair{FromStopID: seq[i].ID, ToStopID: seq[i+1].ID})
	}
	return pairs
}

// Located filters out stops without coordinates
func Located(stops []models.Stop) []models.Stop {
	var located []models.Stop
	for _, s := range stops {
		if !s.Location.IsZero() {
			located = append(located, s)
		}
	}
	return located
}

// dayAt keeps current when it fits between the neighbors around index, otherwise
// returns the closest neighbor's day.
func dayAt(rest []models.Stop, index, current int) int {
	var prev, next *models.Stop
	if index > 0 {
		prev = &rest[index-1]
	}
	if index < len(rest) {
		next = &rest[index]
	}

	if prev != nil && current < prev.Day {
		return prev.Day
	}
	if next != nil && current > next.Day {
		return next.Day
	}
	return current
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
