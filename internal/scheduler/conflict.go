package scheduler

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has positive length.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.Start.Before(i.End)
}

// Booking is an existing reservation of a single computer.
type Booking struct {
	ID         string
	ComputerID string
	Start      time.Time
	End        time.Time
}

// Interval returns the booking window.
func (b Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// Overlaps reports whether two half-open intervals share any instant. Touching
// boundaries do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// threeClauseOverlap is the start-inside, end-inside, contains formulation. It must
// agree with Overlaps for every valid pair.
func threeClauseOverlap(candidate, existing Interval) bool {
	startInside := !existing.Start.After(candidate.Start) && existing.End.After(candidate.Start)
	endInside := existing.Start.Before(candidate.End) && !existing.End.Before(candidate.End)
	contains := !candidate.Start.After(existing.Start) && !candidate.End.Before(existing.End)
	return startInside || endInside || contains
}

// FindConflict returns the earliest booking on computerID that overlaps candidate,
// skipping excludeID. An invalid candidate conflicts with nothing and is reported
// through Accepts instead.
func FindConflict(computerID string, candidate Interval, existing []Booking, excludeID string) (Booking, bool) {
	if !candidate.Valid() {
		return Booking{}, false
	}

	conflicts := make([]Booking, 0, 1)
	for _, booking := range existing {
		if booking.ComputerID != computerID {
			continue
		}
		if excludeID != "" && booking.ID == excludeID {
			continue
		}
		if Overlaps(candidate, booking.Interval()) {
			conflicts = append(conflicts, booking)
		}
	}
	if len(conflicts) == 0 {
		return Booking{}, false
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Start.Equal(conflicts[j].Start) {
			return conflicts[i].ID < conflicts[j].ID
		}
		return conflicts[i].Start.Before(conflicts[j].Start)
	})
	return conflicts[0], true
}

// Accepts decides whether candidate may be booked on computerID given the existing
// bookings. Zero-length and inverted candidates are rejected.
func Accepts(computerID string, candidate Interval, existing []Booking, excludeID string) bool {
	if !candidate.Valid() {
		return false
	}
	_, conflict := FindConflict(computerID, candidate, existing, excludeID)
	return !conflict
}
