// Package timegrid discretizes a calendar day into fixed ten minute slots and maps
// slots to reservation boundary instants in a single configured location.
package timegrid

import (
	"fmt"
	"time"
)

const (
	// SlotMinutes is the width of one slot.
	SlotMinutes = 10
	// SlotWidth is SlotMinutes as a duration.
	SlotWidth = SlotMinutes * time.Minute
	// SlotsPerHour is the number of slots in one hour.
	SlotsPerHour = 60 / SlotMinutes
	// SlotsPerDay is the number of slots from 00:00 to 23:50.
	SlotsPerDay = 24 * SlotsPerHour
)

// Slot identifies one cell of the day grid.
type Slot struct {
	Hour   int
	Minute int
}

// Valid reports whether the slot lies on the grid.
func (s Slot) Valid() bool {
	return s.Hour >= 0 && s.Hour <= 23 && s.Minute >= 0 && s.Minute < 60 && s.Minute%SlotMinutes == 0
}

// Index returns the position of the slot in the day, or -1 when off the grid.
func (s Slot) Index() int {
	if !s.Valid() {
		return -1
	}
	return s.Hour*SlotsPerHour + s.Minute/SlotMinutes
}

// String renders the slot as HH:MM.
func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// Grid maps slots to instants in one location.
type Grid struct {
	loc *time.Location
}

// New returns a grid anchored in loc. A nil location falls back to JST.
func New(loc *time.Location) Grid {
	if loc == nil {
		loc = JST()
	}
	return Grid{loc: loc}
}

// Location returns the location day boundaries are computed in.
func (g Grid) Location() *time.Location {
	if g.loc == nil {
		return JST()
	}
	return g.loc
}

// Slots enumerates every slot of the day in order. Each call returns a fresh slice.
func (g Grid) Slots() []Slot {
	slots := make([]Slot, 0, SlotsPerDay)
	for hour := 0; hour <= 23; hour++ {
		for minute := 0; minute < 60; minute += SlotMinutes {
			slots = append(slots, Slot{Hour: hour, Minute: minute})
		}
	}
	return slots
}

// HourBoundaries returns the hours 0 through 23 for header rendering.
func (g Grid) HourBoundaries() []int {
	hours := make([]int, 24)
	for i := range hours {
		hours[i] = i
	}
	return hours
}

// SlotAt returns the slot at the given day index.
func (g Grid) SlotAt(index int) (Slot, bool) {
	if index < 0 || index >= SlotsPerDay {
		return Slot{}, false
	}
	return Slot{Hour: index / SlotsPerHour, Minute: (index % SlotsPerHour) * SlotMinutes}, true
}

// SlotIndex returns the day index of slot.
func (g Grid) SlotIndex(slot Slot) (int, bool) {
	idx := slot.Index()
	return idx, idx >= 0
}

// ToInstant combines the calendar day of date with the slot time at zero seconds.
func (g Grid) ToInstant(date time.Time, slot Slot) time.Time {
	loc := g.Location()
	local := date.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), slot.Hour, slot.Minute, 0, 0, loc)
}

// SlotOf floors an instant to the slot containing it.
func (g Grid) SlotOf(instant time.Time) Slot {
	local := instant.In(g.Location())
	return Slot{Hour: local.Hour(), Minute: local.Minute() - local.Minute()%SlotMinutes}
}

// StartOfDay returns local midnight of the day containing t.
func (g Grid) StartOfDay(t time.Time) time.Time {
	loc := g.Location()
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayBounds returns the half-open window [start, end) of the local day containing date.
func (g Grid) DayBounds(date time.Time) (time.Time, time.Time) {
	start := g.StartOfDay(date)
	return start, start.AddDate(0, 0, 1)
}

// DateKey formats the local calendar date of t as YYYY-MM-DD.
func (g Grid) DateKey(t time.Time) string {
	return t.In(g.Location()).Format(time.DateOnly)
}

// ParseDate interprets a YYYY-MM-DD string as a calendar day in the grid location.
func (g Grid) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, value, g.Location())
}

// FormatRange renders start and end as "HH:MM～HH:MM" in the grid location.
func (g Grid) FormatRange(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return ""
	}
	loc := g.Location()
	return start.In(loc).Format("15:04") + "～" + end.In(loc).Format("15:04")
}
