// Package selection models the drag selection of a reservation window on the day grid
// as an explicit state machine. Transitions are pure and return a new Machine.
package selection

import (
	"time"

	"github.com/example/pc-reservation/internal/timegrid"
)

// State enumerates the selection phases.
type State int

const (
	Idle State = iota
	Selecting
	Committed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Committed:
		return "committed"
	default:
		return "unknown"
	}
}

// Occupancy reports whether resource already has a reservation covering instant.
type Occupancy func(resource string, instant time.Time) bool

// Machine is an immutable selection value bound to one calendar day.
type Machine struct {
	grid     timegrid.Grid
	date     time.Time
	state    State
	resource string
	anchor   timegrid.Slot
	current  timegrid.Slot
	start    time.Time
	end      time.Time
}

// New returns an idle machine for the calendar day of date.
func New(grid timegrid.Grid, date time.Time) Machine {
	return Machine{grid: grid, date: grid.StartOfDay(date)}
}

// State returns the current phase.
func (m Machine) State() State { return m.state }

// Resource returns the resource being selected, empty when idle.
func (m Machine) Resource() string { return m.resource }

// Date returns local midnight of the day the machine is bound to.
func (m Machine) Date() time.Time { return m.date }

func (m Machine) Anchor() timegrid.Slot { return m.anchor }

func (m Machine) Current() timegrid.Slot { return m.current }

// Interval returns the derived candidate window. ok is false when idle.
func (m Machine) Interval() (start, end time.Time, ok bool) {
	if m.state == Idle {
		return time.Time{}, time.Time{}, false
	}
	return m.start, m.end, true
}

// BeginAt starts a selection. It is a no-op outside Idle, for off-grid slots and for
// slots the resource already has booked.
func (m Machine) BeginAt(resource string, slot timegrid.Slot, occupied Occupancy) Machine {
	if m.state != Idle || resource == "" || !slot.Valid() {
		return m
	}
	if occupied != nil && occupied(resource, m.grid.ToInstant(m.date, slot)) {
		return m
	}
	next := m
	next.state = Selecting
	next.resource = resource
	next.anchor = slot
	next.current = slot
	next.start, next.end = next.derive()
	return next
}

// MoveTo extends the selection to slot. Moves onto another resource are ignored.
func (m Machine) MoveTo(resource string, slot timegrid.Slot) Machine {
	if m.state != Selecting || resource != m.resource || !slot.Valid() {
		return m
	}
	next := m
	next.current = slot
	next.start, next.end = next.derive()
	return next
}

// Release freezes the derived window. A degenerate window falls back to Idle.
func (m Machine) Release() Machine {
	if m.state != Selecting {
		return m
	}
	if m.resource == "" || m.start.IsZero() || m.end.IsZero() || !m.start.Before(m.end) {
		return m.Reset(m.date)
	}
	next := m
	next.state = Committed
	return next
}

// Confirm clears a committed selection once it has been persisted.
func (m Machine) Confirm() Machine {
	if m.state != Committed {
		return m
	}
	return m.Reset(m.date)
}

// Cancel discards any selection in progress or committed.
func (m Machine) Cancel() Machine {
	return m.Reset(m.date)
}

// Reset returns an idle machine for date, dropping all transient state.
func (m Machine) Reset(date time.Time) Machine {
	return New(m.grid, date)
}

// Contains reports whether instant falls inside the current selection of resource.
func (m Machine) Contains(resource string, instant time.Time) bool {
	if m.state == Idle || resource != m.resource {
		return false
	}
	return !instant.Before(m.start) && instant.Before(m.end)
}

// derive spans anchor and current, inclusive of one slot width past the later slot.
func (m Machine) derive() (time.Time, time.Time) {
	lo, hi := m.anchor, m.current
	if hi.Index() < lo.Index() {
		lo, hi = hi, lo
	}
	start := m.grid.ToInstant(m.date, lo)
	end := m.grid.ToInstant(m.date, hi).Add(timegrid.SlotWidth)
	return start, end
}
