package selection

import (
	"time"

	"github.com/example/pc-reservation/internal/timegrid"
)

// LongPressHold is how long a touch must stay put before it starts a selection.
const LongPressHold = 500 * time.Millisecond

// LongPressGate delays a touch-start until it has been held stationary.
type LongPressGate struct {
	hold     time.Duration
	pending  bool
	resource string
	slot     timegrid.Slot
	since    time.Time
}

// NewLongPressGate returns a gate with the given hold. A non-positive hold uses LongPressHold.
func NewLongPressGate(hold time.Duration) *LongPressGate {
	if hold <= 0 {
		hold = LongPressHold
	}
	return &LongPressGate{hold: hold}
}

// TouchStart arms the gate, replacing any earlier pending touch.
func (g *LongPressGate) TouchStart(resource string, slot timegrid.Slot, at time.Time) {
	g.pending = true
	g.resource = resource
	g.slot = slot
	g.since = at
}

// Pending reports whether a touch is waiting for the hold to elapse.
func (g *LongPressGate) Pending() bool {
	return g.pending
}

// Deadline returns the instant at which the pending touch fires.
func (g *LongPressGate) Deadline() (time.Time, bool) {
	if !g.pending {
		return time.Time{}, false
	}
	return g.since.Add(g.hold), true
}

// Tick fires the pending touch once the hold has elapsed. The gate disarms on fire.
func (g *LongPressGate) Tick(now time.Time) (string, timegrid.Slot, bool) {
	if !g.pending || now.Sub(g.since) < g.hold {
		return "", timegrid.Slot{}, false
	}
	resource, slot := g.resource, g.slot
	g.Cancel()
	return resource, slot, true
}

// Cancel disarms the gate without firing.
func (g *LongPressGate) Cancel() {
	g.pending = false
	g.resource = ""
	g.slot = timegrid.Slot{}
	g.since = time.Time{}
}
