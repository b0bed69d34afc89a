package selection

import (
	"sync"
	"time"

	"github.com/example/pc-reservation/internal/timegrid"
)

// ScrollLock suppresses ambient page scrolling during a touch drag.
type ScrollLock interface {
	Suppress()
	Restore()
}

type noopScrollLock struct{}

func (noopScrollLock) Suppress() {}
func (noopScrollLock) Restore() {}

// Session serializes pointer and touch events against one Machine. Each event is
// processed to completion before the next one is accepted.
type Session struct {
	mu         sync.Mutex
	machine    Machine
	gate       *LongPressGate
	scroll     ScrollLock
	occupied   Occupancy
	suppressed bool
	touchDrag  bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithScrollLock installs the collaborator that suppresses page scrolling.
func WithScrollLock(lock ScrollLock) SessionOption {
	return func(s *Session) {
		if lock != nil {
			s.scroll = lock
		}
	}
}

// WithOccupancy installs the predicate used to refuse starting on booked slots.
func WithOccupancy(occupied Occupancy) SessionOption {
	return func(s *Session) {
		s.occupied = occupied
	}
}

// WithLongPressHold overrides the long-press duration.
func WithLongPressHold(hold time.Duration) SessionOption {
	return func(s *Session) {
		s.gate = NewLongPressGate(hold)
	}
}

// NewSession returns an idle session for the day of date.
func NewSession(grid timegrid.Grid, date time.Time, opts ...SessionOption) *Session {
	s := &Session{
		machine: New(grid, date),
		gate:    NewLongPressGate(LongPressHold),
		scroll:  noopScrollLock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current machine value.
func (s *Session) Snapshot() Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine
}

// PointerDown starts a mouse selection immediately.
func (s *Session) PointerDown(resource string, slot timegrid.Slot) Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine = s.machine.BeginAt(resource, slot, s.occupied)
	return s.machine
}

// PointerMove extends the selection.
func (s *Session) PointerMove(resource string, slot timegrid.Slot) Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine = s.machine.MoveTo(resource, slot)
	return s.machine
}

// PointerUp releases the selection. A pointer release ends a touch drag too,
// so scrolling is restored.
func (s *Session) PointerUp() Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine = s.machine.Release()
	if s.touchDrag {
		s.endDrag()
	}
	return s.machine
}

// TouchStart arms the long-press gate.
func (s *Session) TouchStart(resource string, slot timegrid.Slot, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.State() != Idle {
		return
	}
	s.gate.TouchStart(resource, slot, at)
}

// Tick fires a pending long press whose hold has elapsed and, if a selection
// started, suppresses scrolling for the drag.
func (s *Session) Tick(now time.Time) Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	resource, slot, fired := s.gate.Tick(now)
	if !fired {
		return s.machine
	}
	s.machine = s.machine.BeginAt(resource, slot, s.occupied)
	if s.machine.State() == Selecting {
		s.touchDrag = true
		s.suppress()
	}
	return s.machine
}

// TouchMove cancels a pending long press, or extends an active touch drag.
func (s *Session) TouchMove(resource string, slot timegrid.Slot) Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate.Pending() {
		s.gate.Cancel()
		return s.machine
	}
	if s.touchDrag {
		s.machine = s.machine.MoveTo(resource, slot)
	}
	return s.machine
}

// TouchEnd cancels a pending long press, or releases an active touch drag.
func (s *Session) TouchEnd() Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate.Pending() {
		s.gate.Cancel()
		return s.machine
	}
	if s.touchDrag {
		s.machine = s.machine.Release()
	}
	s.endDrag()
	return s.machine
}

// Confirm clears a committed selection after it has been saved.
func (s *Session) Confirm() Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine = s.machine.Confirm()
	return s.machine
}

// Cancel discards the selection and any pending long press.
func (s *Session) Cancel() Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.Cancel()
	s.machine = s.machine.Cancel()
	s.endDrag()
	return s.machine
}

// ChangeDate resets the session onto another day.
func (s *Session) ChangeDate(date time.Time) Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.Cancel()
	s.machine = s.machine.Reset(date)
	s.endDrag()
	return s.machine
}

// Close tears the session down, restoring scrolling if it was suppressed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.Cancel()
	s.machine = s.machine.Reset(s.machine.Date())
	s.endDrag()
}

func (s *Session) suppress() {
	if s.suppressed {
		return
	}
	s.scroll.Suppress()
	s.suppressed = true
}

func (s *Session) endDrag() {
	s.touchDrag = false
	if !s.suppressed {
		return
	}
	s.scroll.Restore()
	s.suppressed = false
}
