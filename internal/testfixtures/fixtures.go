package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/pc-reservation/internal/application"
	"github.com/example/pc-reservation/internal/persistence"
	"github.com/example/pc-reservation/internal/scheduler"
)

var (
	computerCounter    uint64
	reservationCounter uint64
)

var referenceTime = time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// --------------------------- Computer fixtures ---------------------------

// ComputerFixture represents a deterministic lab computer record.
type ComputerFixture struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ComputerOption configures the generated computer fixture.
type ComputerOption func(*ComputerFixture)

// NewComputerFixture returns a deterministic computer fixture with optional overrides.
func NewComputerFixture(opts ...ComputerOption) ComputerFixture {
	idx := atomic.AddUint64(&computerCounter, 1)
	fixture := ComputerFixture{
		ID:        fmt.Sprintf("pc-%03d", idx),
		Name:      fmt.Sprintf("%d号機", idx),
		CreatedAt: referenceTime.Add(-time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithComputerID overrides the generated computer ID.
func WithComputerID(id string) ComputerOption {
	return func(f *ComputerFixture) {
		f.ID = id
	}
}

// WithComputerName overrides the generated name.
func WithComputerName(name string) ComputerOption {
	return func(f *ComputerFixture) {
		f.Name = name
	}
}

func WithComputerCreatedAt(t time.Time) ComputerOption {
	return func(f *ComputerFixture) {
		f.CreatedAt = t
	}
}

// Application returns the fixture as an application.Computer value.
func (f ComputerFixture) Application() application.Computer {
	return application.Computer{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt}
}

// Persistence returns the fixture as a persistence.Computer value.
func (f ComputerFixture) Persistence() persistence.Computer {
	return persistence.Computer{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt}
}

// ------------------------- Reservation fixtures --------------------------

// ReservationFixture represents a deterministic booking. By default it covers one
// hour starting at the reference time plus one hour per generated fixture.
type ReservationFixture struct {
	ID           string
	ComputerID   string
	ComputerName string
	UserName     string
	Start        time.Time
	End          time.Time
	Notes        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a deterministic reservation fixture with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := ReservationFixture{
		ID:           fmt.Sprintf("res-%03d", idx),
		ComputerID:   "pc-001",
		ComputerName: "1号機",
		UserName:     fmt.Sprintf("利用者%03d", idx),
		Start:        start,
		End:          start.Add(time.Hour),
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationComputer points the reservation at a computer fixture.
func WithReservationComputer(computer ComputerFixture) ReservationOption {
	return func(f *ReservationFixture) {
		f.ComputerID = computer.ID
		f.ComputerName = computer.Name
	}
}

// WithReservationComputerID points the reservation at a computer by ID and
// clears the denormalized name, which stores fill on read.
func WithReservationComputerID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ComputerID = id
		f.ComputerName = ""
	}
}

// WithReservationUserName overrides the generated user name.
func WithReservationUserName(name string) ReservationOption {
	return func(f *ReservationFixture) {
		f.UserName = name
	}
}

// WithReservationWindow sets the half-open window [start, end).
func WithReservationWindow(start, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.Start = start
		f.End = end
	}
}

// WithReservationNotes sets the notes on the fixture.
func WithReservationNotes(notes string) ReservationOption {
	return func(f *ReservationFixture) {
		value := notes
		f.Notes = &value
	}
}

// WithReservationTimestamps sets both created and updated timestamps.
func WithReservationTimestamps(created, updated time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Reservation value.
func (f ReservationFixture) Application() application.Reservation {
	return application.Reservation{
		ID:           f.ID,
		ComputerID:   f.ComputerID,
		ComputerName: f.ComputerName,
		UserName:     f.UserName,
		Start:        f.Start,
		End:          f.End,
		Notes:        copyStringPtr(f.Notes),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Reservation value.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		ID:           f.ID,
		ComputerID:   f.ComputerID,
		ComputerName: f.ComputerName,
		UserName:     f.UserName,
		Start:        f.Start,
		End:          f.End,
		Notes:        copyStringPtr(f.Notes),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// CreateParams returns the fixture as create input.
func (f ReservationFixture) CreateParams() application.CreateReservationParams {
	return application.CreateReservationParams{
		ComputerID: f.ComputerID,
		UserName:   f.UserName,
		Start:      f.Start,
		End:        f.End,
		Notes:      copyStringPtr(f.Notes),
	}
}

// Booking returns the fixture as a scheduler.Booking value.
func (f ReservationFixture) Booking() scheduler.Booking {
	return scheduler.Booking{
		ID:         f.ID,
		ComputerID: f.ComputerID,
		Start:      f.Start,
		End:        f.End,
	}
}

// helper to deep copy optional strings.
func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
