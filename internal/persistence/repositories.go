package persistence

import (
	"context"
	"time"
)

// ComputerRepository exposes CRUD operations for computers. ListComputers
// orders by name, ignoring case, then ID.
type ComputerRepository interface {
	CreateComputer(ctx context.Context, computer Computer) error
	GetComputer(ctx context.Context, id string) (Computer, error)
	ListComputers(ctx context.Context) ([]Computer, error)
	DeleteComputer(ctx context.Context, id string) error
}

// ReservationFilter narrows reservation listings. Zero values disable a bound.
type ReservationFilter struct {
	ComputerID   string
	StartsFrom   *time.Time
	StartsBefore *time.Time
	Limit        int
	Descending   bool
}

// OverlapGuard inspects the reservations of the target computer that overlap the
// row about to be written and returns an error to abort the write.
type OverlapGuard func(existing []Reservation) error

// ReservationRepository stores reservations. Create and Update evaluate the guard
// and write in one transaction so no other booking of the same computer can land
// between the check and the write.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, guard OverlapGuard) error
	UpdateReservation(ctx context.Context, reservation Reservation, guard OverlapGuard) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	FindOverlapping(ctx context.Context, computerID string, start, end time.Time) ([]Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	DeleteReservationsEndingBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Store bundles the repositories a backend provides.
type Store interface {
	ComputerRepository
	ReservationRepository
	Close() error
}
