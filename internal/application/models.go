package application

import "time"

// Computer represents a bookable lab machine.
type Computer struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Reservation is a booking of one computer over the half-open window [Start, End).
type Reservation struct {
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

// CreateReservationParams wraps the data required to book a computer.
type CreateReservationParams struct {
	ComputerID string
	UserName   string
	Start      time.Time
	End        time.Time
	Notes      *string
}

// UpdateReservationParams wraps a partial update. Nil Start, End or Notes keep the
// stored value; a non-nil empty Notes clears it.
type UpdateReservationParams struct {
	ReservationID string
	UserName      string
	Start         *time.Time
	End           *time.Time
	Notes         *string
}

// ListForDayParams selects the reservations starting on one local calendar day.
type ListForDayParams struct {
	ComputerID string
	Date       time.Time
}

// ReservationListing is the newest-first overview of every stored reservation.
type ReservationListing struct {
	Reservations []Reservation
	ByDate       map[string][]Reservation
	TotalCount   int
}

// CreateComputerParams wraps the data required to register a computer.
type CreateComputerParams struct {
	Name string
}

// ReservationQuery narrows repository listings. Nil bounds are open.
type ReservationQuery struct {
	ComputerID   string
	StartsFrom   *time.Time
	StartsBefore *time.Time
	Limit        int
	Descending   bool
}
