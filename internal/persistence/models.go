package persistence

import "time"

// Computer is a bookable lab machine.
type Computer struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Reservation is a half-open booking [Start, End) of one computer.
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
