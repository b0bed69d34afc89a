package gormstore

import (
	"time"

	"github.com/example/pc-reservation/internal/persistence"
)

// computerRecord maps the computers table.
type computerRecord struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_computers_name"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
}

func (computerRecord) TableName() string { return "computers" }

// reservationRecord maps the reservations table. Timestamps are written in UTC
// and never filled in by gorm.
type reservationRecord struct {
	ID         string    `gorm:"type:varchar(64);primaryKey"`
	ComputerID string    `gorm:"type:varchar(64);not null;index:idx_reservations_computer_start,priority:1"`
	UserName   string    `gorm:"type:varchar(255);not null;check:chk_reservations_user_name,trim(user_name) <> ''"`
	StartTime  time.Time `gorm:"not null;index:idx_reservations_computer_start,priority:2;check:chk_reservations_window,start_time < end_time"`
	EndTime    time.Time `gorm:"not null;index:idx_reservations_end_time"`
	Notes      *string   `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime:false"`

	Computer computerRecord `gorm:"foreignKey:ComputerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (reservationRecord) TableName() string { return "reservations" }

func newComputerRecord(computer persistence.Computer) computerRecord {
	return computerRecord{
		ID:        computer.ID,
		Name:      computer.Name,
		CreatedAt: computer.CreatedAt.UTC(),
	}
}

func (r computerRecord) toPersistence() persistence.Computer {
	return persistence.Computer{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func newReservationRecord(reservation persistence.Reservation) reservationRecord {
	return reservationRecord{
		ID:         reservation.ID,
		ComputerID: reservation.ComputerID,
		UserName:   reservation.UserName,
		StartTime:  reservation.Start.UTC(),
		EndTime:    reservation.End.UTC(),
		Notes:      copyString(reservation.Notes),
		CreatedAt:  reservation.CreatedAt.UTC(),
		UpdatedAt:  reservation.UpdatedAt.UTC(),
	}
}

func (r reservationRecord) toPersistence() persistence.Reservation {
	return persistence.Reservation{
		ID:           r.ID,
		ComputerID:   r.ComputerID,
		ComputerName: r.Computer.Name,
		UserName:     r.UserName,
		Start:        r.StartTime.UTC(),
		End:          r.EndTime.UTC(),
		Notes:        copyString(r.Notes),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func copyString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
