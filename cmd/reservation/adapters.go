package main

import (
	"context"
	"time"

	"github.com/example/pc-reservation/internal/application"
	"github.com/example/pc-reservation/internal/persistence"
)

type computerRepositoryAdapter struct {
	repo persistence.ComputerRepository
}

func newComputerRepositoryAdapter(repo persistence.ComputerRepository) *computerRepositoryAdapter {
	return &computerRepositoryAdapter{repo: repo}
}

func (a *computerRepositoryAdapter) CreateComputer(ctx context.Context, computer application.Computer) error {
	return a.repo.CreateComputer(ctx, toPersistenceComputer(computer))
}

func (a *computerRepositoryAdapter) GetComputer(ctx context.Context, id string) (application.Computer, error) {
	stored, err := a.repo.GetComputer(ctx, id)
	if err != nil {
		return application.Computer{}, err
	}
	return toApplicationComputer(stored), nil
}

func (a *computerRepositoryAdapter) ListComputers(ctx context.Context) ([]application.Computer, error) {
	models, err := a.repo.ListComputers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	computers := make([]application.Computer, 0, len(models))
	for _, model := range models {
		computers = append(computers, toApplicationComputer(model))
	}
	return computers, nil
}

func (a *computerRepositoryAdapter) DeleteComputer(ctx context.Context, id string) error {
	return a.repo.DeleteComputer(ctx, id)
}

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationRepositoryAdapter(repo persistence.ReservationRepository) *reservationRepositoryAdapter {
	return &reservationRepositoryAdapter{repo: repo}
}

func (a *reservationRepositoryAdapter) CreateReservation(ctx context.Context, reservation application.Reservation, guard application.OverlapGuard) error {
	return a.repo.CreateReservation(ctx, toPersistenceReservation(reservation), toPersistenceGuard(guard))
}

func (a *reservationRepositoryAdapter) UpdateReservation(ctx context.Context, reservation application.Reservation, guard application.OverlapGuard) error {
	return a.repo.UpdateReservation(ctx, toPersistenceReservation(reservation), toPersistenceGuard(guard))
}

func (a *reservationRepositoryAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context, query application.ReservationQuery) ([]application.Reservation, error) {
	models, err := a.repo.ListReservations(ctx, persistence.ReservationFilter{
		ComputerID:   query.ComputerID,
		StartsFrom:   query.StartsFrom,
		StartsBefore: query.StartsBefore,
		Limit:        query.Limit,
		Descending:   query.Descending,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(models), nil
}

func (a *reservationRepositoryAdapter) DeleteReservation(ctx context.Context, id string) error {
	return a.repo.DeleteReservation(ctx, id)
}

func (a *reservationRepositoryAdapter) DeleteReservationsEndingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return a.repo.DeleteReservationsEndingBefore(ctx, cutoff)
}

// toPersistenceGuard lets the store evaluate the service's overlap rule on its own rows.
func toPersistenceGuard(guard application.OverlapGuard) persistence.OverlapGuard {
	if guard == nil {
		return nil
	}
	return func(existing []persistence.Reservation) error {
		return guard(toApplicationReservations(existing))
	}
}

func toApplicationReservations(models []persistence.Reservation) []application.Reservation {
	if len(models) == 0 {
		return nil
	}
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toApplicationReservation(model))
	}
	return reservations
}

func toApplicationComputer(computer persistence.Computer) application.Computer {
	return application.Computer{
		ID:        computer.ID,
		Name:      computer.Name,
		CreatedAt: computer.CreatedAt,
	}
}

func toPersistenceComputer(computer application.Computer) persistence.Computer {
	return persistence.Computer{
		ID:        computer.ID,
		Name:      computer.Name,
		CreatedAt: computer.CreatedAt,
	}
}

func toApplicationReservation(reservation persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:           reservation.ID,
		ComputerID:   reservation.ComputerID,
		ComputerName: reservation.ComputerName,
		UserName:     reservation.UserName,
		Start:        reservation.Start,
		End:          reservation.End,
		Notes:        copyString(reservation.Notes),
		CreatedAt:    reservation.CreatedAt,
		UpdatedAt:    reservation.UpdatedAt,
	}
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:           reservation.ID,
		ComputerID:   reservation.ComputerID,
		ComputerName: reservation.ComputerName,
		UserName:     reservation.UserName,
		Start:        reservation.Start,
		End:          reservation.End,
		Notes:        copyString(reservation.Notes),
		CreatedAt:    reservation.CreatedAt,
		UpdatedAt:    reservation.UpdatedAt,
	}
}

func copyString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
