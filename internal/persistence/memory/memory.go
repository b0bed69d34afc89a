// Package memory provides a map backed persistence layer for tests and ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/pc-reservation/internal/persistence"
)

// Storage keeps computers and reservations in process memory. A single write lock
// covers the guard and the write, which gives Create and Update the same atomicity
// the SQL stores get from a transaction.
type Storage struct {
	mu           sync.RWMutex
	computers    map[string]persistence.Computer
	reservations map[string]persistence.Reservation
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{
		computers:    make(map[string]persistence.Computer),
		reservations: make(map[string]persistence.Reservation),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// --- ComputerRepository implementation ---

// CreateComputer stores a new computer.
func (s *Storage) CreateComputer(ctx context.Context, computer persistence.Computer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.computers[computer.ID]; ok {
		return fmt.Errorf("memory: computer %s: %w", computer.ID, persistence.ErrDuplicate)
	}
	for _, existing := range s.computers {
		if existing.Name == computer.Name {
			return fmt.Errorf("memory: computer name %q: %w", computer.Name, persistence.ErrDuplicate)
		}
	}

	s.computers[computer.ID] = computer
	return nil
}

// GetComputer retrieves a computer by ID.
func (s *Storage) GetComputer(ctx context.Context, id string) (persistence.Computer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	computer, ok := s.computers[id]
	if !ok {
		return persistence.Computer{}, persistence.ErrNotFound
	}
	return computer, nil
}

// ListComputers returns all computers ordered by name, ignoring case, then ID.
func (s *Storage) ListComputers(ctx context.Context) ([]persistence.Computer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	computers := make([]persistence.Computer, 0, len(s.computers))
	for _, computer := range s.computers {
		computers = append(computers, computer)
	}
	sort.Slice(computers, func(i, j int) bool {
		left, right := strings.ToLower(computers[i].Name), strings.ToLower(computers[j].Name)
		if left == right {
			return computers[i].ID < computers[j].ID
		}
		return left < right
	})
	return computers, nil
}

// DeleteComputer removes a computer and its reservations.
func (s *Storage) DeleteComputer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.computers[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.computers, id)
	for reservationID, reservation := range s.reservations {
		if reservation.ComputerID == id {
			delete(s.reservations, reservationID)
		}
	}
	return nil
}

// --- ReservationRepository implementation ---

// CreateReservation runs guard against the overlapping reservations and stores the
// new reservation when the guard passes.
func (s *Storage) CreateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.OverlapGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[reservation.ID]; ok {
		return fmt.Errorf("memory: reservation %s: %w", reservation.ID, persistence.ErrDuplicate)
	}
	if err := s.validateLocked(reservation); err != nil {
		return err
	}
	if err := s.runGuardLocked(reservation, guard); err != nil {
		return err
	}

	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// UpdateReservation runs guard and replaces the stored reservation.
func (s *Storage) UpdateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.OverlapGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reservations[reservation.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.validateLocked(reservation); err != nil {
		return err
	}
	if err := s.runGuardLocked(reservation, guard); err != nil {
		return err
	}

	reservation.CreatedAt = existing.CreatedAt
	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// GetReservation retrieves a reservation joined with its computer name.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return s.joinLocked(reservation), nil
}

// ListReservations returns reservations matching filter ordered by start.
func (s *Storage) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]persistence.Reservation, 0)
	for _, reservation := range s.reservations {
		if filter.ComputerID != "" && reservation.ComputerID != filter.ComputerID {
			continue
		}
		if filter.StartsFrom != nil && reservation.Start.Before(*filter.StartsFrom) {
			continue
		}
		if filter.StartsBefore != nil && !reservation.Start.Before(*filter.StartsBefore) {
			continue
		}
		result = append(result, s.joinLocked(reservation))
	}

	sortReservations(result, filter.Descending)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// FindOverlapping returns reservations of computerID intersecting [start, end).
func (s *Storage) FindOverlapping(ctx context.Context, computerID string, start, end time.Time) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.overlappingLocked(computerID, start, end), nil
}

// DeleteReservation removes a reservation by ID.
func (s *Storage) DeleteReservation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.reservations, id)
	return nil
}

// DeleteReservationsEndingBefore removes every reservation with End < cutoff.
func (s *Storage) DeleteReservationsEndingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, reservation := range s.reservations {
		if reservation.End.Before(cutoff) {
			delete(s.reservations, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Storage) validateLocked(reservation persistence.Reservation) error {
	if _, ok := s.computers[reservation.ComputerID]; !ok {
		return fmt.Errorf("memory: computer %s: %w", reservation.ComputerID, persistence.ErrForeignKeyViolation)
	}
	if strings.TrimSpace(reservation.UserName) == "" || !reservation.Start.Before(reservation.End) {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func (s *Storage) runGuardLocked(reservation persistence.Reservation, guard persistence.OverlapGuard) error {
	if guard == nil {
		return nil
	}
	return guard(s.overlappingLocked(reservation.ComputerID, reservation.Start, reservation.End))
}

func (s *Storage) overlappingLocked(computerID string, start, end time.Time) []persistence.Reservation {
	result := make([]persistence.Reservation, 0)
	for _, reservation := range s.reservations {
		if reservation.ComputerID != computerID {
			continue
		}
		if reservation.Start.Before(end) && start.Before(reservation.End) {
			result = append(result, s.joinLocked(reservation))
		}
	}
	sortReservations(result, false)
	return result
}

func (s *Storage) joinLocked(reservation persistence.Reservation) persistence.Reservation {
	joined := cloneReservation(reservation)
	if computer, ok := s.computers[reservation.ComputerID]; ok {
		joined.ComputerName = computer.Name
	}
	return joined
}

func sortReservations(reservations []persistence.Reservation, descending bool) {
	sort.Slice(reservations, func(i, j int) bool {
		a, b := reservations[i], reservations[j]
		if descending {
			a, b = b, a
		}
		if a.Start.Equal(b.Start) {
			return a.ID < b.ID
		}
		return a.Start.Before(b.Start)
	})
}

func cloneReservation(reservation persistence.Reservation) persistence.Reservation {
	clone := reservation
	if reservation.Notes != nil {
		notes := *reservation.Notes
		clone.Notes = &notes
	}
	return clone
}
