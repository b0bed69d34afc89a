package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/pc-reservation/internal/persistence"
	"github.com/example/pc-reservation/internal/scheduler"
	"github.com/example/pc-reservation/internal/timegrid"
)

// OverlapGuard inspects the reservations overlapping a candidate window. The
// repository evaluates it inside the same transaction as the write and aborts
// with the returned error.
type OverlapGuard func(existing []Reservation) error

// ReservationRepository captures the persistence operations needed by the service.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, guard OverlapGuard) error
	UpdateReservation(ctx context.Context, reservation Reservation, guard OverlapGuard) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, query ReservationQuery) ([]Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	DeleteReservationsEndingBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ComputerCatalog resolves the computer a reservation refers to.
type ComputerCatalog interface {
	GetComputer(ctx context.Context, id string) (Computer, error)
}

// ReservationService coordinates validation, overlap checks, and persistence for reservations.
type ReservationService struct {
	reservations ReservationRepository
	computers    ComputerCatalog
	grid         timegrid.Grid
	locks        *resourceLocks
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService constructs a reservation service with the provided dependencies.
func NewReservationService(reservations ReservationRepository, computers ComputerCatalog, grid timegrid.Grid, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(reservations, computers, grid, idGenerator, now, nil)
}

// NewReservationServiceWithLogger constructs a reservation service with a specified logger.
func NewReservationServiceWithLogger(reservations ReservationRepository, computers ComputerCatalog, grid timegrid.Grid, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservations: reservations,
		computers:    computers,
		grid:         grid,
		locks:        newResourceLocks(),
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation validates the request and books the computer when the window is free.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateReservation",
		"computer_id", params.ComputerID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	vErr := validateCreateReservation(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var computer Computer
	computer, err = s.lookupComputer(ctx, params.ComputerID)
	if err != nil {
		return
	}

	candidate := Reservation{
		ID:           s.idGenerator(),
		ComputerID:   computer.ID,
		ComputerName: computer.Name,
		UserName:     strings.TrimSpace(params.UserName),
		Start:        params.Start,
		End:          params.End,
		Notes:        normalizeOptionalString(params.Notes),
		CreatedAt:    s.now(),
	}
	candidate.UpdatedAt = candidate.CreatedAt
	if candidate.ID == "" {
		err = errEmptyID
		return
	}

	unlock := s.locks.lock(candidate.ComputerID)
	defer unlock()

	if err = s.reservations.CreateReservation(ctx, candidate, overlapGuard(candidate, "")); err != nil {
		err = mapReservationRepoError(err)
		return
	}

	reservation = candidate
	return
}

// UpdateReservation merges the supplied fields into the stored reservation and
// re-checks overlaps when the window moves.
func (s *ReservationService) UpdateReservation(ctx context.Context, params UpdateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateReservation",
		"reservation_id", params.ReservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	var existing Reservation
	existing, err = s.reservations.GetReservation(ctx, params.ReservationID)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	vErr := validateUpdateReservation(params, existing)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	unlock := s.locks.lock(existing.ComputerID)
	defer unlock()

	// Reread under the lock so the merge starts from the latest committed row.
	existing, err = s.reservations.GetReservation(ctx, params.ReservationID)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	updated := existing
	updated.UserName = strings.TrimSpace(params.UserName)
	if params.Start != nil {
		updated.Start = *params.Start
	}
	if params.End != nil {
		updated.End = *params.End
	}
	if !updated.Start.Before(updated.End) {
		err = invalidWindow()
		return
	}
	if params.Notes != nil {
		updated.Notes = normalizeOptionalString(params.Notes)
	}
	updated.UpdatedAt = s.now()

	var guard OverlapGuard
	if !updated.Start.Equal(existing.Start) || !updated.End.Equal(existing.End) {
		guard = overlapGuard(updated, updated.ID)
	}

	if err = s.reservations.UpdateReservation(ctx, updated, guard); err != nil {
		err = mapReservationRepoError(err)
		return
	}

	reservation = updated
	return
}

// DeleteReservation removes a reservation by ID.
func (s *ReservationService) DeleteReservation(ctx context.Context, reservationID string) error {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteReservation",
		"reservation_id", reservationID,
	)

	if err := s.reservations.DeleteReservation(ctx, reservationID); err != nil {
		err = mapReservationRepoError(err)
		logger.ErrorContext(ctx, "failed to delete reservation", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "reservation deleted")
	return nil
}

// ListReservationsForDay returns the reservations starting on the local calendar
// day of params.Date, optionally restricted to one computer.
func (s *ReservationService) ListReservationsForDay(ctx context.Context, params ListForDayParams) (reservations []Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListReservationsForDay",
		"computer_id", params.ComputerID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "reservations listed", "count", len(reservations))
	}()

	if params.Date.IsZero() {
		vErr := &ValidationError{}
		vErr.add("date", "date is required")
		err = vErr
		return
	}

	dayStart, nextDayStart := s.grid.DayBounds(params.Date)
	reservations, err = s.reservations.ListReservations(ctx, ReservationQuery{
		ComputerID:   params.ComputerID,
		StartsFrom:   &dayStart,
		StartsBefore: &nextDayStart,
	})
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	reservations = append([]Reservation(nil), reservations...)
	sort.SliceStable(reservations, func(i, j int) bool {
		if reservations[i].Start.Equal(reservations[j].Start) {
			return reservations[i].ID < reservations[j].ID
		}
		return reservations[i].Start.Before(reservations[j].Start)
	})
	return
}

// ListAllReservations purges stale rows and returns the rest newest first,
// grouped by local calendar date. A positive limit caps the result.
func (s *ReservationService) ListAllReservations(ctx context.Context, limit int) (listing ReservationListing, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	listing.ByDate = make(map[string][]Reservation)
	if s.reservations == nil {
		return
	}

	logger := s.loggerWith(ctx, "ListAllReservations",
		"limit", limit,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list all reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "all reservations listed", "count", listing.TotalCount)
	}()

	if limit < 0 {
		vErr := &ValidationError{}
		vErr.add("limit", "limit must not be negative")
		err = vErr
		return
	}

	if _, err = s.PurgeStale(ctx); err != nil {
		return
	}

	var reservations []Reservation
	reservations, err = s.reservations.ListReservations(ctx, ReservationQuery{
		Limit:      limit,
		Descending: true,
	})
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	sort.SliceStable(reservations, func(i, j int) bool {
		if reservations[i].Start.Equal(reservations[j].Start) {
			return reservations[i].ID > reservations[j].ID
		}
		return reservations[i].Start.After(reservations[j].Start)
	})

	for _, reservation := range reservations {
		key := s.grid.DateKey(reservation.Start)
		listing.ByDate[key] = append(listing.ByDate[key], reservation)
	}
	listing.Reservations = reservations
	listing.TotalCount = len(reservations)
	return
}

// PurgeBefore deletes every reservation that ended strictly before cutoff.
func (s *ReservationService) PurgeBefore(ctx context.Context, cutoff time.Time) (removed int, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		return 0, nil
	}

	logger := s.loggerWith(ctx, "PurgeBefore",
		"cutoff", cutoff,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to purge reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if removed > 0 {
			logger.InfoContext(ctx, "stale reservations purged", "removed", removed)
		}
	}()

	removed, err = s.reservations.DeleteReservationsEndingBefore(ctx, cutoff)
	if err != nil {
		err = mapReservationRepoError(err)
		return 0, err
	}
	return removed, nil
}

// PurgeStale deletes every reservation that ended before the start of the current local day.
func (s *ReservationService) PurgeStale(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("ReservationService is nil")
	}
	return s.PurgeBefore(ctx, s.grid.StartOfDay(s.now()))
}

func (s *ReservationService) lookupComputer(ctx context.Context, computerID string) (Computer, error) {
	if s.computers == nil {
		return Computer{ID: computerID}, nil
	}
	computer, err := s.computers.GetComputer(ctx, computerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			return Computer{}, unknownComputer()
		}
		return Computer{}, storageError(err)
	}
	return computer, nil
}

// overlapGuard rejects the candidate when any reservation of the same computer,
// other than excludeID, intersects its window.
func overlapGuard(candidate Reservation, excludeID string) OverlapGuard {
	window := scheduler.Interval{Start: candidate.Start, End: candidate.End}
	return func(existing []Reservation) error {
		bookings := make([]scheduler.Booking, 0, len(existing))
		for _, r := range existing {
			bookings = append(bookings, scheduler.Booking{
				ID:         r.ID,
				ComputerID: r.ComputerID,
				Start:      r.Start,
				End:        r.End,
			})
		}
		conflict, found := scheduler.FindConflict(candidate.ComputerID, window, bookings, excludeID)
		if !found {
			return nil
		}
		return &ConflictError{
			ReservationID: conflict.ID,
			ComputerID:    conflict.ComputerID,
			Start:         conflict.Start,
			End:           conflict.End,
		}
	}
}

func validateCreateReservation(params CreateReservationParams) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(params.ComputerID) == "" {
		vErr.add("computer_id", "computer_id is required")
	}
	if strings.TrimSpace(params.UserName) == "" {
		vErr.add("user_name", "user_name is required")
	}
	if params.Start.IsZero() {
		vErr.add("start_time", "start_time is required")
	}
	if params.End.IsZero() {
		vErr.add("end_time", "end_time is required")
	}
	if !params.Start.IsZero() && !params.End.IsZero() && !params.Start.Before(params.End) {
		vErr.merge(invalidWindow())
	}
	return vErr
}

func validateUpdateReservation(params UpdateReservationParams, existing Reservation) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(params.UserName) == "" {
		vErr.add("user_name", "user_name is required")
	}

	start, end := existing.Start, existing.End
	if params.Start != nil {
		start = *params.Start
	}
	if params.End != nil {
		end = *params.End
	}
	if !start.Before(end) {
		vErr.merge(invalidWindow())
	}
	return vErr
}

func invalidWindow() *ValidationError {
	vErr := &ValidationError{}
	vErr.add("time", "start_time must be before end_time")
	return vErr
}

func unknownComputer() *ValidationError {
	vErr := &ValidationError{}
	vErr.add("computer_id", "computer does not exist")
	return vErr
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapReservationRepoError(err error) error {
	if err == nil {
		return nil
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return unknownComputer()
	case errors.Is(err, persistence.ErrConstraintViolation):
		return invalidWindow()
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return storageError(err)
	}
}
