package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/pc-reservation/internal/persistence"
)

const reservationColumns = `
	r.id, r.computer_id, c.name, r.user_name, r.start_time, r.end_time, r.notes, r.created_at, r.updated_at
`

// ReservationRepository implements persistence.ReservationRepository using SQLite
type ReservationRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository
func NewReservationRepository(pool *ConnectionPool, retry *RetryHelper) *ReservationRepository {
	if retry == nil {
		retry = NewRetryHelper(DefaultRetryConfig())
	}
	return &ReservationRepository{pool: pool, retry: retry, mapper: NewErrorMapper()}
}

// CreateReservation evaluates guard against the overlapping rows and inserts the
// reservation inside one immediate transaction.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.OverlapGuard) error {
	if reservation.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := r.ensureComputer(ctx, tx, reservation.ComputerID); err != nil {
				return err
			}
			if err := r.runGuard(ctx, tx, reservation, guard); err != nil {
				return err
			}

			const query = `
				INSERT INTO reservations (id, computer_id, user_name, start_time, end_time, notes, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`
			if _, err := tx.ExecContext(ctx, query,
				reservation.ID,
				reservation.ComputerID,
				reservation.UserName,
				formatTimestamp(reservation.Start),
				formatTimestamp(reservation.End),
				nullableString(reservation.Notes),
				formatTimestamp(reservation.CreatedAt),
				formatTimestamp(reservation.UpdatedAt),
			); err != nil {
				return r.mapper.MapError(err)
			}
			return nil
		})
	})
}

// UpdateReservation evaluates guard and rewrites the reservation in one transaction.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.OverlapGuard) error {
	if reservation.ID == "" {
		return persistence.ErrNotFound
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := r.ensureComputer(ctx, tx, reservation.ComputerID); err != nil {
				return err
			}
			if err := r.runGuard(ctx, tx, reservation, guard); err != nil {
				return err
			}

			const query = `
				UPDATE reservations
				SET computer_id = ?, user_name = ?, start_time = ?, end_time = ?, notes = ?, updated_at = ?
				WHERE id = ?
			`
			result, err := tx.ExecContext(ctx, query,
				reservation.ComputerID,
				reservation.UserName,
				formatTimestamp(reservation.Start),
				formatTimestamp(reservation.End),
				nullableString(reservation.Notes),
				formatTimestamp(reservation.UpdatedAt),
				reservation.ID,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				return persistence.ErrNotFound
			}
			return nil
		})
	})
}

// GetReservation retrieves a reservation joined with its computer name.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	query := `SELECT ` + reservationColumns + `
		FROM reservations r JOIN computers c ON c.id = r.computer_id
		WHERE r.id = ?`
	reservation, err := scanReservation(r.pool.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return reservation, nil
}

// ListReservations returns reservations matching filter ordered by start then ID.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ComputerID != "" {
		conditions = append(conditions, "r.computer_id = ?")
		args = append(args, filter.ComputerID)
	}
	if filter.StartsFrom != nil {
		conditions = append(conditions, "r.start_time >= ?")
		args = append(args, formatTimestamp(*filter.StartsFrom))
	}
	if filter.StartsBefore != nil {
		conditions = append(conditions, "r.start_time < ?")
		args = append(args, formatTimestamp(*filter.StartsBefore))
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + reservationColumns + ` FROM reservations r JOIN computers c ON c.id = r.computer_id`)
	if len(conditions) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}
	if filter.Descending {
		query.WriteString(" ORDER BY r.start_time DESC, r.id DESC")
	} else {
		query.WriteString(" ORDER BY r.start_time ASC, r.id ASC")
	}
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.DB().QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.collect(rows)
}

// FindOverlapping returns reservations of computerID intersecting [start, end).
func (r *ReservationRepository) FindOverlapping(ctx context.Context, computerID string, start, end time.Time) ([]persistence.Reservation, error) {
	rows, err := r.pool.DB().QueryContext(ctx, overlapQuery, computerID, formatTimestamp(end), formatTimestamp(start))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return r.collect(rows)
}

// DeleteReservation removes a reservation by ID.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	var affected int64
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteReservationsEndingBefore removes every reservation with end_time < cutoff.
func (r *ReservationRepository) DeleteReservationsEndingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var affected int64
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM reservations WHERE end_time < ?`, formatTimestamp(cutoff))
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

const overlapQuery = `SELECT ` + reservationColumns + `
	FROM reservations r JOIN computers c ON c.id = r.computer_id
	WHERE r.computer_id = ? AND r.start_time < ? AND r.end_time > ?
	ORDER BY r.start_time ASC, r.id ASC`

func (r *ReservationRepository) ensureComputer(ctx context.Context, tx *sql.Tx, computerID string) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM computers WHERE id = ?`, computerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrForeignKeyViolation
	}
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func (r *ReservationRepository) runGuard(ctx context.Context, tx *sql.Tx, reservation persistence.Reservation, guard persistence.OverlapGuard) error {
	if guard == nil {
		return nil
	}
	rows, err := tx.QueryContext(ctx, overlapQuery,
		reservation.ComputerID,
		formatTimestamp(reservation.End),
		formatTimestamp(reservation.Start),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	existing, err := r.collect(rows)
	if err != nil {
		return err
	}
	return guard(existing)
}

func (r *ReservationRepository) collect(rows *sql.Rows) ([]persistence.Reservation, error) {
	defer rows.Close()

	reservations := make([]persistence.Reservation, 0)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		reservation                persistence.Reservation
		startStr, endStr           string
		createdAtStr, updatedAtStr string
		notes                      sql.NullString
	)
	if err := row.Scan(
		&reservation.ID,
		&reservation.ComputerID,
		&reservation.ComputerName,
		&reservation.UserName,
		&startStr,
		&endStr,
		&notes,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.Reservation{}, err
	}

	var err error
	if reservation.Start, err = parseTimestamp(startStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.End, err = parseTimestamp(endStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return persistence.Reservation{}, err
	}
	reservation.Notes = stringPointer(notes)
	return reservation, nil
}
