package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/pc-reservation/internal/persistence"
)

// ComputerRepository implements persistence.ComputerRepository using SQLite
type ComputerRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewComputerRepository creates a new SQLite computer repository
func NewComputerRepository(pool *ConnectionPool) *ComputerRepository {
	return &ComputerRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateComputer inserts a new computer.
func (r *ComputerRepository) CreateComputer(ctx context.Context, computer persistence.Computer) error {
	if computer.ID == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `INSERT INTO computers (id, name, created_at) VALUES (?, ?, ?)`
	if _, err := r.pool.DB().ExecContext(ctx, query,
		computer.ID,
		computer.Name,
		formatTimestamp(computer.CreatedAt),
	); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetComputer retrieves a computer by ID.
func (r *ComputerRepository) GetComputer(ctx context.Context, id string) (persistence.Computer, error) {
	if id == "" {
		return persistence.Computer{}, persistence.ErrNotFound
	}

	const query = `SELECT id, name, created_at FROM computers WHERE id = ?`
	computer, err := scanComputer(r.pool.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Computer{}, persistence.ErrNotFound
		}
		return persistence.Computer{}, r.mapper.MapError(err)
	}
	return computer, nil
}

// ListComputers returns all computers ordered by name, ignoring case, then ID.
func (r *ComputerRepository) ListComputers(ctx context.Context) ([]persistence.Computer, error) {
	const query = `SELECT id, name, created_at FROM computers ORDER BY lower(name) ASC, id ASC`

	rows, err := r.pool.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	computers := make([]persistence.Computer, 0)
	for rows.Next() {
		computer, err := scanComputer(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		computers = append(computers, computer)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return computers, nil
}

// DeleteComputer removes a computer; its reservations cascade.
func (r *ComputerRepository) DeleteComputer(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM computers WHERE id = ?`, id)
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
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComputer(row rowScanner) (persistence.Computer, error) {
	var (
		computer     persistence.Computer
		createdAtStr string
	)
	if err := row.Scan(&computer.ID, &computer.Name, &createdAtStr); err != nil {
		return persistence.Computer{}, err
	}
	createdAt, err := parseTimestamp(createdAtStr)
	if err != nil {
		return persistence.Computer{}, err
	}
	computer.CreatedAt = createdAt
	return computer, nil
}
