// Package gormstore implements the reservation store on gorm. Postgres is the
// production dialect; any gorm dialector works, which the tests use to run the
// same code against SQLite.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/pc-reservation/internal/persistence"
)

// Config tunes the underlying connection pool. Zero values keep the driver defaults.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
}

// Store implements persistence.Store on a gorm connection.
type Store struct {
	db *gorm.DB
}

var _ persistence.Store = (*Store)(nil)

// OpenPostgres connects to PostgreSQL with dsn and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, config Config, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("gormstore: postgres DSN is required")
	}
	return Open(ctx, postgres.Open(dsn), config, logger)
}

// Open connects through dialector and migrates the schema.
func Open(ctx context.Context, dialector gorm.Dialector, config Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	slow := config.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.NewSlogLogger(logger.With("component", "gorm"), gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB(): %w", err)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	store := &Store{db: db}
	if err := store.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates or updates the computers and reservations tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&computerRecord{}, &reservationRecord{}); err != nil {
		return fmt.Errorf("gormstore: migrate: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- ComputerRepository implementation ---

// CreateComputer inserts a new computer.
func (s *Store) CreateComputer(ctx context.Context, computer persistence.Computer) error {
	if computer.ID == "" {
		return persistence.ErrConstraintViolation
	}
	record := newComputerRecord(computer)
	return mapError(s.db.WithContext(ctx).Create(&record).Error)
}

// GetComputer retrieves a computer by ID.
func (s *Store) GetComputer(ctx context.Context, id string) (persistence.Computer, error) {
	if id == "" {
		return persistence.Computer{}, persistence.ErrNotFound
	}
	var record computerRecord
	if err := s.db.WithContext(ctx).Take(&record, "id = ?", id).Error; err != nil {
		return persistence.Computer{}, mapError(err)
	}
	return record.toPersistence(), nil
}

// ListComputers returns all computers ordered by name, ignoring case, then ID.
func (s *Store) ListComputers(ctx context.Context) ([]persistence.Computer, error) {
	var records []computerRecord
	if err := s.db.WithContext(ctx).Order("lower(name) ASC, id ASC").Find(&records).Error; err != nil {
		return nil, mapError(err)
	}
	computers := make([]persistence.Computer, 0, len(records))
	for _, record := range records {
		computers = append(computers, record.toPersistence())
	}
	return computers, nil
}

// DeleteComputer removes a computer and its reservations in one transaction.
func (s *Store) DeleteComputer(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("computer_id = ?", id).Delete(&reservationRecord{}).Error; err != nil {
			return mapError(err)
		}
		result := tx.Where("id = ?", id).Delete(&computerRecord{})
		if result.Error != nil {
			return mapError(result.Error)
		}
		if result.RowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// --- ReservationRepository implementation ---

// CreateReservation locks the computer row, evaluates guard against the
// overlapping reservations and inserts the reservation in one transaction.
func (s *Store) CreateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.OverlapGuard) error {
	if reservation.ID == "" {
		return persistence.ErrConstraintViolation
	}
	record := newReservationRecord(reservation)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockComputer(tx, record.ComputerID); err != nil {
			return err
		}
		if err := runGuard(tx, record, guard); err != nil {
			return err
		}
		return mapError(tx.Omit(clause.Associations).Create(&record).Error)
	})
}

// UpdateReservation locks the computer row, evaluates guard and rewrites the
// reservation in one transaction.
func (s *Store) UpdateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.OverlapGuard) error {
	if reservation.ID == "" {
		return persistence.ErrNotFound
	}
	record := newReservationRecord(reservation)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockComputer(tx, record.ComputerID); err != nil {
			return err
		}
		if err := runGuard(tx, record, guard); err != nil {
			return err
		}

		result := tx.Model(&reservationRecord{}).
			Where("id = ?", record.ID).
			Updates(map[string]any{
				"computer_id": record.ComputerID,
				"user_name":   record.UserName,
				"start_time":  record.StartTime,
				"end_time":    record.EndTime,
				"notes":       record.Notes,
				"updated_at":  record.UpdatedAt,
			})
		if result.Error != nil {
			return mapError(result.Error)
		}
		if result.RowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// GetReservation retrieves a reservation joined with its computer name.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	var record reservationRecord
	if err := s.db.WithContext(ctx).Preload("Computer").Take(&record, "id = ?", id).Error; err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return record.toPersistence(), nil
}

// ListReservations returns reservations matching filter ordered by start then ID.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query := s.db.WithContext(ctx).Model(&reservationRecord{}).Preload("Computer")
	if filter.ComputerID != "" {
		query = query.Where("computer_id = ?", filter.ComputerID)
	}
	if filter.StartsFrom != nil {
		query = query.Where("start_time >= ?", filter.StartsFrom.UTC())
	}
	if filter.StartsBefore != nil {
		query = query.Where("start_time < ?", filter.StartsBefore.UTC())
	}
	if filter.Descending {
		query = query.Order("start_time DESC, id DESC")
	} else {
		query = query.Order("start_time ASC, id ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []reservationRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, mapError(err)
	}
	return toReservations(records), nil
}

// FindOverlapping returns reservations of computerID intersecting [start, end).
func (s *Store) FindOverlapping(ctx context.Context, computerID string, start, end time.Time) ([]persistence.Reservation, error) {
	records, err := overlapping(s.db.WithContext(ctx), computerID, start, end)
	if err != nil {
		return nil, err
	}
	return toReservations(records), nil
}

// DeleteReservation removes a reservation by ID.
func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&reservationRecord{})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteReservationsEndingBefore removes every reservation with end_time < cutoff.
func (s *Store) DeleteReservationsEndingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result := s.db.WithContext(ctx).Where("end_time < ?", cutoff.UTC()).Delete(&reservationRecord{})
	if result.Error != nil {
		return 0, mapError(result.Error)
	}
	return int(result.RowsAffected), nil
}

// lockComputer takes a row lock on the computer so bookings of the same computer
// queue behind each other. Dialects without row locks drop the clause.
func lockComputer(tx *gorm.DB, computerID string) error {
	var computer computerRecord
	err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Take(&computer, "id = ?", computerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return persistence.ErrForeignKeyViolation
	}
	return mapError(err)
}

func runGuard(tx *gorm.DB, record reservationRecord, guard persistence.OverlapGuard) error {
	if guard == nil {
		return nil
	}
	records, err := overlapping(tx, record.ComputerID, record.StartTime, record.EndTime)
	if err != nil {
		return err
	}
	return guard(toReservations(records))
}

func overlapping(db *gorm.DB, computerID string, start, end time.Time) ([]reservationRecord, error) {
	var records []reservationRecord
	err := db.Preload("Computer").
		Where("computer_id = ? AND start_time < ? AND end_time > ?", computerID, end.UTC(), start.UTC()).
		Order("start_time ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, mapError(err)
	}
	return records, nil
}

func toReservations(records []reservationRecord) []persistence.Reservation {
	reservations := make([]persistence.Reservation, 0, len(records))
	for _, record := range records {
		reservations = append(reservations, record.toPersistence())
	}
	return reservations
}

// mapError converts gorm and driver errors to persistence sentinels. Errors the
// dialect does not translate are matched on their message, which covers both
// PostgreSQL and SQLite wording.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return persistence.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "duplicate key", "UNIQUE constraint failed", "SQLSTATE 23505"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case containsAny(msg, "violates foreign key", "FOREIGN KEY constraint failed", "SQLSTATE 23503"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case containsAny(msg, "violates check constraint", "violates not-null", "CHECK constraint failed", "NOT NULL constraint failed", "SQLSTATE 23514", "SQLSTATE 23502"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
