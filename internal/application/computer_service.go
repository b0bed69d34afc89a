package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/pc-reservation/internal/persistence"
)

// DefaultComputerNames are the lab machines registered on first start.
var DefaultComputerNames = []string{
	"1号機（白）富士通",
	"2号機（黒）ダイナブック",
}

// ComputerRepository captures the persistence operations needed by the service.
// ListComputers orders by name, ignoring case, then ID.
type ComputerRepository interface {
	CreateComputer(ctx context.Context, computer Computer) error
	GetComputer(ctx context.Context, id string) (Computer, error)
	ListComputers(ctx context.Context) ([]Computer, error)
	DeleteComputer(ctx context.Context, id string) error
}

// ComputerService manages the catalog of bookable computers.
type ComputerService struct {
	computers   ComputerRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewComputerService constructs a computer service with the provided dependencies.
func NewComputerService(computers ComputerRepository, idGenerator func() string, now func() time.Time) *ComputerService {
	return NewComputerServiceWithLogger(computers, idGenerator, now, nil)
}

// NewComputerServiceWithLogger constructs a computer service with a specified logger.
func NewComputerServiceWithLogger(computers ComputerRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ComputerService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &ComputerService{computers: computers, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *ComputerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ComputerService", operation, attrs...)
}

// CreateComputer validates input and registers a new computer.
func (s *ComputerService) CreateComputer(ctx context.Context, params CreateComputerParams) (computer Computer, err error) {
	if s == nil {
		err = fmt.Errorf("ComputerService is nil")
		return
	}
	if s.computers == nil {
		err = fmt.Errorf("computer repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateComputer")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create computer", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("computer_id", computer.ID).InfoContext(ctx, "computer created")
	}()

	name := strings.TrimSpace(params.Name)
	if name == "" {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		err = vErr
		return
	}

	candidate := Computer{
		ID:        s.idGenerator(),
		Name:      name,
		CreatedAt: s.now(),
	}
	if candidate.ID == "" {
		err = errEmptyID
		return
	}
	if err = s.computers.CreateComputer(ctx, candidate); err != nil {
		err = mapComputerRepoError(err)
		return
	}

	computer = candidate
	return
}

// GetComputer returns a computer by ID.
func (s *ComputerService) GetComputer(ctx context.Context, computerID string) (Computer, error) {
	if s == nil {
		return Computer{}, fmt.Errorf("ComputerService is nil")
	}
	if s.computers == nil {
		return Computer{}, ErrNotFound
	}

	computer, err := s.computers.GetComputer(ctx, computerID)
	if err != nil {
		return Computer{}, mapComputerRepoError(err)
	}
	return computer, nil
}

// DeleteComputer removes a computer together with its reservations.
func (s *ComputerService) DeleteComputer(ctx context.Context, computerID string) error {
	if s == nil {
		return fmt.Errorf("ComputerService is nil")
	}
	if s.computers == nil {
		return fmt.Errorf("computer repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteComputer",
		"computer_id", computerID,
	)

	if err := s.computers.DeleteComputer(ctx, computerID); err != nil {
		err = mapComputerRepoError(err)
		logger.ErrorContext(ctx, "failed to delete computer", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "computer deleted")
	return nil
}

// ListComputers returns every computer in repository order.
func (s *ComputerService) ListComputers(ctx context.Context) (computers []Computer, err error) {
	if s == nil {
		err = fmt.Errorf("ComputerService is nil")
		return
	}
	if s.computers == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListComputers")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list computers", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	computers, err = s.computers.ListComputers(ctx)
	if err != nil {
		err = mapComputerRepoError(err)
		return nil, err
	}

	return computers, nil
}

// SeedComputers registers names when the catalog is empty and reports how many were added.
func (s *ComputerService) SeedComputers(ctx context.Context, names []string) (int, error) {
	existing, err := s.ListComputers(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	seeded := 0
	for _, name := range names {
		if _, err := s.CreateComputer(ctx, CreateComputerParams{Name: name}); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				continue
			}
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}

func mapComputerRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("name", "name is invalid")
		return vErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return storageError(err)
	}
}
