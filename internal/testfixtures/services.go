package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/pc-reservation/internal/application"
	"github.com/example/pc-reservation/internal/timegrid"
)

// ServiceFactory builds application services that share one fixture clock,
// one identifier sequence and one calendar grid.
type ServiceFactory struct {
	Clock  *Clock
	IDs    *IDGenerator
	Grid   timegrid.Grid
	Logger *slog.Logger
}

type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory defaults to ReferenceTime, "id-<n>" identifiers and a JST grid.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	f := &ServiceFactory{Grid: timegrid.New(nil)}
	for _, opt := range opts {
		opt(f)
	}
	if f.Clock == nil {
		f.Clock = NewClock(time.Time{})
	}
	if f.IDs == nil {
		f.IDs = NewIDGenerator("")
	}
	return f
}

func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Clock = clock }
}

func WithIDGenerator(ids *IDGenerator) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.IDs = ids }
}

// WithLocation evaluates calendar days in loc.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Grid = timegrid.New(loc) }
}

func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Logger = logger }
}

func (f *ServiceFactory) Computers(repo application.ComputerRepository) *application.ComputerService {
	return application.NewComputerServiceWithLogger(repo, f.IDs.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// Reservations resolves computer names through catalog, which may be the
// ComputerService returned by Computers.
func (f *ServiceFactory) Reservations(repo application.ReservationRepository, catalog application.ComputerCatalog) *application.ReservationService {
	return application.NewReservationServiceWithLogger(repo, catalog, f.Grid, f.IDs.NextFunc(), f.Clock.NowFunc(), f.Logger)
}
