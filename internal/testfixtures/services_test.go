package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/pc-reservation/internal/application"
)

type capturingComputerRepo struct {
	created []application.Computer
}

func (c *capturingComputerRepo) CreateComputer(ctx context.Context, computer application.Computer) error {
	c.created = append(c.created, computer)
	return nil
}

func (c *capturingComputerRepo) GetComputer(ctx context.Context, id string) (application.Computer, error) {
	for _, computer := range c.created {
		if computer.ID == id {
			return computer, nil
		}
	}
	return application.Computer{}, application.ErrNotFound
}

func (c *capturingComputerRepo) ListComputers(ctx context.Context) ([]application.Computer, error) {
	return append([]application.Computer(nil), c.created...), nil
}

func (c *capturingComputerRepo) DeleteComputer(ctx context.Context, id string) error {
	return nil
}

type capturingReservationRepo struct {
	created application.Reservation
}

func (c *capturingReservationRepo) CreateReservation(ctx context.Context, reservation application.Reservation, guard application.OverlapGuard) error {
	if guard != nil {
		if err := guard(nil); err != nil {
			return err
		}
	}
	c.created = reservation
	return nil
}

func (c *capturingReservationRepo) UpdateReservation(ctx context.Context, reservation application.Reservation, guard application.OverlapGuard) error {
	return nil
}

func (c *capturingReservationRepo) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	return application.Reservation{}, application.ErrNotFound
}

func (c *capturingReservationRepo) ListReservations(ctx context.Context, query application.ReservationQuery) ([]application.Reservation, error) {
	return nil, nil
}

func (c *capturingReservationRepo) DeleteReservation(ctx context.Context, id string) error {
	return nil
}

func (c *capturingReservationRepo) DeleteReservationsEndingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func TestServiceFactory(t *testing.T) {
	t.Parallel()

	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("res")))
	computers := factory.Computers(&capturingComputerRepo{})

	pc, err := computers.CreateComputer(context.Background(), application.CreateComputerParams{Name: "  1号機（白）富士通  "})
	if err != nil {
		t.Fatalf("CreateComputer returned error: %v", err)
	}
	if pc.ID != "res-1" || pc.Name != "1号機（白）富士通" || !pc.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("unexpected computer %#v", pc)
	}

	repo := &capturingReservationRepo{}
	reservations := factory.Reservations(repo, computers)

	factory.Clock.Advance(time.Hour)
	fixture := NewReservationFixture(WithReservationComputer(ComputerFixture{ID: pc.ID, Name: pc.Name}), WithReservationNotes("印刷"))
	reservation, err := reservations.CreateReservation(context.Background(), fixture.CreateParams())
	if err != nil {
		t.Fatalf("CreateReservation returned error: %v", err)
	}

	if reservation.ID != "res-2" || reservation.ID != factory.IDs.Last() {
		t.Fatalf("expected shared sequence to yield res-2, got %q", reservation.ID)
	}
	if reservation.ComputerName != pc.Name {
		t.Fatalf("expected computer name %q, got %q", pc.Name, reservation.ComputerName)
	}
	if repo.created.ID != reservation.ID {
		t.Fatalf("repository received unexpected ID: %q", repo.created.ID)
	}
	if !reservation.CreatedAt.Equal(ReferenceTime().Add(time.Hour)) {
		t.Fatalf("expected advanced timestamp, got %v", reservation.CreatedAt)
	}
}
