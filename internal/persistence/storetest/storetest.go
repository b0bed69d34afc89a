// Package storetest holds the behavioural checks every persistence.Store backend
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/pc-reservation/internal/persistence"
	"github.com/example/pc-reservation/internal/testfixtures"
)

// Factory returns a fresh, empty store. Run closes it when the subtest ends.
type Factory func(t *testing.T) persistence.Store

// ReferenceTime anchors the timestamps used by the checks.
var ReferenceTime = testfixtures.ReferenceTime()

var errRejected = errors.New("storetest: rejected by guard")

// Run exercises the repository contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, ctx context.Context, store persistence.Store)
	}{
		{"computers", testComputers},
		{"reservation round trip", testReservationRoundTrip},
		{"guard sees overlapping rows", testGuardSeesOverlaps},
		{"guard rejection aborts the write", testGuardRejection},
		{"update", testUpdate},
		{"list filters and order", testListFilters},
		{"find overlapping", testFindOverlapping},
		{"delete and purge", testDeleteAndPurge},
		{"constraints", testConstraints},
		{"cascade on computer delete", testCascade},
		{"concurrent guarded creates", testConcurrentGuardedCreates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			t.Cleanup(func() { _ = store.Close() })
			tt.fn(t, context.Background(), store)
		})
	}
}

// Computer builds a computer fixture.
func Computer(id, name string) persistence.Computer {
	return testfixtures.NewComputerFixture(
		testfixtures.WithComputerID(id),
		testfixtures.WithComputerName(name),
		testfixtures.WithComputerCreatedAt(ReferenceTime),
	).Persistence()
}

// Reservation builds a reservation fixture starting offset after ReferenceTime.
// The computer name is left empty; stores fill it from the computers table.
func Reservation(id, computerID string, offset, length time.Duration) persistence.Reservation {
	start := ReferenceTime.Add(offset)
	return testfixtures.NewReservationFixture(
		testfixtures.WithReservationID(id),
		testfixtures.WithReservationComputerID(computerID),
		testfixtures.WithReservationUserName("user-"+id),
		testfixtures.WithReservationWindow(start, start.Add(length)),
		testfixtures.WithReservationTimestamps(ReferenceTime, ReferenceTime),
	).Persistence()
}

func mustCreateComputer(t *testing.T, ctx context.Context, store persistence.Store, computer persistence.Computer) {
	t.Helper()
	if err := store.CreateComputer(ctx, computer); err != nil {
		t.Fatalf("CreateComputer(%s) failed: %v", computer.ID, err)
	}
}

func mustCreateReservation(t *testing.T, ctx context.Context, store persistence.Store, reservation persistence.Reservation) {
	t.Helper()
	if err := store.CreateReservation(ctx, reservation, nil); err != nil {
		t.Fatalf("CreateReservation(%s) failed: %v", reservation.ID, err)
	}
}

func ids(reservations []persistence.Reservation) []string {
	out := make([]string, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, r.ID)
	}
	return out
}

func assertIDs(t *testing.T, got []persistence.Reservation, want ...string) {
	t.Helper()
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, gotIDs)
		}
	}
}

func testComputers(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-0", "Zeta"))
	mustCreateComputer(t, ctx, store, Computer("pc-2", "beta"))
	mustCreateComputer(t, ctx, store, Computer("pc-1", "alpha"))
	mustCreateComputer(t, ctx, store, Computer("pc-4", "Beta"))

	fetched, err := store.GetComputer(ctx, "pc-1")
	if err != nil {
		t.Fatalf("GetComputer failed: %v", err)
	}
	if fetched.Name != "alpha" || !fetched.CreatedAt.Equal(ReferenceTime) {
		t.Fatalf("unexpected computer %#v", fetched)
	}

	list, err := store.ListComputers(ctx)
	if err != nil {
		t.Fatalf("ListComputers failed: %v", err)
	}
	// Names compare case-insensitively; equal names fall back to id.
	wantOrder := []string{"pc-1", "pc-2", "pc-4", "pc-0"}
	if len(list) != len(wantOrder) {
		t.Fatalf("expected %d computers, got %#v", len(wantOrder), list)
	}
	for i, id := range wantOrder {
		if list[i].ID != id {
			t.Fatalf("expected computers ordered by name ignoring case %v, got %#v", wantOrder, list)
		}
	}

	if err := store.CreateComputer(ctx, Computer("pc-3", "alpha")); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
	if _, err := store.GetComputer(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.DeleteComputer(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func testReservationRoundTrip(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))

	notes := "bring a charger"
	reservation := Reservation("r-1", "pc-1", 10*time.Hour, 30*time.Minute)
	reservation.Notes = &notes
	mustCreateReservation(t, ctx, store, reservation)

	fetched, err := store.GetReservation(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if fetched.ComputerName != "1号機" || fetched.UserName != reservation.UserName {
		t.Fatalf("unexpected reservation %#v", fetched)
	}
	if !fetched.Start.Equal(reservation.Start) || !fetched.End.Equal(reservation.End) {
		t.Fatalf("window not preserved: %v - %v", fetched.Start, fetched.End)
	}
	if fetched.Notes == nil || *fetched.Notes != notes {
		t.Fatalf("notes not preserved: %v", fetched.Notes)
	}
	if !fetched.CreatedAt.Equal(ReferenceTime) || !fetched.UpdatedAt.Equal(ReferenceTime) {
		t.Fatalf("timestamps not preserved: %v %v", fetched.CreatedAt, fetched.UpdatedAt)
	}

	if err := store.CreateReservation(ctx, reservation, nil); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	if _, err := store.GetReservation(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testGuardSeesOverlaps(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))
	mustCreateComputer(t, ctx, store, Computer("pc-2", "2号機"))
	mustCreateReservation(t, ctx, store, Reservation("before", "pc-1", 9*time.Hour, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("inside", "pc-1", 10*time.Hour+15*time.Minute, 15*time.Minute))
	mustCreateReservation(t, ctx, store, Reservation("after", "pc-1", 11*time.Hour, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("other", "pc-2", 10*time.Hour, time.Hour))

	var seen []persistence.Reservation
	guard := func(existing []persistence.Reservation) error {
		seen = existing
		return nil
	}
	if err := store.CreateReservation(ctx, Reservation("new", "pc-1", 10*time.Hour, time.Hour), guard); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}
	assertIDs(t, seen, "inside")
}

func testGuardRejection(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))
	original := Reservation("r-1", "pc-1", 10*time.Hour, time.Hour)
	mustCreateReservation(t, ctx, store, original)

	reject := func([]persistence.Reservation) error { return errRejected }

	if err := store.CreateReservation(ctx, Reservation("r-2", "pc-1", 10*time.Hour, time.Hour), reject); !errors.Is(err, errRejected) {
		t.Fatalf("expected guard error to surface unchanged, got %v", err)
	}
	if _, err := store.GetReservation(ctx, "r-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected rejected create to leave no row, got %v", err)
	}

	moved := original
	moved.Start = original.Start.Add(3 * time.Hour)
	moved.End = original.End.Add(3 * time.Hour)
	if err := store.UpdateReservation(ctx, moved, reject); !errors.Is(err, errRejected) {
		t.Fatalf("expected guard error on update, got %v", err)
	}
	fetched, err := store.GetReservation(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if !fetched.Start.Equal(original.Start) {
		t.Fatalf("expected rejected update to leave the row untouched, got %v", fetched.Start)
	}
}

func testUpdate(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))
	notes := "old"
	original := Reservation("r-1", "pc-1", 10*time.Hour, time.Hour)
	original.Notes = &notes
	mustCreateReservation(t, ctx, store, original)

	updated := original
	updated.UserName = "renamed"
	updated.Start = original.Start.Add(30 * time.Minute)
	updated.End = original.End.Add(30 * time.Minute)
	updated.Notes = nil
	updated.UpdatedAt = ReferenceTime.Add(time.Hour)
	if err := store.UpdateReservation(ctx, updated, nil); err != nil {
		t.Fatalf("UpdateReservation failed: %v", err)
	}

	fetched, err := store.GetReservation(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if fetched.UserName != "renamed" || fetched.Notes != nil {
		t.Fatalf("unexpected update result %#v", fetched)
	}
	if !fetched.Start.Equal(updated.Start) || !fetched.UpdatedAt.Equal(updated.UpdatedAt) {
		t.Fatalf("unexpected timestamps %#v", fetched)
	}
	if !fetched.CreatedAt.Equal(ReferenceTime) {
		t.Fatalf("expected created_at to be kept, got %v", fetched.CreatedAt)
	}

	missing := Reservation("missing", "pc-1", 20*time.Hour, time.Hour)
	if err := store.UpdateReservation(ctx, missing, nil); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testListFilters(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))
	mustCreateComputer(t, ctx, store, Computer("pc-2", "2号機"))
	mustCreateReservation(t, ctx, store, Reservation("c", "pc-1", 12*time.Hour, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("a", "pc-1", 9*time.Hour, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("b", "pc-2", 9*time.Hour, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("d", "pc-1", 24*time.Hour, time.Hour))

	all, err := store.ListReservations(ctx, persistence.ReservationFilter{})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	assertIDs(t, all, "a", "b", "c", "d")

	from := ReferenceTime.Add(9 * time.Hour)
	before := ReferenceTime.Add(24 * time.Hour)
	day, err := store.ListReservations(ctx, persistence.ReservationFilter{StartsFrom: &from, StartsBefore: &before})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	assertIDs(t, day, "a", "b", "c")

	mine, err := store.ListReservations(ctx, persistence.ReservationFilter{ComputerID: "pc-1", StartsFrom: &from, StartsBefore: &before})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	assertIDs(t, mine, "a", "c")
	if mine[0].ComputerName != "1号機" {
		t.Fatalf("expected joined computer name, got %q", mine[0].ComputerName)
	}

	newest, err := store.ListReservations(ctx, persistence.ReservationFilter{Descending: true, Limit: 2})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	assertIDs(t, newest, "d", "c")
}

func testFindOverlapping(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))
	mustCreateReservation(t, ctx, store, Reservation("touch-before", "pc-1", 9*time.Hour, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("straddle", "pc-1", 10*time.Hour+30*time.Minute, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("touch-after", "pc-1", 11*time.Hour, time.Hour))

	got, err := store.FindOverlapping(ctx, "pc-1", ReferenceTime.Add(10*time.Hour), ReferenceTime.Add(11*time.Hour))
	if err != nil {
		t.Fatalf("FindOverlapping failed: %v", err)
	}
	assertIDs(t, got, "straddle")
}

func testDeleteAndPurge(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))
	mustCreateReservation(t, ctx, store, Reservation("old", "pc-1", -3*time.Hour, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("edge", "pc-1", -time.Hour, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("future", "pc-1", time.Hour, time.Hour))
	mustCreateReservation(t, ctx, store, Reservation("gone", "pc-1", 5*time.Hour, time.Hour))

	if err := store.DeleteReservation(ctx, "gone"); err != nil {
		t.Fatalf("DeleteReservation failed: %v", err)
	}
	if err := store.DeleteReservation(ctx, "gone"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}

	removed, err := store.DeleteReservationsEndingBefore(ctx, ReferenceTime)
	if err != nil {
		t.Fatalf("DeleteReservationsEndingBefore failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one purged reservation, got %d", removed)
	}

	remaining, err := store.ListReservations(ctx, persistence.ReservationFilter{})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	assertIDs(t, remaining, "edge", "future")
}

func testConstraints(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))

	orphan := Reservation("orphan", "missing", time.Hour, time.Hour)
	if err := store.CreateReservation(ctx, orphan, nil); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected foreign key violation, got %v", err)
	}

	inverted := Reservation("inverted", "pc-1", time.Hour, -time.Minute)
	if err := store.CreateReservation(ctx, inverted, nil); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation for inverted window, got %v", err)
	}

	blank := Reservation("blank", "pc-1", time.Hour, time.Hour)
	blank.UserName = "   "
	if err := store.CreateReservation(ctx, blank, nil); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation for blank name, got %v", err)
	}
}

func testCascade(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))
	mustCreateReservation(t, ctx, store, Reservation("r-1", "pc-1", time.Hour, time.Hour))

	if err := store.DeleteComputer(ctx, "pc-1"); err != nil {
		t.Fatalf("DeleteComputer failed: %v", err)
	}
	if _, err := store.GetReservation(ctx, "r-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected reservation to be removed with its computer, got %v", err)
	}
}

// testConcurrentGuardedCreates races guarded inserts of the same window. The
// store alone must let exactly one through.
func testConcurrentGuardedCreates(t *testing.T, ctx context.Context, store persistence.Store) {
	mustCreateComputer(t, ctx, store, Computer("pc-1", "1号機"))

	const attempts = 6
	var (
		group    errgroup.Group
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		reservation := Reservation("race-"+string(rune('a'+i)), "pc-1", 10*time.Hour, time.Hour)
		group.Go(func() error {
			err := store.CreateReservation(ctx, reservation, func(existing []persistence.Reservation) error {
				if len(existing) > 0 {
					return errRejected
				}
				return nil
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, errRejected):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	if accepted != 1 || rejected != attempts-1 {
		t.Fatalf("expected exactly one accepted create, got %d accepted and %d rejected", accepted, rejected)
	}
}
