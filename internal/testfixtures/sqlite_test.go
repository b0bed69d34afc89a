package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteHarnessRoundTrip(t *testing.T) {
	harness := NewSQLiteHarness(t)
	pc := NewComputerFixture()
	harness.SeedComputers(t, pc)

	reservation := NewReservationFixture(WithReservationComputer(pc), WithReservationNotes("資料作成"))
	harness.SeedReservations(t, reservation)

	stored, err := harness.Store.GetReservation(context.Background(), reservation.ID)
	if err != nil {
		t.Fatalf("GetReservation returned error: %v", err)
	}
	if stored.ComputerName != pc.Name {
		t.Fatalf("expected joined computer name %q, got %q", pc.Name, stored.ComputerName)
	}
	if !stored.Start.Equal(reservation.Start) || !stored.End.Equal(reservation.End) {
		t.Fatalf("window mismatch: %v-%v", stored.Start, stored.End)
	}
	if stored.Notes == nil || *stored.Notes != "資料作成" {
		t.Fatalf("unexpected notes %v", stored.Notes)
	}
	if filepath.Base(harness.Path) != "reservations.db" {
		t.Fatalf("unexpected database path %q", harness.Path)
	}
}
