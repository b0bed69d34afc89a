package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/pc-reservation/internal/persistence/sqlite"
)

// SQLiteHarness is a migrated SQLite store in a per-test temporary file. The
// store is closed by tb.Cleanup.
type SQLiteHarness struct {
	Store *sqlite.Store
	Path  string
}

func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "reservations.db")
	store, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(path), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("open sqlite harness: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	return &SQLiteHarness{Store: store, Path: path}
}

// SeedComputers inserts the fixtures directly through the store.
func (h *SQLiteHarness) SeedComputers(tb testing.TB, computers ...ComputerFixture) {
	tb.Helper()
	for _, computer := range computers {
		if err := h.Store.CreateComputer(context.Background(), computer.Persistence()); err != nil {
			tb.Fatalf("seed computer %s: %v", computer.ID, err)
		}
	}
}

// SeedReservations inserts the fixtures without an overlap guard.
func (h *SQLiteHarness) SeedReservations(tb testing.TB, reservations ...ReservationFixture) {
	tb.Helper()
	for _, reservation := range reservations {
		if err := h.Store.CreateReservation(context.Background(), reservation.Persistence(), nil); err != nil {
			tb.Fatalf("seed reservation %s: %v", reservation.ID, err)
		}
	}
}
