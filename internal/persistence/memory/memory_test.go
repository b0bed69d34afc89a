package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/pc-reservation/internal/persistence"
	"github.com/example/pc-reservation/internal/persistence/memory"
	"github.com/example/pc-reservation/internal/persistence/storetest"
)

func TestStorage_Contract(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) persistence.Store {
		return memory.Open()
	})
}

func TestStorage_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.Open()
	if err := store.CreateComputer(ctx, storetest.Computer("pc-1", "1号機")); err != nil {
		t.Fatalf("CreateComputer failed: %v", err)
	}

	notes := "original"
	reservation := storetest.Reservation("r-1", "pc-1", time.Hour, time.Hour)
	reservation.Notes = &notes
	if err := store.CreateReservation(ctx, reservation, nil); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}
	notes = "mutated by caller"

	fetched, err := store.GetReservation(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if *fetched.Notes != "original" {
		t.Fatalf("expected stored notes to be isolated from caller, got %q", *fetched.Notes)
	}

	*fetched.Notes = "mutated after read"
	again, err := store.GetReservation(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if *again.Notes != "original" {
		t.Fatalf("expected reads to return copies, got %q", *again.Notes)
	}
}
