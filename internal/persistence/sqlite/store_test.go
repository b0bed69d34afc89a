package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/example/pc-reservation/internal/persistence"
	"github.com/example/pc-reservation/internal/persistence/sqlite"
	"github.com/example/pc-reservation/internal/persistence/storetest"
	"github.com/example/pc-reservation/internal/testfixtures"
)

func openStore(t *testing.T, dsn string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(dsn), nil)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", dsn, err)
	}
	return store
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	t.Run("file", func(t *testing.T) {
		t.Parallel()
		storetest.Run(t, func(t *testing.T) persistence.Store {
			return testfixtures.NewSQLiteHarness(t).Store
		})
	})

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		storetest.Run(t, func(t *testing.T) persistence.Store {
			return openStore(t, ":memory:")
		})
	})
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	dsn := "file:" + filepath.Join(t.TempDir(), "reservations.db")
	first := openStore(t, dsn)
	if err := first.CreateComputer(context.Background(), storetest.Computer("pc-1", "1号機")); err != nil {
		t.Fatalf("CreateComputer failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := openStore(t, dsn)
	defer second.Close()
	if err := second.Migrate(context.Background(), nil); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if _, err := second.GetComputer(context.Background(), "pc-1"); err != nil {
		t.Fatalf("expected data to survive reopen, got %v", err)
	}
	if err := second.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestStore_ListComputersIgnoresCase(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	harness.SeedComputers(t,
		testfixtures.NewComputerFixture(testfixtures.WithComputerID("pc-b"), testfixtures.WithComputerName("bravo")),
		testfixtures.NewComputerFixture(testfixtures.WithComputerID("pc-a"), testfixtures.WithComputerName("Zulu")),
		testfixtures.NewComputerFixture(testfixtures.WithComputerID("pc-c"), testfixtures.WithComputerName("Alpha")),
	)

	list, err := harness.Store.ListComputers(context.Background())
	if err != nil {
		t.Fatalf("ListComputers failed: %v", err)
	}
	want := []string{"pc-c", "pc-b", "pc-a"}
	if len(list) != len(want) {
		t.Fatalf("expected %d computers, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("expected order %v, got %#v", want, list)
		}
	}
}

func TestErrorMapper_MapError(t *testing.T) {
	t.Parallel()

	mapper := sqlite.NewErrorMapper()
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique", errors.New("constraint failed: UNIQUE constraint failed: computers.name (2067)"), persistence.ErrDuplicate},
		{"foreign key", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), persistence.ErrForeignKeyViolation},
		{"check", errors.New("constraint failed: CHECK constraint failed: start_time < end_time (275)"), persistence.ErrConstraintViolation},
		{"not null", errors.New("NOT NULL constraint failed: reservations.user_name"), persistence.ErrConstraintViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapper.MapError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("MapError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	passthrough := fmt.Errorf("wrapped: %w", persistence.ErrNotFound)
	if got := mapper.MapError(passthrough); got != passthrough {
		t.Fatalf("expected unrelated errors to pass through, got %v", got)
	}
	if mapper.MapError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
