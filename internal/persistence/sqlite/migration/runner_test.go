package migration

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	files := fstest.MapFS{
		"001_create_items.sql": {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);")},
		"002_add_name.sql":     {Data: []byte("ALTER TABLE items ADD COLUMN name TEXT;")},
	}

	t.Run("applies pending migrations once", func(t *testing.T) {
		db := openMemoryDB(t)
		runner := NewRunner(db, files, nil)

		if err := runner.Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if err := runner.Run(ctx); err != nil {
			t.Fatalf("second Run failed: %v", err)
		}

		applied, err := runner.executor.AppliedVersions(ctx)
		if err != nil {
			t.Fatalf("AppliedVersions failed: %v", err)
		}
		if len(applied) != 2 || applied[0].Version != "001" || applied[1].Version != "002" {
			t.Fatalf("unexpected applied versions: %#v", applied)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO items (id, name) VALUES ('a', 'b')"); err != nil {
			t.Fatalf("expected migrated schema, got %v", err)
		}
	})

	t.Run("rolls back a failing migration", func(t *testing.T) {
		db := openMemoryDB(t)
		broken := fstest.MapFS{
			"001_create_items.sql": {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);\nCREATE TABLE items (id TEXT);")},
		}
		runner := NewRunner(db, broken, nil)

		var dbErr *DatabaseError
		if err := runner.Run(ctx); !errors.As(err, &dbErr) {
			t.Fatalf("expected DatabaseError, got %v", err)
		}
		pending, err := runner.Pending(ctx)
		if err != nil {
			t.Fatalf("Pending failed: %v", err)
		}
		if len(pending) != 1 {
			t.Fatalf("expected failed migration to stay pending, got %d", len(pending))
		}
	})

	t.Run("detects edited migrations", func(t *testing.T) {
		db := openMemoryDB(t)
		if err := NewRunner(db, files, nil).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		edited := fstest.MapFS{
			"001_create_items.sql": {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY, extra TEXT);")},
			"002_add_name.sql":     files["002_add_name.sql"],
		}
		if _, err := NewRunner(db, edited, nil).Pending(ctx); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}
