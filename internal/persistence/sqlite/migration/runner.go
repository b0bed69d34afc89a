package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Runner applies pending migrations from a filesystem in version order.
type Runner struct {
	executor *Executor
	files    fs.FS
	logger   *slog.Logger
}

// NewRunner wires a runner for db reading migrations from files.
func NewRunner(db *sql.DB, files fs.FS, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		executor: NewExecutor(db),
		files:    files,
		logger:   logger.With("component", "migration"),
	}
}

// Pending returns the migrations not yet recorded in schema_migrations. An applied
// migration whose file checksum changed is reported as ErrChecksumMismatch.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	if err := r.executor.InitializeVersionTable(ctx); err != nil {
		return nil, err
	}

	available, err := Scan(r.files)
	if err != nil {
		return nil, err
	}
	applied, err := r.executor.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	checksums := make(map[string]string, len(applied))
	for _, record := range applied {
		checksums[record.Version] = record.Checksum
	}

	pending := make([]Migration, 0, len(available))
	for _, migration := range available {
		checksum, ok := checksums[migration.Version]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		if checksum != "" && checksum != migration.Checksum {
			return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return pending, nil
}

// Run executes all pending migrations sequentially, stopping at the first failure.
func (r *Runner) Run(ctx context.Context) error {
	started := time.Now()

	pending, err := r.Pending(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to resolve pending migrations", "error", err)
		return err
	}
	if len(pending) == 0 {
		r.logger.DebugContext(ctx, "schema up to date")
		return nil
	}

	for i, migration := range pending {
		logger := r.logger.With(
			"version", migration.Version,
			"description", migration.Description,
			"position", fmt.Sprintf("%d/%d", i+1, len(pending)),
		)
		if err := r.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return err
		}
		logger.InfoContext(ctx, "migration applied")
	}

	r.logger.InfoContext(ctx, "migrations complete",
		"applied", len(pending),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}
