// Package migration applies versioned SQL migrations to the reservation database.
//
// Migration files are read from an fs.FS (normally an embedded directory) and must
// be named {version}_{description}.sql, e.g. "001_create_reservations.sql". Applied
// versions are tracked in the schema_migrations table; each migration runs in its
// own transaction together with its version record.
//
// Example usage:
//
//	runner := migration.NewRunner(db, migrationFiles, logger)
//	if err := runner.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
