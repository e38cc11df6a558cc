package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// currentSchemaVersion is the target version after all migrations in
// migrationsList have run. Per SPEC_FULL.md §5, this repo carries a
// version row and an ordered migration list from day one instead of
// the teacher's "rebuild on column change" posture -- once pending
// ops and worktree links exist, the cache is no longer purely
// rebuildable, so silent column changes are not safe here.
const currentSchemaVersion = 1

// migration is one idempotent schema step, applied in order.
type migration struct {
	version int
	name    string
	apply   func(context.Context, *sql.DB) error
}

// migrationsList is the ordered list of all migrations. Each is
// idempotent (guarded by IF NOT EXISTS or a version check) so running
// it twice is a no-op, matching the teacher's migrations.go
// convention.
var migrationsList = []migration{
	{1, "initial_schema", func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, schema)
		return err
	}},
}

// runMigrations creates the base tables and applies any migration
// whose version exceeds the stored schema_version, recording the new
// version after each step succeeds.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := readSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrationsList {
		if m.version <= current {
			continue
		}
		if err := m.apply(ctx, db); err != nil {
			return fmt.Errorf("migration %q (v%d): %w", m.name, m.version, err)
		}
		if err := writeSchemaVersion(ctx, db, m.version); err != nil {
			return fmt.Errorf("record migration %q: %w", m.name, err)
		}
		current = m.version
	}

	return nil
}

func readSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func writeSchemaVersion(ctx context.Context, db *sql.DB, version int) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version)
	return err
}
