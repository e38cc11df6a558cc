// Package sqlite is the embedded, file-backed implementation of
// store.Store. It uses the pure-Go ncruces/go-sqlite3 driver (no
// cgo) in write-ahead-log mode so the daemon's connection and each CLI
// invocation's connection can coexist across processes, per
// SPEC_FULL.md §4.1.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/forgectl/fg/internal/ferr"
)

// SQLiteStorage is the cache's one store.Store implementation.
type SQLiteStorage struct {
	db       *sql.DB
	readOnly bool
}

// Open opens (creating if absent) the cache database at path in
// read-write mode, enables WAL journaling and foreign-key
// enforcement, and runs pending migrations. Both the daemon and the
// CLI open the cache this way.
func Open(ctx context.Context, path string) (*SQLiteStorage, error) {
	return open(ctx, path, false)
}

// OpenReadOnly opens the cache database for read-only access. Any
// write attempted on a read-only handle returns an error rather than
// blocking.
func OpenReadOnly(ctx context.Context, path string) (*SQLiteStorage, error) {
	return open(ctx, path, true)
}

func open(ctx context.Context, path string, readOnly bool) (*SQLiteStorage, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	if readOnly {
		dsn += "&mode=ro"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, ferr.Wrap(ferr.StoreCorrupt, fmt.Errorf("open %s: %w", path, err))
	}
	db.SetMaxOpenConns(1) // one connection per handle

	if !readOnly {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, ferr.Wrap(ferr.StoreCorrupt, fmt.Errorf("enable WAL: %w", err))
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, ferr.Wrap(ferr.StoreCorrupt, fmt.Errorf("enable foreign keys: %w", err))
		}
		if err := runMigrations(ctx, db); err != nil {
			db.Close()
			return nil, ferr.Wrap(ferr.StoreCorrupt, fmt.Errorf("run migrations: %w", err))
		}
	}

	return &SQLiteStorage{db: db, readOnly: readOnly}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// withRetry retries an operation a bounded number of times on
// SQLITE_BUSY, the store-busy case of §4.1's failure model, and wraps
// the last busy error as store-busy once attempts run out. Any other
// error is returned immediately, unchanged.
func withRetry(ctx context.Context, fn func() error) error {
	const maxAttempts = 5
	backoff := 20 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isBusyErr(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return ferr.Wrap(ferr.StoreBusy, lastErr).WithRemedy("retry the operation; the store is under write contention")
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	// ncruces/go-sqlite3 reports busy/locked conditions via error text;
	// the driver's typed error (sqlite3.BUSY) is avoided here to keep
	// this package decoupled from the driver's internal error type.
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// errNoRows normalizes sql.ErrNoRows into the not-found taxonomy.
func errNoRows(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ferr.New(ferr.NotFound, what)
	}
	return err
}
