// Package history keeps the one-line "last seen" boundary between runs:
// posting IDs that were already decided and must not be resurfaced.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store tracks decided posting IDs in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging history db: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS seen_postings (
		posting_id TEXT PRIMARY KEY,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating seen_postings table: %w", err)
	}

	return &Store{db: db}, nil
}

// Seen returns true when the posting ID was already recorded.
func (s *Store) Seen(ctx context.Context, postingID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM seen_postings WHERE posting_id = ?", postingID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking seen status for %s: %w", postingID, err)
	}
	return true, nil
}

// Mark records a posting ID. Already-recorded IDs are a no-op.
func (s *Store) Mark(ctx context.Context, postingID string) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO seen_postings (posting_id) VALUES (?)", postingID)
	if err != nil {
		return fmt.Errorf("marking posting %s as seen: %w", postingID, err)
	}
	return nil
}

// Cleanup deletes entries older than the given duration.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) error {
	// CURRENT_TIMESTAMP stores UTC text, compare in the same shape.
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	_, err := s.db.ExecContext(ctx, "DELETE FROM seen_postings WHERE first_seen < ?", cutoff)
	if err != nil {
		return fmt.Errorf("cleaning up postings older than %v: %w", olderThan, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
