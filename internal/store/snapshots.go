package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SnapshotStore persists one serialized book snapshot per pair,
// overwritten on every mutating book operation (last writer wins).
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore creates a SnapshotStore over the given database.
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Upsert writes the pair's snapshot, creating the row on first mutation.
func (s *SnapshotStore) Upsert(ctx context.Context, pairID int64, content []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO snapshots (pair_id,content,updated_at) VALUES (?,?,?)
ON CONFLICT(pair_id) DO UPDATE SET content=excluded.content, updated_at=excluded.updated_at
`, pairID, string(content), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Get returns the pair's snapshot content, or nil when none exists.
func (s *SnapshotStore) Get(ctx context.Context, pairID int64) ([]byte, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM snapshots WHERE pair_id=?`, pairID).Scan(&content)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return []byte(content), nil
}
