// Package cache persists the last successful metadata snapshot per origin.
// The store is opened once at bootstrap and the handle is passed to whoever
// needs it; persistence is best effort and a failed write never invalidates
// the snapshot a caller already holds in memory.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/openmetalab/metasync/pkg/metadata/errors"
	"github.com/openmetalab/metasync/pkg/metadata/types"
)

const schemaSQL string = `
CREATE TABLE IF NOT EXISTS snapshots (
	origin_key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	taken_at TEXT NOT NULL
);`

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStoreUnavailableError(fmt.Sprintf("failed to open snapshot store at %s: %s", path, err.Error()))
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, errors.NewStoreUnavailableError(fmt.Sprintf("failed to initialise snapshot store: %s", err.Error()))
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot returns the persisted snapshot for an origin, or ErrNotFound when
// none has been stored yet. Any other failure maps to ErrStoreUnavailable so
// that callers can treat it as a cache miss.
func (s *Store) Snapshot(ctx context.Context, originKey string) (*types.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE origin_key = ?`, originKey,
	)

	var payload []byte
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no snapshot stored for origin %s", originKey))
	}
	if err != nil {
		return nil, errors.NewStoreUnavailableError(fmt.Sprintf("failed to read snapshot for origin %s: %s", originKey, err.Error()))
	}

	snapshot := &types.Snapshot{}
	err = json.Unmarshal(payload, snapshot)
	if err != nil {
		return nil, errors.NewStoreUnavailableError(fmt.Sprintf("failed to decode snapshot for origin %s: %s", originKey, err.Error()))
	}

	return snapshot, nil
}

// Put replaces the stored snapshot for the snapshot's origin wholesale.
func (s *Store) Put(ctx context.Context, snapshot *types.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (origin_key, payload, taken_at) VALUES (?, ?, ?)
		 ON CONFLICT(origin_key) DO UPDATE SET payload = excluded.payload, taken_at = excluded.taken_at`,
		snapshot.OriginKey, payload, snapshot.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
	)
	if err != nil {
		return errors.NewStoreUnavailableError(fmt.Sprintf("failed to store snapshot for origin %s: %s", snapshot.OriginKey, err.Error()))
	}

	return nil
}
