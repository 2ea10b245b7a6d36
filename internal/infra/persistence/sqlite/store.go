// Package sqlite persists vault snapshots to a single SQLite table as JSON
// blobs, one bucket per entity type plus the relationship tables and root id.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"iiifvault/internal/vault"
)

// Compile-time contract assertion.
var _ vault.SnapshotStore = (*Store)(nil)

// Store is a snapshotting SQLite-backed snapshot store.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path and ensures the state
// table exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "iiifvault.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

var sqliteBuckets = []string{
	"collections",
	"manifests",
	"canvases",
	"ranges",
	"annotation_pages",
	"annotations",
	"references",
	"members",
	"root",
}

func bucketTargets(snap *vault.Snapshot) map[string]any {
	return map[string]any{
		"collections":      &snap.Collections,
		"manifests":        &snap.Manifests,
		"canvases":         &snap.Canvases,
		"ranges":           &snap.Ranges,
		"annotation_pages": &snap.AnnotationPages,
		"annotations":      &snap.Annotations,
		"references":       &snap.References,
		"members":          &snap.Members,
		"root":             &snap.RootID,
	}
}

// Load implements vault.SnapshotStore.
func (s *Store) Load(ctx context.Context) (vault.Snapshot, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return vault.Snapshot{}, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap vault.Snapshot
	targets := bucketTargets(&snap)
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return vault.Snapshot{}, false, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		target, ok := targets[bucket]
		if !ok {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return vault.Snapshot{}, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return vault.Snapshot{}, false, fmt.Errorf("iterate state: %w", err)
	}
	return snap, found, nil
}

// Persist implements vault.SnapshotStore. All buckets are replaced in one
// transaction so a crash never leaves a torn snapshot.
func (s *Store) Persist(ctx context.Context, snapshot vault.Snapshot) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	sources := bucketTargets(&snapshot)
	for _, bucket := range sqliteBuckets {
		data, err := json.Marshal(sources[bucket])
		if err != nil {
			retErr = fmt.Errorf("encode %s: %w", bucket, err)
			return retErr
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
			bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// Close implements vault.SnapshotStore.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
