// Package memory provides a process-local snapshot store, useful for tests
// and for sessions that want persistence semantics without a database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"iiifvault/internal/vault"
)

// Compile-time contract assertion.
var _ vault.SnapshotStore = (*Store)(nil)

// Store holds the latest snapshot as encoded JSON. Storing bytes rather than
// the snapshot value keeps the store isolated from later mutations and
// exercises the same codec the durable stores use.
type Store struct {
	mu      sync.Mutex
	payload []byte
}

// NewStore constructs an empty in-memory snapshot store.
func NewStore() *Store {
	return &Store{}
}

// Load implements vault.SnapshotStore.
func (s *Store) Load(_ context.Context) (vault.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload == nil {
		return vault.Snapshot{}, false, nil
	}
	var snap vault.Snapshot
	if err := json.Unmarshal(s.payload, &snap); err != nil {
		return vault.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// Persist implements vault.SnapshotStore.
func (s *Store) Persist(_ context.Context, snapshot vault.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	s.mu.Lock()
	s.payload = data
	s.mu.Unlock()
	return nil
}

// Close implements vault.SnapshotStore.
func (s *Store) Close() error { return nil }
