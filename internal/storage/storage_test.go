package storage

import (
	"path/filepath"
	"testing"

	"iiifvault/internal/infra/persistence/memory"
	"iiifvault/internal/infra/persistence/sqlite"
)

func TestOpenSnapshotStoreMemory(t *testing.T) {
	t.Setenv("IIIFVAULT_STORAGE_DRIVER", "memory")
	store, err := OpenSnapshotStore()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenSnapshotStoreSQLite(t *testing.T) {
	t.Setenv("IIIFVAULT_STORAGE_DRIVER", "sqlite")
	t.Setenv("IIIFVAULT_SQLITE_PATH", filepath.Join(t.TempDir(), "vault.db"))
	store, err := OpenSnapshotStore()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
}

func TestOpenSnapshotStoreUnknownDriver(t *testing.T) {
	t.Setenv("IIIFVAULT_STORAGE_DRIVER", "clay-tablet")
	if _, err := OpenSnapshotStore(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
