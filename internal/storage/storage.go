// Package storage selects a snapshot store backend from the environment.
package storage

import (
	"fmt"
	"os"

	"iiifvault/internal/infra/persistence/memory"
	"iiifvault/internal/infra/persistence/postgres"
	"iiifvault/internal/infra/persistence/sqlite"
	"iiifvault/internal/vault"
)

// Driver identifies a concrete snapshot store implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// OpenSnapshotStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	IIIFVAULT_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	IIIFVAULT_SQLITE_PATH: path to sqlite file (default ./iiifvault.db)
//	IIIFVAULT_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenSnapshotStore() (vault.SnapshotStore, error) {
	driver := os.Getenv("IIIFVAULT_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(os.Getenv("IIIFVAULT_SQLITE_PATH"))
	case DriverPostgres:
		return postgres.NewStore(os.Getenv("IIIFVAULT_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
