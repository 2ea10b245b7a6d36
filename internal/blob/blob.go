// Package blob re-exports the blob storage contract and is the only
// package that may construct the infra-backed implementations. Everything
// else depends on blob.Store.
package blob

import (
	"context"

	"iiifvault/internal/blob/core"
	fsstore "iiifvault/internal/infra/blob/fs"
	memorystore "iiifvault/internal/infra/blob/memory"
	s3store "iiifvault/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface implemented by all blob backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates a driver lacks an optional capability.
var ErrUnsupported = core.ErrUnsupported

// S3Config holds explicit S3 construction parameters.
type S3Config = s3store.Config

// NewFilesystem returns a blob store rooted at dir.
func NewFilesystem(dir string) (Store, error) { return fsstore.NewStore(dir) }

// NewMemory returns an in-memory blob store for tests.
func NewMemory() Store { return memorystore.NewStore() }

// NewS3 constructs an S3-backed blob store from explicit configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3store.NewStore(ctx, cfg) }

// NewMockS3ForTests exposes the in-memory S3 fake for cross-package tests.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
