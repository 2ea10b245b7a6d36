// Package core declares the blob storage contract shared by the archive
// backends. Callers outside the storage layer depend on the blob wrapper
// package instead of this one.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob backend.
type Driver string

const (
	// DriverFilesystem stores objects under a local directory root.
	DriverFilesystem Driver = "fs"
	// DriverS3 targets AWS S3 or an S3-compatible endpoint such as MinIO.
	DriverS3 Driver = "s3"
	// DriverMemory keeps objects in process memory; used by tests.
	DriverMemory Driver = "memory"
)

// PutOptions carries optional attributes for a write.
type PutOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // flat user metadata
}

// SignedURLOptions configures pre-signed URL generation.
type SignedURLOptions struct {
	Method  string        // GET|PUT; only GET is used by the archive layer
	Expiry  time.Duration // default 15m
	Headers map[string]string
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is a narrow S3-shaped object store. Put is create-only: writing a
// key that already exists fails rather than overwriting, which keeps
// archived exports immutable.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

// ErrUnsupported is returned when a driver lacks an optional capability.
var ErrUnsupported = errors.New("blob: unsupported operation")
