package storage

import (
	"context"
	"io"
	"time"
)

// Package storage contains the content store abstraction for immutable
// version blobs. Writes are two-phase: bytes are first staged under their
// final key, and only promoted into place after the database has committed
// the row referencing them. A staged blob that never gets promoted is
// discarded; a promoted blob is never rewritten.

// PutObjectOptions define optional parameters for staging blobs.
// Size should be the exact number of bytes if known; ContentType and
// Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the content store contract shared by the local-disk and
// S3-compatible backends. Keys are forward-slash separated relative paths.
type Storage interface {
	// Stage writes the blob to the staging area under the given key.
	// The blob is not visible at its final location until Promote succeeds.
	Stage(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Promote moves a previously staged blob into its final location.
	Promote(ctx context.Context, key string) error
	// Discard removes a staged blob that will not be promoted.
	// Discarding a key that was never staged is not an error.
	Discard(ctx context.Context, key string) error
	// Get retrieves a promoted blob's content as a streaming reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes a promoted blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
