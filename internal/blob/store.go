// Package blob provides durable file storage behind a single capability
// interface, with local-disk and S3-compatible variants selected once at
// startup by configuration.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"notedrop/internal/config"
)

// ErrNotFound is returned when the requested key holds no object.
var ErrNotFound = errors.New("blob not found")

// Store is the object storage capability used by the upload pipeline,
// the download handler and the indexer.
type Store interface {
	// Put stores the object under key and returns a URL for it.
	Put(ctx context.Context, key string, r io.Reader, size int64) (string, error)

	// Open returns a reader over the stored object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether the key holds an object.
	Exists(ctx context.Context, key string) (bool, error)

	// URLFor returns the canonical URL for a key without touching storage.
	URLFor(key string) string
}

// FromConfig creates the configured storage variant.
// Supported backends: "local", "s3".
func FromConfig(cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case "local":
		return NewLocalStore(cfg.BlobDir)
	case "s3":
		return NewS3Store(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s (supported: local, s3)", cfg.BlobBackend)
	}
}
