// Package storage uploads report photos to an object store and derives their
// public URLs.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUploadFailed is returned when the object store rejects a write.
var ErrUploadFailed = errors.New("failed to upload image")

// DefaultCacheControl is the cache lifetime requested for uploaded images.
const DefaultCacheControl = time.Hour

// PutOptions carries per-object metadata for a write.
type PutOptions struct {
	ContentType  string
	CacheControl time.Duration
}

// ObjectStore is a bucket-scoped blob store with deterministic public URLs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}
