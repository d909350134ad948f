package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/observability"
)

var whitespace = regexp.MustCompile(`\s+`)

// Image is an in-memory file received with a report.
type Image struct {
	Data         []byte
	OriginalName string
	ContentType  string
}

// Object identifies a stored image.
type Object struct {
	Key string
	URL string
}

// Uploader names images and writes them to an ObjectStore.
type Uploader struct {
	store   ObjectStore
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// NewUploader returns an Uploader writing to store. A nil clock uses wall time.
func NewUploader(store ObjectStore, clock clockwork.Clock, logger *zap.Logger, metrics observability.MetricsRegistry) *Uploader {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Uploader{store: store, clock: clock, logger: logger, metrics: metrics}
}

// Upload stores img under a timestamped key and returns its public URL.
// Store failures are reported as ErrUploadFailed.
func (u *Uploader) Upload(ctx context.Context, img Image) (Object, error) {
	start := u.clock.Now()
	key := ObjectKey(start, img.OriginalName)
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err := u.store.Put(ctx, key, img.Data, PutOptions{
		ContentType:  contentType,
		CacheControl: DefaultCacheControl,
	})
	u.metrics.RecordImageUploadLatency(u.clock.Since(start))
	if err != nil {
		u.metrics.IncrementImageUploads("failure")
		u.logger.Error("image upload failed", zap.String("key", key), zap.Error(err))
		return Object{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	u.metrics.IncrementImageUploads("success")
	u.logger.Debug("image uploaded", zap.String("key", key), zap.Int("bytes", len(img.Data)))
	return Object{Key: key, URL: u.store.PublicURL(key)}, nil
}

// Remove deletes a previously uploaded object.
func (u *Uploader) Remove(ctx context.Context, key string) error {
	if err := u.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// ObjectKey builds "<unix millis>-<name>" with whitespace runs in name
// replaced by a hyphen.
func ObjectKey(now time.Time, originalName string) string {
	name := whitespace.ReplaceAllString(strings.TrimSpace(originalName), "-")
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), name)
}
