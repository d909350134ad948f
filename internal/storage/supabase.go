package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/patrickwarner/floodwatch/internal/observability"
)

// SupabaseStore writes objects to a Supabase Storage bucket.
type SupabaseStore struct {
	endpoint   string
	serviceKey string
	bucket     string
	publicBase string
	timeout    time.Duration
	tracer     trace.Tracer
}

// NewSupabaseStore creates a store for bucket on the project at baseURL.
// publicBase is the prefix of public object URLs; when empty the project's
// public object path is used.
func NewSupabaseStore(baseURL, serviceKey, bucket, publicBase string, timeout time.Duration) *SupabaseStore {
	return &SupabaseStore{
		endpoint:   strings.TrimRight(baseURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		timeout:    timeout,
		tracer:     observability.Tracer("storage"),
	}
}

// client returns a fresh API client. Upload options are held as client
// headers, so clients are not shared between calls.
func (s *SupabaseStore) client() *storage_go.Client {
	return storage_go.NewClient(s.endpoint, s.serviceKey, map[string]string{"apikey": s.serviceKey})
}

// Put uploads data under key. Existing objects are not overwritten.
func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	upsert := false
	fileOpts := storage_go.FileOptions{Upsert: &upsert}
	if opts.ContentType != "" {
		contentType := opts.ContentType
		fileOpts.ContentType = &contentType
	}
	if opts.CacheControl > 0 {
		cacheControl := "max-age=" + strconv.Itoa(int(opts.CacheControl.Seconds()))
		fileOpts.CacheControl = &cacheControl
	}

	return s.call(ctx, "storage.supabase.Put", key, func(c *storage_go.Client) error {
		_, err := c.UploadFile(s.bucket, url.PathEscape(key), bytes.NewReader(data), fileOpts)
		return err
	})
}

// Delete removes key from the bucket.
func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	return s.call(ctx, "storage.supabase.Delete", key, func(c *storage_go.Client) error {
		_, err := c.RemoveFile(s.bucket, []string{key})
		return err
	})
}

// PublicURL returns the URL at which key is served.
func (s *SupabaseStore) PublicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + url.PathEscape(key)
	}
	return s.client().GetPublicUrl(s.bucket, url.PathEscape(key)).SignedURL
}

// call runs fn in its own goroutine so that ctx and the store timeout bound
// the wait; the client itself takes no context.
func (s *SupabaseStore) call(ctx context.Context, op, key string, fn func(*storage_go.Client) error) error {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("storage.bucket", s.bucket),
		attribute.String("storage.key", key),
	))
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- fn(s.client()) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("storage request abandoned: %w", ctx.Err())
	}
	if err != nil {
		err = describe(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// describe gives API rejections a readable message; the API does not always
// send one.
func describe(err error) error {
	var apiErr *storage_go.StorageError
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.Message == "" {
		return errors.New("storage request rejected")
	}
	return fmt.Errorf("storage request rejected: %s", apiErr.Message)
}
