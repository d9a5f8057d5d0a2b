package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvBool reads a boolean environment variable. Unset or unparsable values
// yield fallback.
func GetEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("Ignoring malformed boolean environment variable.", "key", key, "value", v)
		return fallback
	}
	return b
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object is not an error.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}

// UploadWithRetry writes data to bucket/object, retrying with exponential
// backoff. Each attempt gets its own 50s deadline.
func UploadWithRetry(ctx context.Context, bucket *storage.BucketHandle, object, contentType string, data []byte) error {
	const maxRetries = 4
	backoff := 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
			defer cancel()

			w := bucket.Object(object).NewWriter(writeCtx)
			w.ContentType = contentType
			if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
				_ = w.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", object,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", object, "error", ctx.Err())
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}

// ObjectInfo is the subset of object attributes the packer needs.
type ObjectInfo struct {
	Data        []byte
	ContentType string
}

// ReadObject downloads a whole object.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string) (ObjectInfo, error) {
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return ObjectInfo{Data: data, ContentType: r.Attrs.ContentType}, nil
}

// ListObjects returns the names under prefix in lexical order, skipping
// directory placeholders.
func ListObjects(ctx context.Context, client *storage.Client, bucket, prefix string) ([]string, error) {
	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// URI formats a gs:// URI.
func URI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}
