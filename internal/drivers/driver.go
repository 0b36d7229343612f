// Package drivers provides the artifact storage backends used by the
// archive step and the remote model store.
package drivers

import (
	"context"
	"io"
)

// Driver stores named artifacts in buckets. Implementations are the
// local filesystem (development) and S3-compatible object storage
// (production).
type Driver interface {
	Name() string
	Put(ctx context.Context, bucket, key string, data io.Reader) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}
