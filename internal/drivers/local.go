package drivers

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalDriver keeps artifacts under basePath/bucket/key on the local
// filesystem. Used for development runs and tests.
type LocalDriver struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalDriver creates a local filesystem driver rooted at basePath.
func NewLocalDriver(basePath string, logger *zap.Logger) *LocalDriver {
	return &LocalDriver{basePath: basePath, logger: logger}
}

// Name returns the driver name
func (d *LocalDriver) Name() string { return "local" }

// Put stores an artifact, creating parent directories as needed.
func (d *LocalDriver) Put(ctx context.Context, bucket, key string, data io.Reader) error {
	fullPath := filepath.Join(d.basePath, bucket, key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("create artifact %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write artifact %s/%s: %w", bucket, key, err)
	}

	d.logger.Debug("stored artifact",
		zap.String("driver", d.Name()),
		zap.String("bucket", bucket),
		zap.String("key", key))
	return nil
}

// Get retrieves an artifact
func (d *LocalDriver) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.basePath, bucket, key))
	if err != nil {
		return nil, fmt.Errorf("get artifact %s/%s: %w", bucket, key, err)
	}
	return f, nil
}

// Delete removes an artifact
func (d *LocalDriver) Delete(ctx context.Context, bucket, key string) error {
	if err := os.Remove(filepath.Join(d.basePath, bucket, key)); err != nil {
		return fmt.Errorf("delete artifact %s/%s: %w", bucket, key, err)
	}
	return nil
}

// List returns artifact keys in a bucket with the given prefix.
func (d *LocalDriver) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	root := filepath.Join(d.basePath, bucket)
	var keys []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list bucket %s: %w", bucket, err)
	}
	return keys, nil
}
