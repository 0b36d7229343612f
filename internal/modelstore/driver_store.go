package modelstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/tubemetrics/trendpipe/internal/drivers"
)

// DriverStore persists models through an artifact driver, so trained
// models can live next to the archived datasets in object storage.
type DriverStore struct {
	driver drivers.Driver
	bucket string
	prefix string
}

// NewDriverStore stores models under bucket/prefix via the driver.
func NewDriverStore(driver drivers.Driver, bucket, prefix string) *DriverStore {
	return &DriverStore{driver: driver, bucket: bucket, prefix: prefix}
}

func (s *DriverStore) key(key string) string {
	return s.prefix + sanitizeKey(key) + ".model"
}

// Save uploads the model, replacing any previous one for the key.
func (s *DriverStore) Save(ctx context.Context, key string, model []byte) error {
	if err := s.driver.Put(ctx, s.bucket, s.key(key), bytes.NewReader(model)); err != nil {
		return fmt.Errorf("save model %q: %w", key, err)
	}
	return nil
}

// Load downloads the model for a key.
func (s *DriverStore) Load(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.driver.Get(ctx, s.bucket, s.key(key))
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", key, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read model %q: %w", key, err)
	}
	return data, nil
}
