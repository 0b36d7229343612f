// Package modelstore persists trained imputation models keyed by the
// column they impute. Models outlive a single pipeline run and can be
// reloaded for compatible schemas; writes are last-write-wins.
package modelstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Store saves and loads serialized models by column key. Any
// implementation of this pair may substitute for the reference ones.
type Store interface {
	Save(ctx context.Context, key string, model []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// sanitizeKey maps a column name to a safe artifact name. Column names
// come from CSV headers and may contain path separators.
func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	return r.Replace(key)
}

// FileStore keeps one model file per column under a directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create model directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".model")
}

// Save writes the model, replacing any previous one for the key.
func (s *FileStore) Save(ctx context.Context, key string, model []byte) error {
	if err := os.WriteFile(s.path(key), model, 0640); err != nil {
		return fmt.Errorf("save model %q: %w", key, err)
	}
	s.logger.Debug("saved model",
		zap.String("column", key),
		zap.Int("bytes", len(model)))
	return nil
}

// Load reads the model for a key.
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", key, err)
	}
	return data, nil
}
