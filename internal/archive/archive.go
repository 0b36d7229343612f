// Package archive uploads a compressed copy of the post-imputation
// dataset to object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/tubemetrics/trendpipe/internal/dataset"
	"github.com/tubemetrics/trendpipe/internal/drivers"
)

// Archiver serializes datasets to gzipped CSV and stores them through
// an artifact driver.
type Archiver struct {
	driver drivers.Driver
	bucket string
	prefix string
	logger *zap.Logger
}

// NewArchiver stores archives under bucket/prefix via the driver.
func NewArchiver(driver drivers.Driver, bucket, prefix string, logger *zap.Logger) *Archiver {
	return &Archiver{driver: driver, bucket: bucket, prefix: prefix, logger: logger}
}

// Run uploads the dataset under a date-stamped key carrying the run ID
// and returns the key.
func (a *Archiver) Run(ctx context.Context, ds *dataset.Dataset, runID string) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := dataset.WriteCSV(gz, ds); err != nil {
		return "", fmt.Errorf("serialize dataset: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("compress dataset: %w", err)
	}

	key := fmt.Sprintf("%s%s/youtube_trending-%s.csv.gz",
		a.prefix, time.Now().UTC().Format("2006-01-02"), runID)
	if err := a.driver.Put(ctx, a.bucket, key, &buf); err != nil {
		return "", fmt.Errorf("archive dataset: %w", err)
	}

	a.logger.Info("archived dataset",
		zap.String("driver", a.driver.Name()),
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("rows", ds.NumRows()))
	return key, nil
}
