// Package fetch downloads the public trending-videos dataset and
// normalizes it into the standard working file the pipeline consumes.
package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configure a dataset fetch.
type Options struct {
	URL        string // dataset archive or CSV location
	DataDir    string // local working directory
	SourceFile string // CSV to extract from a zip archive, e.g. "USvideos.csv"
	OutputFile string // standardized name, e.g. "youtube_trending.csv"
}

// Fetcher downloads datasets over HTTP. A shared token-bucket limiter
// keeps repeated runs polite toward the dataset host.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFetcher creates a fetcher allowing one request per interval with
// the given burst.
func NewFetcher(interval time.Duration, burst int, logger *zap.Logger) *Fetcher {
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		client:  &http.Client{Timeout: 5 * time.Minute},
		limiter: rate.NewLimiter(rate.Every(interval), burst),
		logger:  logger,
	}
}

// Run downloads the dataset and returns the path of the standardized
// CSV. Zip archives are unpacked and the configured source file
// selected; plain CSV responses are used as-is.
func (f *Fetcher) Run(ctx context.Context, opts Options) (string, error) {
	if err := os.MkdirAll(opts.DataDir, 0750); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	f.logger.Info("downloading dataset", zap.String("url", opts.URL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download dataset: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download dataset: unexpected status %s", resp.Status)
	}

	download := filepath.Join(opts.DataDir, "download.tmp")
	size, err := writeFile(download, resp.Body)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(download) }()
	f.logger.Info("download complete", zap.Int64("bytes", size))

	source := download
	if isZip(download) {
		source, err = extract(download, opts.DataDir, opts.SourceFile)
		if err != nil {
			return "", err
		}
	}

	out := filepath.Join(opts.DataDir, opts.OutputFile)
	if err := copyFile(source, out); err != nil {
		return "", err
	}
	f.logger.Info("dataset ready", zap.String("path", out))
	return out, nil
}

func isZip(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return magic[0] == 'P' && magic[1] == 'K'
}

// extract unpacks the named CSV from the archive into dir.
func extract(archivePath, dir, name string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, entry := range zr.File {
		if filepath.Base(entry.Name) != name {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return "", fmt.Errorf("open archive entry %q: %w", entry.Name, err)
		}
		dest := filepath.Join(dir, name)
		_, err = writeFile(dest, rc)
		_ = rc.Close()
		if err != nil {
			return "", err
		}
		return dest, nil
	}
	return "", fmt.Errorf("archive has no entry named %q", name)
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	n, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

func copyFile(src, dst string) error {
	if src == dst {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if _, err := writeFile(dst, in); err != nil {
		return err
	}
	return nil
}

// SourceFileFor maps a country code to its per-country CSV name, the
// layout the upstream trending dataset ships with.
func SourceFileFor(country string) string {
	return strings.ToUpper(country) + "videos.csv"
}
