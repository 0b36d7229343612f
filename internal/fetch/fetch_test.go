package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const csvBody = "video_id,views\nabc,100\n"

func zipWith(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFetcher_Run(t *testing.T) {
	t.Run("extracts the country csv from a zip archive", func(t *testing.T) {
		payload := zipWith(t, "USvideos.csv", csvBody)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(payload)
		}))
		defer srv.Close()

		dir := t.TempDir()
		f := NewFetcher(time.Millisecond, 1, zap.NewNop())
		out, err := f.Run(context.Background(), Options{
			URL:        srv.URL,
			DataDir:    dir,
			SourceFile: "USvideos.csv",
			OutputFile: "youtube_trending.csv",
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "youtube_trending.csv"), out)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, csvBody, string(data))
	})

	t.Run("accepts a plain csv response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(csvBody))
		}))
		defer srv.Close()

		dir := t.TempDir()
		f := NewFetcher(time.Millisecond, 1, zap.NewNop())
		out, err := f.Run(context.Background(), Options{
			URL:        srv.URL,
			DataDir:    dir,
			OutputFile: "youtube_trending.csv",
		})
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, csvBody, string(data))
	})

	t.Run("fails on missing archive entry", func(t *testing.T) {
		payload := zipWith(t, "GBvideos.csv", csvBody)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(payload)
		}))
		defer srv.Close()

		f := NewFetcher(time.Millisecond, 1, zap.NewNop())
		_, err := f.Run(context.Background(), Options{
			URL:        srv.URL,
			DataDir:    t.TempDir(),
			SourceFile: "USvideos.csv",
			OutputFile: "out.csv",
		})
		assert.Error(t, err)
	})

	t.Run("fails on http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		f := NewFetcher(time.Millisecond, 1, zap.NewNop())
		_, err := f.Run(context.Background(), Options{
			URL:        srv.URL,
			DataDir:    t.TempDir(),
			OutputFile: "out.csv",
		})
		assert.Error(t, err)
	})
}

func TestSourceFileFor(t *testing.T) {
	assert.Equal(t, "USvideos.csv", SourceFileFor("us"))
	assert.Equal(t, "GBvideos.csv", SourceFileFor("GB"))
}
