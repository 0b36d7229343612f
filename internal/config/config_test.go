package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Imputer.TreeCount)
	assert.Equal(t, int64(42), cfg.Imputer.RandomSeed)
	assert.Equal(t, 10, cfg.Imputer.MinLabeled)
	assert.Equal(t, "US", cfg.Fetch.Country)
	assert.Equal(t, "local", cfg.Storage.Mode)
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := "server:\n  port: 9000\nimputer:\n  tree_count: 25\n  max_depth: 8\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0640))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 25, cfg.Imputer.TreeCount)
		assert.Equal(t, 8, cfg.Imputer.MaxDepth)
		// untouched sections keep defaults
		assert.Equal(t, "US", cfg.Fetch.Country)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := Load("/does/not/exist.yaml")
		assert.Error(t, err)
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRENDPIPE_PORT", "7070")
	t.Setenv("TRENDPIPE_DB_PASSWORD", "hunter2")
	t.Setenv("TRENDPIPE_STORAGE_MODE", "s3")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, "s3", cfg.Storage.Mode)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TRENDPIPE_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnvOrDefault("TRENDPIPE_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("TRENDPIPE_UNSET_KEY", "fallback"))
}
