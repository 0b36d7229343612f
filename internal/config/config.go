package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tubemetrics/trendpipe/internal/database"
)

// Config is the full pipeline configuration, loaded from YAML with
// environment overrides on top.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Fetch    FetchConfig     `yaml:"fetch"`
	Imputer  ImputerConfig   `yaml:"imputer"`
	Database database.Config `yaml:"database"`
	Storage  StorageConfig   `yaml:"storage"`
	Archive  ArchiveConfig   `yaml:"archive"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	// Requests per second allowed on the run-trigger API.
	RateLimit float64 `yaml:"rate_limit"`
}

type FetchConfig struct {
	URL             string        `yaml:"url"`
	DataDir         string        `yaml:"data_dir"`
	Country         string        `yaml:"country"`
	OutputFile      string        `yaml:"output_file"`
	RequestInterval time.Duration `yaml:"request_interval"`
}

type ImputerConfig struct {
	TreeCount  int    `yaml:"tree_count"`
	MaxDepth   int    `yaml:"max_depth"`
	RandomSeed int64  `yaml:"random_seed"`
	MinLabeled int    `yaml:"min_labeled"`
	ModelDir   string `yaml:"model_dir"`
	// Persist models through the artifact driver instead of ModelDir.
	RemoteModels bool `yaml:"remote_models"`
}

type StorageConfig struct {
	Mode      string `yaml:"mode"` // "local" or "s3"
	LocalPath string `yaml:"local_path"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8080,
			LogLevel:  "info",
			RateLimit: 1,
		},
		Fetch: FetchConfig{
			DataDir:         "data",
			Country:         "US",
			OutputFile:      "youtube_trending.csv",
			RequestInterval: time.Minute,
		},
		Imputer: ImputerConfig{
			TreeCount:  100,
			MaxDepth:   0,
			RandomSeed: 42,
			MinLabeled: 10,
			ModelDir:   "impute_models",
		},
		Database: database.Config{
			Host:     "localhost",
			Port:     5432,
			Database: "youtube",
			User:     "trendpipe",
		},
		Storage: StorageConfig{
			Mode:      "local",
			LocalPath: "/tmp/trendpipe-artifacts",
			Region:    "us-east-1",
		},
		Archive: ArchiveConfig{
			Bucket: "youtube-trending-data-pipeline",
			Prefix: "trending/",
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
