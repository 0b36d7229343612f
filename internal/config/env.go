package config

import (
	"os"
	"strconv"
)

// LoadFromEnv applies environment overrides. Secrets (database
// password, object storage keys) normally arrive this way rather than
// through the config file.
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("TRENDPIPE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("TRENDPIPE_LOG_LEVEL"); level != "" {
		cfg.Server.LogLevel = level
	}

	if url := os.Getenv("TRENDPIPE_DATASET_URL"); url != "" {
		cfg.Fetch.URL = url
	}
	if country := os.Getenv("TRENDPIPE_COUNTRY"); country != "" {
		cfg.Fetch.Country = country
	}

	if host := os.Getenv("TRENDPIPE_DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("TRENDPIPE_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}
	if user := os.Getenv("TRENDPIPE_DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if password := os.Getenv("TRENDPIPE_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if name := os.Getenv("TRENDPIPE_DB_NAME"); name != "" {
		cfg.Database.Database = name
	}

	if mode := os.Getenv("TRENDPIPE_STORAGE_MODE"); mode != "" {
		cfg.Storage.Mode = mode
	}
	if endpoint := os.Getenv("TRENDPIPE_S3_ENDPOINT"); endpoint != "" {
		cfg.Storage.Endpoint = endpoint
	}
	if key := os.Getenv("TRENDPIPE_S3_ACCESS_KEY"); key != "" {
		cfg.Storage.AccessKey = key
	}
	if secret := os.Getenv("TRENDPIPE_S3_SECRET_KEY"); secret != "" {
		cfg.Storage.SecretKey = secret
	}
	if bucket := os.Getenv("TRENDPIPE_ARCHIVE_BUCKET"); bucket != "" {
		cfg.Archive.Bucket = bucket
	}
}

// GetEnvOrDefault returns an environment variable or a fallback.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
