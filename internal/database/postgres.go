// Package database loads the imputed dataset into PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tubemetrics/trendpipe/internal/dataset"
)

// Config holds database connection settings.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// TrendingColumns is the fixed schema of the trending_videos table, in
// load order. The post-imputation dataset must carry all of them.
var TrendingColumns = []string{
	"video_id", "title", "channel_title", "category_id", "publish_time",
	"tags", "views", "likes", "dislikes", "comment_count",
}

// Postgres wraps a PostgreSQL connection pool.
type Postgres struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgres opens a connection pool.
func NewPostgres(cfg Config, logger *zap.Logger) (*Postgres, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db, logger: logger}, nil
}

// Close closes the connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping verifies the connection
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// CreateTables creates the trending_videos table if absent.
func (p *Postgres) CreateTables(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS trending_videos (
		video_id      VARCHAR(32),
		title         TEXT,
		channel_title TEXT,
		category_id   INTEGER,
		publish_time  TIMESTAMPTZ,
		tags          TEXT,
		views         BIGINT,
		likes         BIGINT,
		dislikes      BIGINT,
		comment_count BIGINT
	)`
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create trending_videos: %w", err)
	}
	return nil
}

// ReplaceTrendingVideos truncates the table and bulk-loads the dataset
// via COPY inside one transaction. Unresolved missing cells load as
// NULL. Returns the number of rows loaded.
func (p *Postgres) ReplaceTrendingVideos(ctx context.Context, ds *dataset.Dataset) (int64, error) {
	cols, err := orderedColumns(ds)
	if err != nil {
		return 0, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "TRUNCATE trending_videos"); err != nil {
		return 0, fmt.Errorf("truncate trending_videos: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("trending_videos", TrendingColumns...))
	if err != nil {
		return 0, fmt.Errorf("prepare copy: %w", err)
	}

	rows := ds.NumRows()
	for row := 0; row < rows; row++ {
		if _, err := stmt.ExecContext(ctx, rowValues(cols, row)...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("copy row %d: %w", row, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load: %w", err)
	}

	p.logger.Info("loaded trending_videos", zap.Int("rows", rows))
	return int64(rows), nil
}

// orderedColumns resolves the dataset columns in schema order.
func orderedColumns(ds *dataset.Dataset) ([]*dataset.Column, error) {
	cols := make([]*dataset.Column, len(TrendingColumns))
	for i, name := range TrendingColumns {
		c, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("dataset is missing column %q", name)
		}
		cols[i] = c
	}
	return cols, nil
}

// rowValues converts one dataset row to driver values. Integral
// numeric columns round to int64; missing cells become NULL.
func rowValues(cols []*dataset.Column, row int) []interface{} {
	vals := make([]interface{}, len(cols))
	for i, c := range cols {
		if c.Missing[row] {
			vals[i] = nil
			continue
		}
		if c.Kind == dataset.KindNumeric {
			vals[i] = int64(math.Round(c.Floats[row]))
			continue
		}
		vals[i] = c.Strings[row]
	}
	return vals
}
