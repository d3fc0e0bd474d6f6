// Package config defines the top-level configuration for the bidhub auction
// server and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BIDHUB_* environment
// variables.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Bidding     BiddingConfig     `toml:"bidding"`
	Archive     ArchiveConfig     `toml:"archive"`
	ColdArchive ColdArchiveConfig `toml:"cold_archive"`
	S3          S3Config          `toml:"s3"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// ServerConfig holds the HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// BiddingConfig holds the names and bounds of the Redis structures backing
// the atomic bid path.
type BiddingConfig struct {
	Stream       string `toml:"stream"`         // bid event stream key
	Channel      string `toml:"channel"`        // pub/sub channel for accepted bids
	StreamMaxLen int64  `toml:"stream_max_len"` // optional hard cap on the stream; 0 disables it
}

// ArchiveConfig holds the archival worker parameters.
type ArchiveConfig struct {
	BatchSize int      `toml:"batch_size"`
	Block     duration `toml:"block"`      // bounded wait per log read
	RetryMin  duration `toml:"retry_min"`  // initial backoff after a failed batch write
	RetryMax  duration `toml:"retry_max"`  // backoff ceiling
	CursorKey string   `toml:"cursor_key"` // Redis key holding the read cursor
}

// ColdArchiveConfig holds the cold-storage export parameters. Disabled by
// default; requires the S3 section when enabled.
type ColdArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	Cron          string `toml:"cron"` // standard 5-field cron expression
	RetentionDays int    `toml:"retention_days"`
	ExportLimit   int    `toml:"export_limit"` // max rows per export run
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "1s", "500ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "1s" or "500ms".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.DB < 0 {
		errs = append(errs, "redis: db must be >= 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Bidding
	if c.Bidding.Stream == "" {
		errs = append(errs, "bidding: stream must not be empty")
	}
	if c.Bidding.Channel == "" {
		errs = append(errs, "bidding: channel must not be empty")
	}
	if c.Bidding.StreamMaxLen < 0 {
		errs = append(errs, "bidding: stream_max_len must be >= 0")
	}

	// Archive
	if c.Archive.BatchSize < 1 {
		errs = append(errs, "archive: batch_size must be >= 1")
	}
	if c.Archive.Block.Duration <= 0 {
		errs = append(errs, "archive: block must be a positive duration")
	}
	if c.Archive.RetryMin.Duration <= 0 || c.Archive.RetryMax.Duration < c.Archive.RetryMin.Duration {
		errs = append(errs, "archive: retry_min must be positive and retry_max >= retry_min")
	}
	if c.Archive.CursorKey == "" {
		errs = append(errs, "archive: cursor_key must not be empty")
	}

	// Cold archive
	if c.ColdArchive.Enabled {
		if c.ColdArchive.Cron == "" {
			errs = append(errs, "cold_archive: cron must not be empty when enabled")
		}
		if c.ColdArchive.RetentionDays < 1 {
			errs = append(errs, "cold_archive: retention_days must be >= 1")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when cold_archive is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when cold_archive is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
