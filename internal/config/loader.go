package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BIDHUB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// Defaults returns a Config populated with reasonable default values for
// local development.
func Defaults() Config {
	return Config{
		Mode:     "full",
		LogLevel: "info",
		Server: ServerConfig{
			Port: 3000,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "bidhub",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Bidding: BiddingConfig{
			Stream:  "bid_events",
			Channel: "bids",
			// The archival worker trims the stream by its cursor, so no
			// length cap is needed by default.
			StreamMaxLen: 0,
		},
		Archive: ArchiveConfig{
			BatchSize: 100,
			Block:     duration{time.Second},
			RetryMin:  duration{500 * time.Millisecond},
			RetryMax:  duration{30 * time.Second},
			CursorKey: "bid_events:archive_cursor",
		},
		ColdArchive: ColdArchiveConfig{
			Cron:          "0 3 * * *",
			RetentionDays: 30,
			ExportLimit:   100000,
		},
	}
}

// applyEnvOverrides reads well-known BIDHUB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "BIDHUB_MODE")
	setStr(&cfg.LogLevel, "BIDHUB_LOG_LEVEL")

	// ── Server ──
	setInt(&cfg.Server.Port, "BIDHUB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BIDHUB_SERVER_CORS_ORIGINS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BIDHUB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BIDHUB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BIDHUB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BIDHUB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BIDHUB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BIDHUB_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BIDHUB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "BIDHUB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BIDHUB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BIDHUB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BIDHUB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BIDHUB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BIDHUB_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BIDHUB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BIDHUB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BIDHUB_POSTGRES_RUN_MIGRATIONS")

	// ── Bidding ──
	setStr(&cfg.Bidding.Stream, "BIDHUB_BIDDING_STREAM")
	setStr(&cfg.Bidding.Channel, "BIDHUB_BIDDING_CHANNEL")
	setInt64(&cfg.Bidding.StreamMaxLen, "BIDHUB_BIDDING_STREAM_MAX_LEN")

	// ── Archive ──
	setInt(&cfg.Archive.BatchSize, "BIDHUB_ARCHIVE_BATCH_SIZE")
	setDuration(&cfg.Archive.Block, "BIDHUB_ARCHIVE_BLOCK")
	setDuration(&cfg.Archive.RetryMin, "BIDHUB_ARCHIVE_RETRY_MIN")
	setDuration(&cfg.Archive.RetryMax, "BIDHUB_ARCHIVE_RETRY_MAX")
	setStr(&cfg.Archive.CursorKey, "BIDHUB_ARCHIVE_CURSOR_KEY")

	// ── Cold archive ──
	setBool(&cfg.ColdArchive.Enabled, "BIDHUB_COLD_ARCHIVE_ENABLED")
	setStr(&cfg.ColdArchive.Cron, "BIDHUB_COLD_ARCHIVE_CRON")
	setInt(&cfg.ColdArchive.RetentionDays, "BIDHUB_COLD_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.ColdArchive.ExportLimit, "BIDHUB_COLD_ARCHIVE_EXPORT_LIMIT")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BIDHUB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BIDHUB_S3_REGION")
	setStr(&cfg.S3.Bucket, "BIDHUB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BIDHUB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BIDHUB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BIDHUB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BIDHUB_S3_FORCE_PATH_STYLE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
