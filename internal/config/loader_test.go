package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "serve"
log_level = "debug"

[server]
port = 8080

[redis]
addr = "redis.internal:6379"

[archive]
block = "2s"
batch_size = 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Explicit values win.
	require.Equal(t, "serve", cfg.Mode)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	require.Equal(t, 2*time.Second, cfg.Archive.Block.Duration)
	require.Equal(t, 250, cfg.Archive.BatchSize)

	// Untouched sections keep their defaults.
	require.Equal(t, "bid_events", cfg.Bidding.Stream)
	require.Equal(t, "bids", cfg.Bidding.Channel)
	require.Equal(t, int64(0), cfg.Bidding.StreamMaxLen)
	require.Equal(t, "bid_events:archive_cursor", cfg.Archive.CursorKey)
	require.Equal(t, 500*time.Millisecond, cfg.Archive.RetryMin.Duration)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 8080
`)

	t.Setenv("BIDHUB_SERVER_PORT", "9090")
	t.Setenv("BIDHUB_REDIS_PASSWORD", "hunter2")
	t.Setenv("BIDHUB_MODE", "archive")
	t.Setenv("BIDHUB_ARCHIVE_BLOCK", "3s")
	t.Setenv("BIDHUB_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port, "env must win over file")
	require.Equal(t, "hunter2", cfg.Redis.Password)
	require.Equal(t, "archive", cfg.Mode)
	require.Equal(t, 3*time.Second, cfg.Archive.Block.Duration)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadDatabaseURLAlias(t *testing.T) {
	path := writeConfig(t, ``)
	t.Setenv("DATABASE_URL", "postgres://u:p@db.internal:5432/bidhub")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@db.internal:5432/bidhub", cfg.Postgres.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown_mode",
			mutate:  func(c *Config) { c.Mode = "hybrid" },
			wantErr: "unknown mode",
		},
		{
			name:    "unknown_log_level",
			mutate:  func(c *Config) { c.LogLevel = "trace" },
			wantErr: "unknown log_level",
		},
		{
			name:    "bad_port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "port must be 1-65535",
		},
		{
			name:    "empty_redis_addr",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "redis: addr",
		},
		{
			name:    "empty_bidding_stream",
			mutate:  func(c *Config) { c.Bidding.Stream = "" },
			wantErr: "bidding: stream",
		},
		{
			name:    "negative_stream_max_len",
			mutate:  func(c *Config) { c.Bidding.StreamMaxLen = -1 },
			wantErr: "stream_max_len",
		},
		{
			name:    "zero_batch_size",
			mutate:  func(c *Config) { c.Archive.BatchSize = 0 },
			wantErr: "batch_size",
		},
		{
			name:    "retry_max_below_min",
			mutate:  func(c *Config) { c.Archive.RetryMax = duration{time.Millisecond} },
			wantErr: "retry_max >= retry_min",
		},
		{
			name:    "pool_min_above_max",
			mutate:  func(c *Config) { c.Postgres.PoolMinConns = 50 },
			wantErr: "pool_min_conns",
		},
		{
			name:    "cold_archive_without_bucket",
			mutate:  func(c *Config) { c.ColdArchive.Enabled = true },
			wantErr: "s3: bucket",
		},
		{
			name: "dsn_skips_host_checks",
			mutate: func(c *Config) {
				c.Postgres.DSN = "postgres://u:p@db/bidhub"
				c.Postgres.Host = ""
				c.Postgres.Port = 0
				c.Postgres.Database = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("1500ms")))
	require.Equal(t, 1500*time.Millisecond, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1.5s", string(text))

	require.Error(t, d.UnmarshalText([]byte("soon")))
}
