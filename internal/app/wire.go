package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	s3blob "github.com/alanyoungcy/bidhub/internal/blob/s3"
	"github.com/alanyoungcy/bidhub/internal/cache/redis"
	"github.com/alanyoungcy/bidhub/internal/config"
	"github.com/alanyoungcy/bidhub/internal/domain"
	"github.com/alanyoungcy/bidhub/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Durable store
	AuctionStore domain.AuctionStore
	BidArchive   domain.BidArchive

	// Low-latency store
	Resolver  domain.BidResolver
	LiveCache domain.LiveStateCache
	Bus       domain.EventBus
	BidLog    domain.BidLog
	Redis     *redis.Client

	// Cold storage (nil unless cold_archive is enabled)
	BlobWriter domain.BlobWriter

	// Server-authoritative clock
	Clock clockwork.Clock
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Clock: clockwork.NewRealClock(),
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.AuctionStore = postgres.NewAuctionStore(pool)
	deps.BidArchive = postgres.NewBidStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.Resolver = redis.NewResolver(redisClient, redis.ResolverConfig{
		Stream:       cfg.Bidding.Stream,
		Channel:      cfg.Bidding.Channel,
		StreamMaxLen: cfg.Bidding.StreamMaxLen,
	})
	deps.LiveCache = redis.NewLiveStateCache(redisClient)
	deps.Bus = redis.NewEventBus(redisClient)
	deps.BidLog = redis.NewBidLog(redisClient, cfg.Bidding.Stream, cfg.Archive.CursorKey)

	// --- S3 (only when the cold archiver is enabled) ---
	if cfg.ColdArchive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	return deps, cleanup, nil
}
