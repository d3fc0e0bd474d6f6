package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/alanyoungcy/bidhub/internal/domain"
	"github.com/redis/go-redis/v9"
)

// LiveStateCache implements domain.LiveStateCache using the same per-auction
// hashes the bid script writes. It is strictly a reader apart from Seed,
// which only ever sets a price where none exists yet.
type LiveStateCache struct {
	rdb *redis.Client
}

// NewLiveStateCache creates a LiveStateCache backed by the given Client.
func NewLiveStateCache(c *Client) *LiveStateCache {
	return &LiveStateCache{rdb: c.Underlying()}
}

// Get retrieves the live state for one auction. It returns
// domain.ErrNotFound when the auction has no live state yet.
func (lc *LiveStateCache) Get(ctx context.Context, auctionID string) (domain.LiveState, error) {
	vals, err := lc.rdb.HGetAll(ctx, liveKey(auctionID)).Result()
	if err != nil {
		return domain.LiveState{}, fmt.Errorf("redis: get live state %s: %w", auctionID, err)
	}
	if len(vals) == 0 {
		return domain.LiveState{}, domain.ErrNotFound
	}
	return parseLiveState(auctionID, vals)
}

// GetAll retrieves live state for multiple auctions using a pipeline.
// Auctions with no live state are silently omitted from the result map.
func (lc *LiveStateCache) GetAll(ctx context.Context, auctionIDs []string) (map[string]domain.LiveState, error) {
	if len(auctionIDs) == 0 {
		return map[string]domain.LiveState{}, nil
	}

	pipe := lc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(auctionIDs))
	for _, id := range auctionIDs {
		cmds[id] = pipe.HGetAll(ctx, liveKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get live states pipeline: %w", err)
	}

	result := make(map[string]domain.LiveState, len(auctionIDs))
	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		state, err := parseLiveState(id, vals)
		if err != nil {
			continue
		}
		result[id] = state
	}

	return result, nil
}

// Seed initialises an auction's live hash with its start price. HSETNX
// guarantees a price already set by a real bid is never overwritten, so
// seeding is safe to repeat on every startup.
func (lc *LiveStateCache) Seed(ctx context.Context, auction domain.Auction) error {
	price := strconv.FormatFloat(auction.StartPrice, 'f', -1, 64)
	if err := lc.rdb.HSetNX(ctx, liveKey(auction.ID), "price", price).Err(); err != nil {
		return fmt.Errorf("redis: seed live state %s: %w", auction.ID, err)
	}
	return nil
}

func parseLiveState(auctionID string, vals map[string]string) (domain.LiveState, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return domain.LiveState{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.LiveState{}, fmt.Errorf("redis: parse live price %s: %w", auctionID, err)
	}
	return domain.LiveState{
		Price:  price,
		Bidder: vals["bidder"],
	}, nil
}

// Compile-time interface check.
var _ domain.LiveStateCache = (*LiveStateCache)(nil)
