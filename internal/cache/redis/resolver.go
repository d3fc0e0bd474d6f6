package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/bidhub/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// bidLua is the atomic bid resolution script. It reads the current price,
// compares it against the proposed amount, and on strict improvement
// updates the live hash, appends the bid event to the stream, and publishes
// the acceptance envelope, all within one script invocation, so no
// read-then-write window exists even under unbounded concurrent callers.
// Equal amounts lose: the first bid evaluated wins by serialization.
//
// KEYS[1] live state hash, KEYS[2] bid event stream.
// ARGV: amount, start price, bidder, event id, auction id, ts (unix ms),
// stream maxlen (0 leaves the stream unbounded; the archival worker trims
// it by cursor), pub/sub channel, acceptance payload.
//
// Returns {1, amount, bidder} on accept, {0, current price, current bidder}
// on reject. Prices travel as strings to avoid Lua integer truncation.
const bidLua = `
local current = tonumber(redis.call('HGET', KEYS[1], 'price'))
if current == nil then
    current = tonumber(ARGV[2])
end
local amount = tonumber(ARGV[1])
if amount > current then
    redis.call('HSET', KEYS[1], 'price', ARGV[1], 'bidder', ARGV[3])
    if tonumber(ARGV[7]) > 0 then
        redis.call('XADD', KEYS[2], 'MAXLEN', '~', ARGV[7], '*',
            'event_id', ARGV[4], 'auction_id', ARGV[5], 'amount', ARGV[1],
            'bidder', ARGV[3], 'ts', ARGV[6])
    else
        redis.call('XADD', KEYS[2], '*',
            'event_id', ARGV[4], 'auction_id', ARGV[5], 'amount', ARGV[1],
            'bidder', ARGV[3], 'ts', ARGV[6])
    end
    redis.call('PUBLISH', ARGV[8], ARGV[9])
    return {1, ARGV[1], ARGV[3]}
end
local bidder = redis.call('HGET', KEYS[1], 'bidder')
return {0, tostring(current), bidder or ''}
`

// ResolverConfig names the Redis structures the resolver writes to.
type ResolverConfig struct {
	Stream       string // bid event stream key
	Channel      string // pub/sub channel for acceptance envelopes
	StreamMaxLen int64  // optional hard cap on the stream; 0 disables it
}

// Resolver implements domain.BidResolver with a server-side Lua script so
// the compare, the state update, the log append, and the publication form
// one indivisible step per auction. Scripts for different auctions touch
// different keys and interleave freely.
type Resolver struct {
	rdb    *redis.Client
	script *redis.Script
	cfg    ResolverConfig
}

// NewResolver creates a Resolver backed by the given Client.
func NewResolver(c *Client, cfg ResolverConfig) *Resolver {
	return &Resolver{
		rdb:    c.Underlying(),
		script: redis.NewScript(bidLua),
		cfg:    cfg,
	}
}

// TryBid atomically resolves one proposed bid against the auction's live
// state. The caller is responsible for the lifecycle check; the resolver
// only enforces strict price improvement. On rejection the returned outcome
// carries the unchanged current price and bidder.
func (r *Resolver) TryBid(ctx context.Context, auction domain.Auction, amount float64, bidder string, ts time.Time) (domain.BidOutcome, error) {
	eventID := uuid.New().String()

	payload, err := json.Marshal(domain.BidUpdate{
		Type:      domain.UpdateTypeBid,
		AuctionID: auction.ID,
		Price:     amount,
		Winner:    bidder,
	})
	if err != nil {
		return domain.BidOutcome{}, fmt.Errorf("redis: marshal bid update %s: %w", auction.ID, err)
	}

	keys := []string{liveKey(auction.ID), r.cfg.Stream}
	args := []interface{}{
		strconv.FormatFloat(amount, 'f', -1, 64),
		strconv.FormatFloat(auction.StartPrice, 'f', -1, 64),
		bidder,
		eventID,
		auction.ID,
		strconv.FormatInt(ts.UnixMilli(), 10),
		strconv.FormatInt(r.cfg.StreamMaxLen, 10),
		r.cfg.Channel,
		payload,
	}

	res, err := r.script.Run(ctx, r.rdb, keys, args...).Result()
	if err != nil {
		return domain.BidOutcome{}, fmt.Errorf("redis: bid script %s: %w: %v", auction.ID, domain.ErrResolutionUnavailable, err)
	}

	outcome, err := parseBidReply(res)
	if err != nil {
		return domain.BidOutcome{}, fmt.Errorf("redis: bid script %s: %w", auction.ID, err)
	}
	return outcome, nil
}

// parseBidReply decodes the script's {flag, price, bidder} reply. Redis
// returns Lua numbers as int64 and Lua strings as string; prices are
// returned as strings by the script to preserve decimals.
func parseBidReply(v interface{}) (domain.BidOutcome, error) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 3 {
		return domain.BidOutcome{}, fmt.Errorf("unexpected bid reply %T", v)
	}

	flag, ok := arr[0].(int64)
	if !ok {
		return domain.BidOutcome{}, fmt.Errorf("unexpected bid reply flag %T", arr[0])
	}

	priceStr, ok := arr[1].(string)
	if !ok {
		return domain.BidOutcome{}, fmt.Errorf("unexpected bid reply price %T", arr[1])
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.BidOutcome{}, fmt.Errorf("parse bid reply price %q: %w", priceStr, err)
	}

	bidder, _ := arr[2].(string)

	return domain.BidOutcome{
		Accepted: flag == 1,
		Price:    price,
		Bidder:   bidder,
	}, nil
}

// Compile-time interface check.
var _ domain.BidResolver = (*Resolver)(nil)
