package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/bidhub/internal/domain"
	"github.com/redis/go-redis/v9"
)

// BidLog implements domain.BidLog on a Redis stream. Appends happen inside
// the bid script (resolver.go); this type only reads entries back and
// tracks the archival cursor, which lives in its own Redis key so a
// restarted worker resumes where the last successful batch ended.
type BidLog struct {
	rdb       *redis.Client
	stream    string
	cursorKey string
}

// NewBidLog creates a BidLog reading the given stream, persisting its
// cursor under cursorKey.
func NewBidLog(c *Client, stream, cursorKey string) *BidLog {
	return &BidLog{
		rdb:       c.Underlying(),
		stream:    stream,
		cursorKey: cursorKey,
	}
}

// Read blocks for up to block waiting for entries appended after lastID and
// returns at most count of them. A timeout with no new entries returns an
// empty slice, not an error. Entries with malformed fields are skipped.
func (l *BidLog) Read(ctx context.Context, lastID string, count int, block time.Duration) ([]domain.LoggedBid, error) {
	args := &redis.XReadArgs{
		Streams: []string{l.stream, lastID},
		Count:   int64(count),
		Block:   block,
	}

	results, err := l.rdb.XRead(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: read stream %s: %w", l.stream, err)
	}

	var bids []domain.LoggedBid
	for _, s := range results {
		for _, msg := range s.Messages {
			event, err := parseBidEntry(msg.Values)
			if err != nil {
				continue
			}
			bids = append(bids, domain.LoggedBid{
				StreamID: msg.ID,
				Event:    event,
			})
		}
	}

	return bids, nil
}

// Cursor returns the persisted read position, or "0-0" (the start of the
// stream) when none has been stored yet.
func (l *BidLog) Cursor(ctx context.Context) (string, error) {
	id, err := l.rdb.Get(ctx, l.cursorKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "0-0", nil
		}
		return "", fmt.Errorf("redis: get cursor %s: %w", l.cursorKey, err)
	}
	return id, nil
}

// SetCursor persists the read position. Called only after the batch ending
// at id has been durably written.
func (l *BidLog) SetCursor(ctx context.Context, id string) error {
	if err := l.rdb.Set(ctx, l.cursorKey, id, 0).Err(); err != nil {
		return fmt.Errorf("redis: set cursor %s: %w", l.cursorKey, err)
	}
	return nil
}

// TrimProcessed evicts stream entries with IDs strictly below id. The
// worker calls it with the cursor it just persisted, so the stream holds
// only entries the archive has not yet absorbed.
func (l *BidLog) TrimProcessed(ctx context.Context, id string) error {
	if err := l.rdb.XTrimMinID(ctx, l.stream, id).Err(); err != nil {
		return fmt.Errorf("redis: trim stream %s: %w", l.stream, err)
	}
	return nil
}

// parseBidEntry decodes one stream entry's field map into a BidEvent.
func parseBidEntry(values map[string]interface{}) (domain.BidEvent, error) {
	get := func(field string) (string, error) {
		v, ok := values[field]
		if !ok {
			return "", fmt.Errorf("missing field %q", field)
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("field %q is %T, not string", field, v)
		}
		return s, nil
	}

	eventID, err := get("event_id")
	if err != nil {
		return domain.BidEvent{}, err
	}
	auctionID, err := get("auction_id")
	if err != nil {
		return domain.BidEvent{}, err
	}
	amountStr, err := get("amount")
	if err != nil {
		return domain.BidEvent{}, err
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return domain.BidEvent{}, fmt.Errorf("parse amount %q: %w", amountStr, err)
	}
	bidder, err := get("bidder")
	if err != nil {
		return domain.BidEvent{}, err
	}
	tsStr, err := get("ts")
	if err != nil {
		return domain.BidEvent{}, err
	}
	tsMilli, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.BidEvent{}, fmt.Errorf("parse ts %q: %w", tsStr, err)
	}

	return domain.BidEvent{
		EventID:   eventID,
		AuctionID: auctionID,
		Amount:    amount,
		Bidder:    bidder,
		Timestamp: time.UnixMilli(tsMilli).UTC(),
	}, nil
}

// Compile-time interface check.
var _ domain.BidLog = (*BidLog)(nil)
