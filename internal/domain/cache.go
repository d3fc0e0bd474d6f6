package domain

import (
	"context"
	"time"
)

// BidResolver is the atomic accept/reject primitive. TryBid must read the
// current price, compare, conditionally update price and bidder, append the
// BidEvent to the log, and publish the acceptance envelope as one
// indivisible server-side step. A store failure is reported as an error
// (wrapping ErrResolutionUnavailable), never as an accept or reject.
type BidResolver interface {
	TryBid(ctx context.Context, auction Auction, amount float64, bidder string, ts time.Time) (BidOutcome, error)
}

// LiveStateCache reads the hot per-auction state and seeds it for newly
// loaded auctions. Seeding never overwrites a price set by a real bid.
type LiveStateCache interface {
	Get(ctx context.Context, auctionID string) (LiveState, error)
	GetAll(ctx context.Context, auctionIDs []string) (map[string]LiveState, error)
	Seed(ctx context.Context, auction Auction) error
}

// EventBus delivers accepted-bid envelopes to interested consumers. The
// returned channel is closed when the context is cancelled. Delivery is
// best-effort; the bus is not the durable record (the bid log is).
type EventBus interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LoggedBid is one entry read back from the bid log, carrying the log's own
// entry ID so consumers can track a cursor.
type LoggedBid struct {
	StreamID string
	Event    BidEvent
}

// BidLog is the durable, ordered, replayable record of accepted bids. Read
// blocks for up to block waiting for entries after lastID and returns an
// empty slice on timeout. The cursor is persisted out of band so a
// restarted consumer resumes where it left off. TrimProcessed evicts
// entries strictly below the given ID; the consumer calls it with its
// durable cursor, so only archived entries are ever trimmed.
type BidLog interface {
	Read(ctx context.Context, lastID string, count int, block time.Duration) ([]LoggedBid, error)
	Cursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, id string) error
	TrimProcessed(ctx context.Context, id string) error
}
