package domain

import (
	"context"
	"time"
)

// AuctionStore reads the auction catalog from the durable store. The core
// never writes auctions; catalog management is external.
type AuctionStore interface {
	GetAuction(ctx context.Context, id string) (Auction, error)
	ListAuctions(ctx context.Context) ([]Auction, error)
}

// BidArchive is the relational projection of the bid log. InsertBatch must
// be safe to receive the same event twice (the worker delivers
// at-least-once). The age-bounded calls serve cold-storage export.
type BidArchive interface {
	InsertBatch(ctx context.Context, events []BidEvent) error
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]BidEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
