// Package domain defines the core types and interfaces for the live auction
// engine. Concrete implementations live in cache/redis, store/postgres, and
// blob/s3.
package domain

import "time"

// Auction is the immutable catalog entry for a single time-bounded sale.
// It is created by catalog tooling outside this service and is read-only
// to the bidding core.
type Auction struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	StartPrice float64   `json:"startPrice"`
	CloseTime  time.Time `json:"closeTime"`
	ImageURL   string    `json:"image,omitempty"`
}

// Closed reports whether the auction no longer accepts bids at the given
// instant. The close time itself counts as closed.
func (a Auction) Closed(now time.Time) bool {
	return !now.Before(a.CloseTime)
}

// LiveState is the mutable hot state of one auction: the current price and
// the identity of the leading bidder. It is owned exclusively by the atomic
// store; every other component only reads it.
type LiveState struct {
	Price  float64 `json:"currentPrice"`
	Bidder string  `json:"lastBidder,omitempty"`
}

// AuctionWithState merges the catalog entry with the live state as of one
// read, which is the shape of the listing endpoint.
type AuctionWithState struct {
	Auction
	LiveState
}
