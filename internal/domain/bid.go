package domain

import "time"

// BidEvent records one accepted bid. Exactly one event is produced per
// acceptance, appended to the deployment-wide bid log in the same atomic
// step that changed the live state. Events are immutable once appended.
type BidEvent struct {
	EventID   string    `json:"eventId"`
	AuctionID string    `json:"auctionId"`
	Amount    float64   `json:"amount"`
	Bidder    string    `json:"bidder"`
	Timestamp time.Time `json:"ts"`
}

// BidOutcome is the result of one resolution attempt. When Accepted is
// false, Price and Bidder carry the unchanged live state so the caller can
// tell the loser the current truth without a second round trip.
type BidOutcome struct {
	Accepted bool
	Price    float64
	Bidder   string
}

// BidUpdate is the envelope broadcast to every connected session after an
// accepted bid. It is published on the bus inside the atomic resolution
// step, so bus ordering matches acceptance order per auction.
type BidUpdate struct {
	Type      string  `json:"type"`
	AuctionID string  `json:"auctionId"`
	Price     float64 `json:"price"`
	Winner    string  `json:"winner"`
}

// UpdateTypeBid is the Type value for BidUpdate envelopes.
const UpdateTypeBid = "update_bid"
