package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrAuctionNotFound       = errors.New("auction not found")
	ErrAuctionClosed         = errors.New("auction closed")
	ErrInvalidBid            = errors.New("invalid bid")
	ErrResolutionUnavailable = errors.New("bid resolution unavailable")
)
