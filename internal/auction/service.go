// Package auction holds the bidding service: validation, the lifecycle
// guard, and the glue between the catalog, the live state, and the atomic
// bid resolver.
package auction

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

// Service coordinates bid placement and auction reads. Auction metadata is
// immutable, so the catalog is loaded once at startup and cached in memory;
// live state is never held here, only read through the cache and written
// through the resolver.
type Service struct {
	auctions domain.AuctionStore
	resolver domain.BidResolver
	live     domain.LiveStateCache
	clock    clockwork.Clock
	logger   *slog.Logger

	mu      sync.RWMutex
	catalog map[string]domain.Auction
}

// NewService creates a Service. Call LoadCatalog before serving bids.
func NewService(auctions domain.AuctionStore, resolver domain.BidResolver, live domain.LiveStateCache, clock clockwork.Clock, logger *slog.Logger) *Service {
	return &Service{
		auctions: auctions,
		resolver: resolver,
		live:     live,
		clock:    clock,
		logger:   logger.With(slog.String("component", "auction")),
		catalog:  make(map[string]domain.Auction),
	}
}

// LoadCatalog reads every auction from the durable store into the in-memory
// catalog and seeds each auction's live state with its start price. Safe to
// call again; seeding never overwrites a real bid.
func (s *Service) LoadCatalog(ctx context.Context) error {
	auctions, err := s.auctions.ListAuctions(ctx)
	if err != nil {
		return fmt.Errorf("auction: load catalog: %w", err)
	}

	catalog := make(map[string]domain.Auction, len(auctions))
	for _, a := range auctions {
		if err := s.live.Seed(ctx, a); err != nil {
			return fmt.Errorf("auction: seed %s: %w", a.ID, err)
		}
		catalog[a.ID] = a
	}

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()

	s.logger.Info("catalog loaded", slog.Int("auctions", len(catalog)))
	return nil
}

// ServerTime returns the server's own clock reading, which clients use to
// compute a local offset for synchronized countdowns.
func (s *Service) ServerTime() time.Time {
	return s.clock.Now().UTC()
}

// AcceptingBids reports whether the auction is still open on the server
// clock. The close instant itself counts as closed.
func (s *Service) AcceptingBids(a domain.Auction) bool {
	return !a.Closed(s.clock.Now())
}

// PlaceBid validates the submission, applies the lifecycle guard, and hands
// the bid to the atomic resolver. The resolver is never invoked for a
// closed auction; that ordering is the only close-time enforcement, so all
// bid paths must go through here.
//
// A rejected outcome is not an error: it carries the unchanged current
// price and bidder so the caller can inform the loser without another
// round trip.
func (s *Service) PlaceBid(ctx context.Context, auctionID string, amount float64, bidder string) (domain.BidOutcome, error) {
	if strings.TrimSpace(auctionID) == "" || strings.TrimSpace(bidder) == "" {
		return domain.BidOutcome{}, fmt.Errorf("%w: auction id and bidder are required", domain.ErrInvalidBid)
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.BidOutcome{}, fmt.Errorf("%w: amount must be a positive number", domain.ErrInvalidBid)
	}

	a, err := s.lookup(ctx, auctionID)
	if err != nil {
		return domain.BidOutcome{}, err
	}

	if !s.AcceptingBids(a) {
		return domain.BidOutcome{}, domain.ErrAuctionClosed
	}

	outcome, err := s.resolver.TryBid(ctx, a, amount, bidder, s.clock.Now().UTC())
	if err != nil {
		return domain.BidOutcome{}, err
	}

	if outcome.Accepted {
		s.logger.Info("bid accepted",
			slog.String("auction_id", auctionID),
			slog.Float64("amount", amount),
			slog.String("bidder", bidder),
		)
	}
	return outcome, nil
}

// ListAuctions returns the catalog ordered by close time ascending, merged
// with each auction's live state as of this read. Auctions that have seen
// no bids report their start price.
func (s *Service) ListAuctions(ctx context.Context) ([]domain.AuctionWithState, error) {
	auctions, err := s.auctions.ListAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("auction: list: %w", err)
	}

	ids := make([]string, len(auctions))
	for i, a := range auctions {
		ids[i] = a.ID
	}

	states, err := s.live.GetAll(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("auction: live states: %w", err)
	}

	merged := make([]domain.AuctionWithState, 0, len(auctions))
	for _, a := range auctions {
		state, ok := states[a.ID]
		if !ok {
			state = domain.LiveState{Price: a.StartPrice}
		}
		merged = append(merged, domain.AuctionWithState{Auction: a, LiveState: state})
	}
	return merged, nil
}

// lookup serves auction metadata from the in-memory catalog, falling back
// to the store for auctions created after startup.
func (s *Service) lookup(ctx context.Context, id string) (domain.Auction, error) {
	s.mu.RLock()
	a, ok := s.catalog[id]
	s.mu.RUnlock()
	if ok {
		return a, nil
	}

	a, err := s.auctions.GetAuction(ctx, id)
	if err != nil {
		return domain.Auction{}, err
	}
	if err := s.live.Seed(ctx, a); err != nil {
		return domain.Auction{}, err
	}

	s.mu.Lock()
	s.catalog[a.ID] = a
	s.mu.Unlock()
	return a, nil
}
