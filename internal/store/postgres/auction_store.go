package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

// AuctionStore implements domain.AuctionStore using PostgreSQL. The catalog
// is written by external tooling; this store only reads it.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given connection
// pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

const auctionSelectCols = `id, title, start_price, close_time, COALESCE(image_url, '')`

// GetAuction returns a single auction by its ID. It returns
// domain.ErrAuctionNotFound when no row matches.
func (s *AuctionStore) GetAuction(ctx context.Context, id string) (domain.Auction, error) {
	var a domain.Auction
	err := s.pool.QueryRow(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.StartPrice, &a.CloseTime, &a.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrAuctionNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: get auction %s: %w", id, err)
	}
	return a, nil
}

// ListAuctions returns the full catalog ordered by close time ascending,
// which is the order the listing endpoint serves.
func (s *AuctionStore) ListAuctions(ctx context.Context) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions ORDER BY close_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []domain.Auction
	for rows.Next() {
		var a domain.Auction
		if err := rows.Scan(&a.ID, &a.Title, &a.StartPrice, &a.CloseTime, &a.ImageURL); err != nil {
			return nil, fmt.Errorf("postgres: scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list auctions: %w", err)
	}
	return auctions, nil
}

// Compile-time interface check.
var _ domain.AuctionStore = (*AuctionStore)(nil)
