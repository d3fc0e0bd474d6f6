package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

// BidStore implements domain.BidArchive using PostgreSQL. It is the
// relational projection of the bid log: the archival worker batch-inserts
// here, and the cold archiver drains old rows to object storage.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a new BidStore backed by the given connection pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

// InsertBatch inserts multiple bid events efficiently using pgx Batch.
// Replayed events (same event_id) are silently skipped via ON CONFLICT DO
// NOTHING, which makes the worker's at-least-once delivery safe.
func (s *BidStore) InsertBatch(ctx context.Context, events []domain.BidEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO bids (event_id, auction_id, bidder, amount, bid_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`

	for _, e := range events {
		batch.Queue(query, e.EventID, e.AuctionID, e.Bidder, e.Amount, e.Timestamp)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert bid batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListOlderThan returns up to limit archived bids with a bid time strictly
// before cutoff, oldest first.
func (s *BidStore) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.BidEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, auction_id, bidder, amount, bid_time
		FROM bids
		WHERE bid_time < $1
		ORDER BY bid_time ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids before %v: %w", cutoff, err)
	}
	defer rows.Close()

	var events []domain.BidEvent
	for rows.Next() {
		var e domain.BidEvent
		if err := rows.Scan(&e.EventID, &e.AuctionID, &e.Bidder, &e.Amount, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan bid: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bids before %v: %w", cutoff, err)
	}
	return events, nil
}

// DeleteOlderThan removes archived bids with a bid time strictly before
// cutoff and returns the number of rows deleted.
func (s *BidStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bids WHERE bid_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete bids before %v: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.BidArchive = (*BidStore)(nil)
