package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

type fakeAuctionService struct {
	auctions []domain.AuctionWithState
	err      error
	now      time.Time
}

func (s *fakeAuctionService) ListAuctions(ctx context.Context) ([]domain.AuctionWithState, error) {
	return s.auctions, s.err
}

func (s *fakeAuctionService) ServerTime() time.Time {
	return s.now
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListAuctions(t *testing.T) {
	svc := &fakeAuctionService{
		auctions: []domain.AuctionWithState{
			{
				Auction: domain.Auction{
					ID:         "a1",
					Title:      "Vintage Lamp",
					StartPrice: 50,
					CloseTime:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				},
				LiveState: domain.LiveState{Price: 130, Bidder: "alice"},
			},
			{
				Auction: domain.Auction{
					ID:         "a2",
					Title:      "Signed Print",
					StartPrice: 75,
					CloseTime:  time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
				},
				LiveState: domain.LiveState{Price: 75},
			},
		},
	}
	h := NewAuctionHandler(svc, testLogger())

	rec := httptest.NewRecorder()
	h.ListAuctions(rec, httptest.NewRequest(http.MethodGet, "/api/auctions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "a1", got[0]["id"])
	require.Equal(t, 130.0, got[0]["currentPrice"])
	require.Equal(t, "alice", got[0]["lastBidder"])
	require.Equal(t, 75.0, got[1]["currentPrice"])
}

func TestListAuctionsStoreError(t *testing.T) {
	svc := &fakeAuctionService{err: errors.New("connection refused")}
	h := NewAuctionHandler(svc, testLogger())

	rec := httptest.NewRecorder()
	h.ListAuctions(rec, httptest.NewRequest(http.MethodGet, "/api/auctions", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "failed to fetch auctions", got["error"])
}

func TestServerTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewAuctionHandler(&fakeAuctionService{now: now}, testLogger())

	rec := httptest.NewRecorder()
	h.ServerTime(rec, httptest.NewRequest(http.MethodGet, "/api/time", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		ServerTime int64 `json:"serverTime"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, now.UnixMilli(), got.ServerTime)
}

type fakePinger struct{ err error }

func (p *fakePinger) Ping(ctx context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler(&fakePinger{}, testLogger())

		rec := httptest.NewRecorder()
		h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("degraded", func(t *testing.T) {
		h := NewHealthHandler(&fakePinger{err: errors.New("timeout")}, testLogger())

		rec := httptest.NewRecorder()
		h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Contains(t, rec.Body.String(), `"status":"degraded"`)
	})
}
