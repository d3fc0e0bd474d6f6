package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuctionClosed(t *testing.T) {
	closeAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Auction{ID: "a1", CloseTime: closeAt}

	require.False(t, a.Closed(closeAt.Add(-time.Nanosecond)))
	require.True(t, a.Closed(closeAt), "the close instant itself counts as closed")
	require.True(t, a.Closed(closeAt.Add(time.Second)))
}

func TestAuctionWithStateJSON(t *testing.T) {
	aws := AuctionWithState{
		Auction: Auction{
			ID:         "a1",
			Title:      "Vintage Lamp",
			StartPrice: 50,
			CloseTime:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		LiveState: LiveState{Price: 130, Bidder: "alice"},
	}

	data, err := json.Marshal(aws)
	require.NoError(t, err)

	// Catalog and live fields flatten into one object for the listing
	// endpoint.
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "a1", got["id"])
	require.Equal(t, 50.0, got["startPrice"])
	require.Equal(t, 130.0, got["currentPrice"])
	require.Equal(t, "alice", got["lastBidder"])
}
