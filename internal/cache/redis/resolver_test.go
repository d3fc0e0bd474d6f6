package redis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

func TestParseBidReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   interface{}
		want    domain.BidOutcome
		wantErr bool
	}{
		{
			name:  "accepted",
			reply: []interface{}{int64(1), "120.5", "alice"},
			want:  domain.BidOutcome{Accepted: true, Price: 120.5, Bidder: "alice"},
		},
		{
			name:  "rejected_with_current_state",
			reply: []interface{}{int64(0), "150", "bob"},
			want:  domain.BidOutcome{Accepted: false, Price: 150, Bidder: "bob"},
		},
		{
			name:  "rejected_before_any_bid",
			reply: []interface{}{int64(0), "50", ""},
			want:  domain.BidOutcome{Accepted: false, Price: 50, Bidder: ""},
		},
		{
			name:    "not_an_array",
			reply:   "OK",
			wantErr: true,
		},
		{
			name:    "wrong_length",
			reply:   []interface{}{int64(1), "120"},
			wantErr: true,
		},
		{
			name:    "non_numeric_price",
			reply:   []interface{}{int64(1), "a lot", "alice"},
			wantErr: true,
		},
		{
			name:    "flag_not_integer",
			reply:   []interface{}{"1", "120", "alice"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBidReply(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLiveKey(t *testing.T) {
	require.Equal(t, "auction:a1:live", liveKey("a1"))
}
