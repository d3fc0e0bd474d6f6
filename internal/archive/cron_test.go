package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "daily_at_3am", expr: "0 3 * * *"},
		{name: "all_wildcards", expr: "* * * * *"},
		{name: "value_list", expr: "0,30 * 1,15 * *"},
		{name: "too_few_fields", expr: "0 3 * *", wantErr: true},
		{name: "too_many_fields", expr: "0 3 * * * *", wantErr: true},
		{name: "non_numeric_field", expr: "x 3 * * *", wantErr: true},
		{name: "empty", expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCron(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNextCronTime(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "same_day_before_trigger",
			expr:  "0 3 * * *",
			after: time.Date(2026, 3, 1, 1, 30, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC),
		},
		{
			name:  "after_trigger_rolls_to_next_day",
			expr:  "0 3 * * *",
			after: time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
		},
		{
			name:  "every_minute",
			expr:  "* * * * *",
			after: time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC),
			want:  time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC),
		},
		{
			name:  "half_hour_list",
			expr:  "0,30 * * * *",
			after: time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name:  "first_of_month",
			expr:  "0 0 1 * *",
			after: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "sunday_only",
			expr:  "0 12 * * 0",
			after: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), // a Monday
			want:  time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextCronTime(tt.expr, tt.after)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNextCronTimeInvalidExpression(t *testing.T) {
	_, err := nextCronTime("not a cron", time.Now())
	require.Error(t, err)
}
