package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCursor(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    HistoryCursor
		wantErr error
	}{
		{name: "empty means from the start", raw: "", want: HistoryCursor{}},
		{name: "blank means from the start", raw: "   ", want: HistoryCursor{}},
		{name: "message id", raw: "42", want: HistoryCursor{AfterID: 42}},
		{
			name: "wire timestamp",
			raw:  "2024-05-01 10:00:00.123456",
			want: HistoryCursor{AfterTime: time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)},
		},
		{
			name: "whole second wire timestamp",
			raw:  "2024-05-01 10:00:00",
			want: HistoryCursor{AfterTime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		},
		{
			name: "rfc3339 with zone is converted to utc",
			raw:  "2024-05-01T13:30:00+03:30",
			want: HistoryCursor{AfterTime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		},
		{name: "garbage", raw: "yesterday", wantErr: ErrInvalidCursor},
		{name: "negative id", raw: "-1", wantErr: ErrInvalidCursor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCursor(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.AfterID, got.AfterID)
			assert.True(t, tt.want.AfterTime.Equal(got.AfterTime), "got %v", got.AfterTime)
			assert.Equal(t, tt.want.IsZero(), got.IsZero())
		})
	}
}

func TestParseCursor_FormatWireTimeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 987654321, time.UTC).Truncate(time.Microsecond)
	got, err := ParseCursor(FormatWireTime(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(got.AfterTime), "got %v", got.AfterTime)
}
