package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Interval
		wantErr bool
	}{
		{"1m", Interval1m, false},
		{"5m", Interval5m, false},
		{"10m", Interval10m, false},
		{" 1H ", Interval1h, false},
		{"M15", Interval15m, false},
		{"M30", Interval30m, false},
		{"H1", Interval1h, false},
		{"D1", Interval1d, false},
		{"H4", "", true},
		{"2m", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntervalDurationAndTF(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10*time.Minute, Interval10m.Duration())
	assert.Equal(t, 24*time.Hour, Interval1d.Duration())
	assert.Equal(t, time.Duration(0), Interval("bogus").Duration())

	assert.Equal(t, "M5", Interval5m.TF())
	assert.Equal(t, "H1", Interval1h.TF())
	assert.Equal(t, "D1", Interval1d.TF())

	for _, iv := range Intervals {
		assert.True(t, iv.Valid(), iv)
	}
}

func TestSecondsToTFString(t *testing.T) {
	t.Parallel()

	for _, iv := range Intervals {
		tf, err := SecondsToTFString(int32(iv.Duration() / time.Second))
		require.NoError(t, err, iv)
		sec, err := TFStringToSeconds(tf)
		require.NoError(t, err, tf)
		assert.Equal(t, iv.Duration(), time.Duration(sec)*time.Second, tf)
	}

	for _, sec := range []int32{0, -60, 90, 2 * 86400, 7 * 86400} {
		_, err := SecondsToTFString(sec)
		assert.Error(t, err, sec)
	}
}

func TestNewRange(t *testing.T) {
	t.Parallel()

	r, err := NewRange("2024-01-01", "2024-01-31", time.UTC)
	require.NoError(t, err)
	assert.True(t, r.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.End.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(r.End))

	_, err = NewRange("2024-02-01", "2024-01-01", time.UTC)
	assert.Error(t, err)
	_, err = NewRange("01/02/2024", "2024-01-01", time.UTC)
	assert.Error(t, err)
}
