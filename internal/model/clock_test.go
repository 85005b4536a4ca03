package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock(" 9:05 ")
	require.NoError(t, err)
	assert.Equal(t, ClockTime(9*60+5), c)
	assert.Equal(t, "09:05", c.String())

	for _, bad := range []string{"", "24:00", "10:60", "1000", "10:5", "ab:cd", "123:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestClockJSONRoundTrip(t *testing.T) {
	var ts TimeSlot
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-06-01","start_time":"10:00","end_time":"11:30"}`), &ts))
	assert.Equal(t, Date{Year: 2025, Month: time.June, Day: 1}, ts.Date)
	assert.Equal(t, MustClock("10:00"), ts.StartTime)
	assert.Equal(t, 90, int(ts.EndTime-ts.StartTime))

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-06-01","start_time":"10:00","end_time":"11:30"}`, string(out))
}

func TestParseDateNormalizesTimestamps(t *testing.T) {
	d, err := ParseDate("2025-06-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, MustDate("2025-06-01"), d)

	_, err = ParseDate("06/01/2025")
	assert.Error(t, err)
}

func TestDayBounds(t *testing.T) {
	start, end := MustDate("2025-06-01").DayBounds(time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 1, 23, 59, 59, int(999*time.Millisecond), time.UTC), end)
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-06-01", d.String())

	require.NoError(t, d.Scan([]byte("2024-12-31")))
	assert.Equal(t, "2024-12-31", d.String())

	assert.Error(t, d.Scan(42))
}
