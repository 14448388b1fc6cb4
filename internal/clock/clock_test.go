package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func chicago(t require.TestingT) *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func fixed(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestToday_UsesBusinessTimezone(t *testing.T) {
	// 03:30 UTC on the 15th is still the evening of the 14th in Chicago.
	c := New(chicago(t), fixed(time.Date(2026, 3, 15, 3, 30, 0, 0, time.UTC)))

	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), c.Today())
}

func TestClaimableDays(t *testing.T) {
	c := New(time.UTC, fixed(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))

	days := c.ClaimableDays(2)

	require.Len(t, days, 3)
	assert.Equal(t, "2026-01-01", FormatDay(days[0]))
	assert.Equal(t, "2025-12-31", FormatDay(days[1]))
	assert.Equal(t, "2025-12-30", FormatDay(days[2]))
}

func TestClaimableDays_NegativeBufferIsZero(t *testing.T) {
	c := New(time.UTC, fixed(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))

	assert.Len(t, c.ClaimableDays(-3), 1)
	assert.True(t, c.IsWithinWindow(c.Today(), -3))
	assert.False(t, c.IsWithinWindow(c.Today().AddDate(0, 0, -1), -3))
}

func TestIsWithinWindow_Boundaries(t *testing.T) {
	c := New(chicago(t), fixed(time.Date(2026, 6, 10, 18, 0, 0, 0, time.UTC)))
	today := c.Today()

	assert.True(t, c.IsWithinWindow(today, 1))
	assert.True(t, c.IsWithinWindow(today.AddDate(0, 0, -1), 1))
	assert.False(t, c.IsWithinWindow(today.AddDate(0, 0, -2), 1))
	assert.False(t, c.IsWithinWindow(today.AddDate(0, 0, 1), 1))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDay("28/02/2026")
	assert.Error(t, err)
}

func TestLoad_UnknownZone(t *testing.T) {
	_, err := Load("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestWindowMatchesClaimableDays(t *testing.T) {
	loc := chicago(t)
	rapid.Check(t, func(rt *rapid.T) {
		now := time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(rt, "now"), 0)
		buffer := rapid.IntRange(-2, 30).Draw(rt, "buffer")
		offset := rapid.IntRange(-40, 5).Draw(rt, "offset")

		c := New(loc, fixed(now))
		day := c.Today().AddDate(0, 0, offset)

		listed := false
		for _, d := range c.ClaimableDays(buffer) {
			if d.Equal(day) {
				listed = true
			}
		}
		if listed != c.IsWithinWindow(day, buffer) {
			rt.Fatalf("day %s buffer %d: listed=%v within=%v", FormatDay(day), buffer, listed, !listed)
		}
		if offset > 0 && c.IsWithinWindow(day, buffer) {
			rt.Fatalf("future day %s accepted", FormatDay(day))
		}
	})
}
