package service

import (
	"testing"
	"time"

	"github.com/JaggerBean/FitCollector/internal/clock"
)

var chicago = mustLoad("America/Chicago")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// fixedClock pins "now" to 2026-03-10 12:00 in Chicago unless at is given.
func fixedClock(t *testing.T, at ...time.Time) *clock.Clock {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, chicago)
	if len(at) > 0 {
		now = at[0]
	}
	return clock.New(chicago, func() time.Time { return now })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }
