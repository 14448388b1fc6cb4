// Package clock answers "what day is it" in the business timezone and
// decides which days are inside a claim window.
//
// Days are time.Time values at 00:00 UTC carrying the calendar date,
// the same shape lib/pq returns for a DATE column, so they compare with ==.
package clock

import (
	"fmt"
	"time"

	"github.com/JaggerBean/FitCollector/internal/model"
)

// DefaultTimezone is the business timezone every day boundary is computed in.
const DefaultTimezone = "America/Chicago"

type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Clock for loc. A nil now uses time.Now.
func New(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

// Load resolves an IANA timezone name into a Clock running on the wall clock.
func Load(name string) (*Clock, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc, nil), nil
}

func (c *Clock) Location() *time.Location { return c.loc }

func (c *Clock) Now() time.Time { return c.now() }

// Today is the calendar date in the business timezone.
func (c *Clock) Today() time.Time {
	return DayOf(c.now().In(c.loc))
}

// ClaimableDays returns today and the bufferDays days before it, newest first.
func (c *Clock) ClaimableDays(bufferDays int) []time.Time {
	if bufferDays < 0 {
		bufferDays = 0
	}
	today := c.Today()
	days := make([]time.Time, 0, bufferDays+1)
	for i := 0; i <= bufferDays; i++ {
		days = append(days, today.AddDate(0, 0, -i))
	}
	return days
}

// IsWithinWindow reports today-bufferDays <= day <= today.
func (c *Clock) IsWithinWindow(day time.Time, bufferDays int) bool {
	if bufferDays < 0 {
		bufferDays = 0
	}
	day = DayOf(day)
	today := c.Today()
	earliest := today.AddDate(0, 0, -bufferDays)
	return !day.Before(earliest) && !day.After(today)
}

// IsFuture reports whether day is after today.
func (c *Clock) IsFuture(day time.Time) bool {
	return DayOf(day).After(c.Today())
}

// DayOf drops the clock part of t, keeping the calendar date as seen in t's location.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses YYYY-MM-DD.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return d, nil
}

func FormatDay(d time.Time) string {
	return d.Format(model.DateLayout)
}
