// Package day works with calendar days as seconds-since-epoch timestamps of local midnight.
//
// Local time is time.Local unless overridden with SetLocation at startup. DST transitions are handled the way
// [time.Time.AddDate] handles them and are not compensated for otherwise.
package day

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Layout is the textual representation used for storage and the HTTP API.
const Layout = time.DateOnly

// Day is the Unix timestamp of a local midnight.
type Day int64

//nolint:gochecknoglobals // the process-wide notion of "local time" for day boundaries.
var location atomic.Pointer[time.Location]

// SetLocation changes the location used for day boundaries. Call it before any Day is computed.
func SetLocation(loc *time.Location) {
	location.Store(loc)
}

// Location returns the location used for day boundaries.
func Location() *time.Location {
	if loc := location.Load(); loc != nil {
		return loc
	}
	return time.Local
}

// Start truncates t to midnight of its calendar day in local time.
func Start(t time.Time) Day {
	loc := Location()
	y, m, d := t.In(loc).Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, loc).Unix())
}

// Date returns the Day for the given calendar date.
func Date(year int, month time.Month, dayOfMonth int) Day {
	return Day(time.Date(year, month, dayOfMonth, 0, 0, 0, 0, Location()).Unix())
}

// Parse parses a date in Layout format.
func Parse(s string) (Day, error) {
	t, err := time.ParseInLocation(Layout, s, Location())
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Start(t), nil
}

// Time returns the local midnight as time.Time.
func (d Day) Time() time.Time {
	return time.Unix(int64(d), 0).In(Location())
}

// Weekday returns the day of the week, Sunday being 0.
func (d Day) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays moves d by n calendar days.
func (d Day) AddDays(n int) Day {
	return Start(d.Time().AddDate(0, 0, n))
}

// String formats d in Layout.
func (d Day) String() string {
	return d.Time().Format(Layout)
}

// Max returns the later of a and b.
func Max(a, b Day) Day {
	if a > b {
		return a
	}
	return b
}

// MarshalText encodes d in Layout.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a date in Layout.
func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
