// Package recurrence materializes workout sessions from recurring workout rules.
//
// A scheduling pass evaluates every rule against the session history, computes the single next candidate date and
// creates the session when the candidate is due. Passes are idempotent: the session store rejects a second session
// for the same workout name, day name and date, and such a rejection counts as already materialized.
package recurrence

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/notify"
)

var (
	// ErrNotFound is returned when a rule does not exist.
	ErrNotFound = errors.NewSentinel("rule not found")
	// ErrDuplicateRule is returned when a rule for the same workout and day exists.
	ErrDuplicateRule = errors.NewSentinel("duplicate rule")
	// ErrInvalidInterval is returned for interval patterns that are not positive.
	ErrInvalidInterval = errors.NewSentinel("interval must be positive")
	// ErrInvalidWeekdays is returned for empty weekday patterns.
	ErrInvalidWeekdays = errors.NewSentinel("weekday set must not be empty")
	// ErrInvalidNotification is returned for enabled notifications without a time of day.
	ErrInvalidNotification = errors.NewSentinel("invalid notification")
	// ErrImmutableBinding is returned when an update changes the workout, day or start date of a rule.
	ErrImmutableBinding = errors.NewSentinel("workout binding of a rule cannot change")
)

// WeekdaySet is a set of weekdays with bit n set for time.Weekday(n).
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

// NewWeekdaySet creates a set of the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << d
	}
	return s
}

// Has reports whether d is in the set.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<d) != 0
}

// Days lists the weekdays in the set starting from Sunday.
func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySet) String() string {
	names := make([]string, 0, 7) //nolint:mnd // days in a week.
	for _, d := range s.Days() {
		names = append(names, d.String()[:3])
	}
	return strings.Join(names, ",")
}

// Pattern is either Interval or Weekdays.
type Pattern interface {
	validate() error
	String() string
}

// Interval recurs every Days days counted from the previous session.
type Interval struct {
	Days int
}

func (p Interval) validate() error {
	if p.Days <= 0 {
		return errors.Wrap(ErrInvalidInterval, "validate pattern", slog.Int("interval", p.Days))
	}
	return nil
}

func (p Interval) String() string {
	return "every " + strconv.Itoa(p.Days) + " days"
}

// Weekdays recurs on the days of the week in Set.
type Weekdays struct {
	Set WeekdaySet
}

func (p Weekdays) validate() error {
	if p.Set == 0 || p.Set&^allWeekdays != 0 {
		return errors.Wrap(ErrInvalidWeekdays, "validate pattern", slog.Int("weekdays", int(p.Set)))
	}
	return nil
}

func (p Weekdays) String() string {
	return "on " + p.Set.String()
}

// NotificationSettings controls the reminder requested for materialized sessions.
type NotificationSettings struct {
	Enabled bool
	Time    notify.TimeOfDay
}

// Rule is a persisted recurring workout.
//
// WorkoutName and DayName are copied from the workout when the rule is created and are matched against the names
// stored on sessions. Renaming the workout leaves them untouched.
type Rule struct {
	ID           int
	WorkoutID    int
	WorkoutName  string
	DayName      string
	StartDate    day.Day
	Pattern      Pattern
	Notification *NotificationSettings
}

// NewRule holds the user input for creating a rule.
type NewRule struct {
	WorkoutID    int
	DayName      string
	StartDate    day.Day
	Pattern      Pattern
	Notification *NotificationSettings
}

// validateSchedule checks the mutable parts of a rule.
func validateSchedule(p Pattern, n *NotificationSettings) error {
	if p == nil {
		return errors.Wrap(ErrInvalidInterval, "missing pattern")
	}
	if err := p.validate(); err != nil {
		return err
	}
	if n != nil && n.Enabled && (n.Time.Hour < 0 || n.Time.Hour > 23 || n.Time.Minute < 0 || n.Time.Minute > 59) {
		return errors.Wrap(ErrInvalidNotification, "validate notification", slog.String("time", n.Time.String()))
	}
	return nil
}

// logAttrs identifies the rule in log records.
func (r Rule) logAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("rule_id", r.ID),
		slog.String("workout_name", r.WorkoutName),
		slog.String("day_name", r.DayName),
	}
}
