package recurrence

import (
	"context"
	"log/slog"

	"github.com/myrjola/repsched/internal/day"
)

// ComputeNext returns the next date a session should exist for rule.
//
// Without history the first candidate is the later of the start date and now, so old rules do not back-fill.
// Interval rules advance from the latest session and may return a past-due date. Weekday rules return the first
// matching day on or after the later of the day after the latest session and now. The result is never before the
// start date.
//
// The second return value is false when the weekday scan found no matching day, which only an empty weekday set
// can cause. The candidate is then now.
func ComputeNext(rule Rule, last *day.Day, now day.Day) (day.Day, bool) {
	switch p := rule.Pattern.(type) {
	case Interval:
		if last == nil {
			return day.Max(rule.StartDate, now), true
		}
		return day.Max(rule.StartDate, last.AddDays(p.Days)), true
	case Weekdays:
		from := day.Max(rule.StartDate, now)
		if last != nil {
			from = day.Max(from, last.AddDays(1))
		}
		for i := range 7 {
			candidate := from.AddDays(i)
			if p.Set.Has(candidate.Weekday()) {
				return candidate, true
			}
		}
		return day.Max(rule.StartDate, now), false
	default:
		return day.Max(rule.StartDate, now), false
	}
}

// Calculator computes next occurrences and reports degenerate patterns.
type Calculator struct {
	logger *slog.Logger
}

// NewCalculator creates a calculator logging to logger.
func NewCalculator(logger *slog.Logger) Calculator {
	return Calculator{logger: logger}
}

// Next is ComputeNext that logs an invariant violation when the pattern cannot produce a date.
// The rule is identified by the attributes carried on ctx.
func (c Calculator) Next(ctx context.Context, rule Rule, last *day.Day, now day.Day) day.Day {
	candidate, ok := ComputeNext(rule, last, now)
	if !ok {
		c.logger.LogAttrs(ctx, slog.LevelError, "invariant violation: pattern has no matching day",
			slog.Any("pattern", rule.Pattern),
			slog.String("fallback", candidate.String()))
	}
	return candidate
}
