package recurrence_test

import (
	"testing"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/recurrence"
)

func mustDay(t *testing.T, s string) day.Day {
	t.Helper()
	d, err := day.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%s): %v", s, err)
	}
	return d
}

func TestComputeNext(t *testing.T) {
	ppl := func(start string, p recurrence.Pattern) recurrence.Rule {
		return recurrence.Rule{
			ID: 1, WorkoutID: 1, WorkoutName: "Push Pull Legs", DayName: "Push",
			StartDate: mustDay(t, start), Pattern: p, Notification: nil,
		}
	}
	mwf := recurrence.Weekdays{Set: recurrence.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday)}
	weekend := recurrence.Weekdays{Set: recurrence.NewWeekdaySet(time.Sunday, time.Saturday)}

	tests := []struct {
		name string
		rule recurrence.Rule
		last string
		now  string
		want string
	}{
		{
			name: "interval without history starts today",
			rule: ppl("2024-06-01", recurrence.Interval{Days: 2}),
			now:  "2024-06-10",
			want: "2024-06-10",
		},
		{
			name: "interval advances from history",
			rule: ppl("2024-06-01", recurrence.Interval{Days: 2}),
			last: "2024-06-10",
			now:  "2024-06-10",
			want: "2024-06-12",
		},
		{
			name: "interval may be past due",
			rule: ppl("2024-06-01", recurrence.Interval{Days: 2}),
			last: "2024-06-01",
			now:  "2024-06-10",
			want: "2024-06-03",
		},
		{
			name: "daily interval",
			rule: ppl("2024-06-01", recurrence.Interval{Days: 1}),
			last: "2024-06-09",
			now:  "2024-06-10",
			want: "2024-06-10",
		},
		{
			name: "first occurrence clamped to today for old rules",
			rule: ppl("2023-12-10", recurrence.Interval{Days: 7}),
			now:  "2024-06-10",
			want: "2024-06-10",
		},
		{
			name: "first occurrence waits for future start date",
			rule: ppl("2024-07-01", recurrence.Interval{Days: 7}),
			now:  "2024-06-10",
			want: "2024-07-01",
		},
		{
			name: "interval from history before start date is clamped",
			rule: ppl("2024-07-01", recurrence.Interval{Days: 2}),
			last: "2024-06-10",
			now:  "2024-06-10",
			want: "2024-07-01",
		},
		{
			name: "weekdays without history on a Tuesday",
			rule: ppl("2024-06-01", mwf),
			now:  "2024-06-11",
			want: "2024-06-12",
		},
		{
			name: "weekdays without history on a matching day",
			rule: ppl("2024-06-01", mwf),
			now:  "2024-06-10",
			want: "2024-06-10",
		},
		{
			name: "weekend rule after Saturday session",
			rule: ppl("2024-06-01", weekend),
			last: "2024-06-08",
			now:  "2024-06-08",
			want: "2024-06-09",
		},
		{
			name: "weekdays due today after older history",
			rule: ppl("2024-06-01", mwf),
			last: "2024-06-10",
			now:  "2024-06-12",
			want: "2024-06-12",
		},
		{
			name: "weekdays wrap into next week",
			rule: ppl("2024-06-01", mwf),
			last: "2024-06-14",
			now:  "2024-06-14",
			want: "2024-06-17",
		},
		{
			name: "weekdays with future start date",
			rule: ppl("2024-06-20", mwf),
			now:  "2024-06-10",
			want: "2024-06-21",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var last *day.Day
			if tt.last != "" {
				last = new(mustDay(t, tt.last))
			}
			got, ok := recurrence.ComputeNext(tt.rule, last, mustDay(t, tt.now))
			if !ok {
				t.Fatal("ComputeNext() reported a degenerate pattern")
			}
			if got.String() != tt.want {
				t.Errorf("ComputeNext() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestComputeNext_EmptyWeekdaysFallsBackToNow(t *testing.T) {
	rule := recurrence.Rule{
		ID: 1, WorkoutID: 1, WorkoutName: "PPL", DayName: "Push",
		StartDate: mustDay(t, "2024-06-01"), Pattern: recurrence.Weekdays{Set: 0}, Notification: nil,
	}
	now := mustDay(t, "2024-06-10")
	got, ok := recurrence.ComputeNext(rule, new(mustDay(t, "2024-06-08")), now)
	if ok {
		t.Error("expected the fallback to be reported")
	}
	if got != now {
		t.Errorf("ComputeNext() = %s, want %s", got, now)
	}
}

func TestComputeNext_NeverBeforeStartDate(t *testing.T) {
	patterns := []recurrence.Pattern{
		recurrence.Interval{Days: 1},
		recurrence.Interval{Days: 5},
		recurrence.Weekdays{Set: recurrence.NewWeekdaySet(time.Thursday)},
		recurrence.Weekdays{Set: recurrence.NewWeekdaySet(time.Sunday, time.Tuesday, time.Saturday)},
	}
	start := mustDay(t, "2024-06-15")
	for _, p := range patterns {
		for offset := -20; offset <= 20; offset += 3 {
			now := start.AddDays(offset)
			for _, last := range []*day.Day{nil, new(now.AddDays(-4)), new(start.AddDays(-10))} {
				rule := recurrence.Rule{
					ID: 1, WorkoutID: 1, WorkoutName: "PPL", DayName: "Push",
					StartDate: start, Pattern: p, Notification: nil,
				}
				if got, _ := recurrence.ComputeNext(rule, last, now); got < start {
					t.Errorf("ComputeNext(%s, now=%s) = %s before start %s", p, now, got, start)
				}
			}
		}
	}
}
