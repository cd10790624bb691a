package day_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/myrjola/repsched/internal/day"
)

func TestStart(t *testing.T) {
	loc := day.Location()
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{name: "midnight", in: time.Date(2024, 6, 10, 0, 0, 0, 0, loc), want: "2024-06-10"},
		{name: "late evening", in: time.Date(2024, 6, 10, 23, 59, 59, 0, loc), want: "2024-06-10"},
		{name: "leap day", in: time.Date(2024, 2, 29, 12, 0, 0, 0, loc), want: "2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := day.Start(tt.in)
			if got.String() != tt.want {
				t.Errorf("Start() = %s, want %s", got, tt.want)
			}
			if h, m, s := got.Time().Clock(); h != 0 || m != 0 || s != 0 {
				t.Errorf("Start() is not midnight: %s", got.Time())
			}
		})
	}
}

func TestWeekday(t *testing.T) {
	tests := []struct {
		date string
		want time.Weekday
	}{
		{"2024-06-09", time.Sunday},
		{"2024-06-10", time.Monday},
		{"2024-06-11", time.Tuesday},
		{"2024-06-15", time.Saturday},
	}
	for _, tt := range tests {
		d, err := day.Parse(tt.date)
		if err != nil {
			t.Fatalf("Parse(%s): %v", tt.date, err)
		}
		if got := d.Weekday(); got != tt.want {
			t.Errorf("%s Weekday() = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestAddDays(t *testing.T) {
	start := day.Date(2024, time.February, 27)
	tests := []struct {
		n    int
		want string
	}{
		{0, "2024-02-27"},
		{2, "2024-02-29"},
		{3, "2024-03-01"},
		{-27, "2024-01-31"},
		{366, "2025-02-27"},
	}
	for _, tt := range tests {
		if got := start.AddDays(tt.n).String(); got != tt.want {
			t.Errorf("AddDays(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := day.Parse("10.06.2024"); err == nil {
		t.Error("expected error for non ISO date")
	}
}

func TestMax(t *testing.T) {
	a := day.Date(2024, time.June, 1)
	b := day.Date(2024, time.June, 10)
	if got := day.Max(a, b); got != b {
		t.Errorf("Max() = %s, want %s", got, b)
	}
	if got := day.Max(b, a); got != b {
		t.Errorf("Max() = %s, want %s", got, b)
	}
}

func TestDay_JSON(t *testing.T) {
	type payload struct {
		Date day.Day `json:"date"`
	}
	in := payload{Date: day.Date(2024, time.June, 10)}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(b), `{"date":"2024-06-10"}`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
	var out payload
	if err = json.Unmarshal([]byte(`{"date":"2024-13-01"}`), &out); err == nil {
		t.Error("expected error for invalid month")
	}
}
