package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/repsched/internal/day"
)

// TimeOfDay is a wall-clock time in day.Location with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a HH:MM string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hourText, minuteText, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(hourText)
	if err != nil || hour < 0 || hour > 23 || len(hourText) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil || minute < 0 || minute > 59 || len(minuteText) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant t happens on d.
func (t TimeOfDay) On(d day.Day) time.Time {
	y, m, dd := d.Time().Date()
	return time.Date(y, m, dd, t.Hour, t.Minute, 0, 0, day.Location())
}
