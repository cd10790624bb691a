package workout

import (
	"time"

	"github.com/myrjola/repsched/internal/day"
)

// TemplateExercise is a planned exercise within a day template.
type TemplateExercise struct {
	Name string `json:"name"`
	Sets int    `json:"sets"`
	Reps int    `json:"reps"`
}

// DayTemplate is one named day of a workout program, e.g. "Push" of a push/pull/legs split.
type DayTemplate struct {
	Name      string             `json:"name"`
	Exercises []TemplateExercise `json:"exercises"`
}

// Workout is a user-defined program consisting of ordered day templates.
type Workout struct {
	ID   int           `json:"id"`
	Name string        `json:"name"`
	Days []DayTemplate `json:"days"`
}

// Day returns the day template with the given name.
func (w Workout) Day(name string) (DayTemplate, bool) {
	for _, d := range w.Days {
		if d.Name == name {
			return d, true
		}
	}
	return DayTemplate{}, false
}

// LoggedExercise is the snapshot of a template exercise taken when a session is created.
type LoggedExercise struct {
	Name       string `json:"name"`
	TargetSets int    `json:"target_sets"`
	TargetReps int    `json:"target_reps"`
}

// Session is a concrete, dated workout occurrence.
//
// WorkoutName and DayName are copies taken at creation time so that renaming the template does not rewrite history.
type Session struct {
	ID             int              `json:"id"`
	WorkoutName    string           `json:"workout_name"`
	DayName        string           `json:"day_name"`
	Date           day.Day          `json:"date"`
	NotificationID *string          `json:"notification_id"`
	CompletedAt    *time.Time       `json:"completed_at"`
	Exercises      []LoggedExercise `json:"exercises"`
}

// ScheduleRequest describes a session to create from a day template.
type ScheduleRequest struct {
	WorkoutID int
	// WorkoutName is stored on the session. Empty means the workout's current name.
	WorkoutName    string
	DayName        string
	Date           day.Day
	NotificationID *string
}
