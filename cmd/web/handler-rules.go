package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/notify"
	"github.com/myrjola/repsched/internal/recurrence"
)

// notificationJSON is the wire form of recurrence.NotificationSettings with the time as HH:MM.
type notificationJSON struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"`
}

// scheduleJSON holds the mutable part of a rule. Exactly one of Interval and Weekdays is set.
type scheduleJSON struct {
	Interval     *int              `json:"interval,omitempty"`
	Weekdays     []string          `json:"weekdays,omitempty"`
	Notification *notificationJSON `json:"notification,omitempty"`
}

type ruleJSON struct {
	ID          int     `json:"id"`
	WorkoutID   int     `json:"workout_id"`
	WorkoutName string  `json:"workout_name"`
	DayName     string  `json:"day_name"`
	StartDate   day.Day `json:"start_date"`
	scheduleJSON
}

type ruleInput struct {
	WorkoutID int      `json:"workout_id,omitempty"`
	DayName   string   `json:"day_name,omitempty"`
	StartDate *day.Day `json:"start_date,omitempty"`
	scheduleJSON
}

func weekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

func parseWeekday(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) || strings.EqualFold(s, d.String()[:3]) {
			return d, true
		}
	}
	return 0, false
}

func newRuleJSON(rule recurrence.Rule) ruleJSON {
	out := ruleJSON{
		ID:          rule.ID,
		WorkoutID:   rule.WorkoutID,
		WorkoutName: rule.WorkoutName,
		DayName:     rule.DayName,
		StartDate:   rule.StartDate,
		scheduleJSON: scheduleJSON{
			Interval:     nil,
			Weekdays:     nil,
			Notification: nil,
		},
	}
	switch p := rule.Pattern.(type) {
	case recurrence.Interval:
		days := p.Days
		out.Interval = &days
	case recurrence.Weekdays:
		for _, d := range p.Set.Days() {
			out.Weekdays = append(out.Weekdays, weekdayName(d))
		}
	}
	if rule.Notification != nil {
		out.Notification = &notificationJSON{
			Enabled: rule.Notification.Enabled,
			Time:    rule.Notification.Time.String(),
		}
	}
	return out
}

// decode converts the wire schedule into a pattern and notification settings. Range checks happen in the service.
func (s scheduleJSON) decode() (recurrence.Pattern, *recurrence.NotificationSettings, error) {
	var pattern recurrence.Pattern
	switch {
	case s.Interval != nil && s.Weekdays != nil:
		return nil, nil, errors.New("set either interval or weekdays, not both")
	case s.Interval != nil:
		pattern = recurrence.Interval{Days: *s.Interval}
	case s.Weekdays != nil:
		days := make([]time.Weekday, 0, len(s.Weekdays))
		for _, name := range s.Weekdays {
			d, ok := parseWeekday(name)
			if !ok {
				return nil, nil, fmt.Errorf("unknown weekday %q", name)
			}
			days = append(days, d)
		}
		pattern = recurrence.Weekdays{Set: recurrence.NewWeekdaySet(days...)}
	default:
		return nil, nil, errors.New("interval or weekdays is required")
	}

	if s.Notification == nil {
		return pattern, nil, nil
	}
	settings := &recurrence.NotificationSettings{Enabled: s.Notification.Enabled, Time: notify.TimeOfDay{}}
	if s.Notification.Time != "" || s.Notification.Enabled {
		t, err := notify.ParseTimeOfDay(s.Notification.Time)
		if err != nil {
			return nil, nil, fmt.Errorf("notification time: %w", err)
		}
		settings.Time = t
	}
	return pattern, settings, nil
}

func (app *application) rulesGET(w http.ResponseWriter, r *http.Request) {
	rules, err := app.recurrence.ListRules(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	out := make([]ruleJSON, 0, len(rules))
	for _, rule := range rules {
		out = append(out, newRuleJSON(rule))
	}
	app.writeJSON(w, r, http.StatusOK, out)
}

func (app *application) rulesPOST(w http.ResponseWriter, r *http.Request) {
	var in ruleInput
	if !app.decodeJSON(w, r, &in) {
		return
	}
	pattern, notification, err := in.decode()
	if err != nil {
		app.badRequest(w, r, err.Error())
		return
	}
	startDate := day.Start(time.Now())
	if in.StartDate != nil {
		startDate = *in.StartDate
	}
	rule, err := app.recurrence.CreateRule(r.Context(), recurrence.NewRule{
		WorkoutID:    in.WorkoutID,
		DayName:      in.DayName,
		StartDate:    startDate,
		Pattern:      pattern,
		Notification: notification,
	})
	if err != nil {
		app.domainError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, newRuleJSON(rule))
}

func (app *application) ruleGET(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIDParam(w, r)
	if !ok {
		return
	}
	rule, err := app.recurrence.GetRule(r.Context(), id)
	if err != nil {
		app.domainError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newRuleJSON(rule))
}

// rulePUT changes the pattern and notification settings of a rule. The workout binding fields are optional and must
// match the stored rule when given.
func (app *application) rulePUT(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIDParam(w, r)
	if !ok {
		return
	}
	var in ruleInput
	if !app.decodeJSON(w, r, &in) {
		return
	}
	pattern, notification, err := in.decode()
	if err != nil {
		app.badRequest(w, r, err.Error())
		return
	}
	ctx := r.Context()
	if err = app.recurrence.UpdateRule(ctx, id, func(rule *recurrence.Rule) (bool, error) {
		if in.WorkoutID != 0 {
			rule.WorkoutID = in.WorkoutID
		}
		if in.DayName != "" {
			rule.DayName = in.DayName
		}
		if in.StartDate != nil {
			rule.StartDate = *in.StartDate
		}
		rule.Pattern = pattern
		rule.Notification = notification
		return true, nil
	}); err != nil {
		app.domainError(w, r, err)
		return
	}
	rule, err := app.recurrence.GetRule(ctx, id)
	if err != nil {
		app.domainError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newRuleJSON(rule))
}

// ruleDELETE deletes a rule. Sessions it created are kept.
func (app *application) ruleDELETE(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIDParam(w, r)
	if !ok {
		return
	}
	if err := app.recurrence.DeleteRule(r.Context(), id); err != nil {
		app.domainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
