package main

import (
	"net/http"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/workout"
)

type sessionInput struct {
	WorkoutID int     `json:"workout_id"`
	DayName   string  `json:"day_name"`
	Date      day.Day `json:"date"`
}

// sessionsGET lists the sessions dated on or after the since query parameter, defaulting to today.
func (app *application) sessionsGET(w http.ResponseWriter, r *http.Request) {
	since := day.Start(time.Now())
	if s := r.URL.Query().Get("since"); s != "" {
		var err error
		if since, err = day.Parse(s); err != nil {
			app.badRequest(w, r, "invalid since parameter, expected YYYY-MM-DD")
			return
		}
	}
	sessions, err := app.workouts.ListSessions(r.Context(), since)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, sessions)
}

// sessionsPOST schedules a session manually. It shares the creation path with recurrence materialization so that a
// session for the same workout, day and date is rejected with 409 Conflict.
func (app *application) sessionsPOST(w http.ResponseWriter, r *http.Request) {
	var in sessionInput
	if !app.decodeJSON(w, r, &in) {
		return
	}
	if in.Date == 0 {
		app.badRequest(w, r, "date is required")
		return
	}
	session, err := app.workouts.ScheduleSession(r.Context(), workout.ScheduleRequest{
		WorkoutID:      in.WorkoutID,
		WorkoutName:    "",
		DayName:        in.DayName,
		Date:           in.Date,
		NotificationID: nil,
	})
	if err != nil {
		app.domainError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, session)
}

func (app *application) sessionGET(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIDParam(w, r)
	if !ok {
		return
	}
	session, err := app.workouts.GetSession(r.Context(), id)
	if err != nil {
		app.domainError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, session)
}

func (app *application) sessionCompletePOST(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIDParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := app.workouts.CompleteSession(ctx, id); err != nil {
		app.domainError(w, r, err)
		return
	}
	session, err := app.workouts.GetSession(ctx, id)
	if err != nil {
		app.domainError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, session)
}

// sessionDELETE deletes a session and cancels its pending reminder.
func (app *application) sessionDELETE(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIDParam(w, r)
	if !ok {
		return
	}
	if err := app.workouts.DeleteSession(r.Context(), id); err != nil {
		app.domainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
