package main

import (
	"net/http"

	"github.com/myrjola/repsched/internal/workout"
)

type workoutInput struct {
	Name string                `json:"name"`
	Days []workout.DayTemplate `json:"days"`
}

func (app *application) workoutsGET(w http.ResponseWriter, r *http.Request) {
	workouts, err := app.workouts.ListWorkouts(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, workouts)
}

func (app *application) workoutsPOST(w http.ResponseWriter, r *http.Request) {
	var in workoutInput
	if !app.decodeJSON(w, r, &in) {
		return
	}
	created, err := app.workouts.CreateWorkout(r.Context(), workout.Workout{ID: 0, Name: in.Name, Days: in.Days})
	if err != nil {
		app.domainError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, created)
}

func (app *application) workoutGET(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIDParam(w, r)
	if !ok {
		return
	}
	wo, err := app.workouts.GetWorkout(r.Context(), id)
	if err != nil {
		app.domainError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, wo)
}

// workoutPUT replaces the name and day templates of a workout. Existing sessions keep their snapshots.
func (app *application) workoutPUT(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIDParam(w, r)
	if !ok {
		return
	}
	var in workoutInput
	if !app.decodeJSON(w, r, &in) {
		return
	}
	ctx := r.Context()
	if err := app.workouts.UpdateWorkout(ctx, id, func(wo *workout.Workout) (bool, error) {
		wo.Name = in.Name
		wo.Days = in.Days
		return true, nil
	}); err != nil {
		app.domainError(w, r, err)
		return
	}
	updated, err := app.workouts.GetWorkout(ctx, id)
	if err != nil {
		app.domainError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, updated)
}

func (app *application) workoutDELETE(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIDParam(w, r)
	if !ok {
		return
	}
	if err := app.workouts.DeleteWorkout(r.Context(), id); err != nil {
		app.domainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
