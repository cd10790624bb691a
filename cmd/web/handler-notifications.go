package main

import (
	"net/http"
	"time"
)

type notificationResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	WorkoutName string    `json:"workout_name"`
	DayName     string    `json:"day_name"`
	FireAt      time.Time `json:"fire_at"`
}

// notificationsGET lists the reminders that have not fired yet.
func (app *application) notificationsGET(w http.ResponseWriter, r *http.Request) {
	pending := app.notifier.Pending()
	out := make([]notificationResponse, 0, len(pending))
	for _, n := range pending {
		out = append(out, notificationResponse{
			ID:          n.ID,
			Title:       n.Request.Title(),
			Body:        n.Request.Body(),
			WorkoutName: n.Request.WorkoutName,
			DayName:     n.Request.DayName,
			FireAt:      n.FireAt,
		})
	}
	app.writeJSON(w, r, http.StatusOK, out)
}
