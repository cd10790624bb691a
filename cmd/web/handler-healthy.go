package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/myrjola/repsched/internal/day"
)

type healthResponse struct {
	Status   string  `json:"status"`
	Today    day.Day `json:"today"`
	Location string  `json:"location"`
}

// healthy reports that the server is up together with the calendar day it schedules against.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:   "ok",
		Today:    day.Start(time.Now()),
		Location: day.Location().String(),
	})
}

type sleepResponse struct {
	Status  string `json:"status"`
	SleptMS int    `json:"slept_ms"`
}

// testTimeout sleeps for the sleep_ms query parameter before responding. It exercises the request timeout.
func (app *application) testTimeout(w http.ResponseWriter, r *http.Request) {
	sleepMS := 0
	if s := r.URL.Query().Get("sleep_ms"); s != "" {
		var err error
		if sleepMS, err = strconv.Atoi(s); err != nil || sleepMS < 0 {
			app.badRequest(w, r, "invalid sleep_ms parameter")
			return
		}
	}
	if sleepMS > 0 {
		time.Sleep(time.Duration(sleepMS) * time.Millisecond)
	}
	app.writeJSON(w, r, http.StatusOK, sleepResponse{Status: "completed", SleptMS: sleepMS})
}
