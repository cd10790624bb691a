package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/recurrence"
	"github.com/myrjola/repsched/internal/workout"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(body); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "failed to write response", errors.SlogError(err))
	}
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError,
		errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func (app *application) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: msg})
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound)})
}

// domainError responds with the status matching a domain error, falling back to a server error.
func (app *application) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, workout.ErrNotFound), errors.Is(err, recurrence.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workout.ErrInvalidWorkout),
		errors.Is(err, recurrence.ErrInvalidInterval),
		errors.Is(err, recurrence.ErrInvalidWeekdays),
		errors.Is(err, recurrence.ErrInvalidNotification):
		status = http.StatusBadRequest
	case errors.Is(err, workout.ErrDuplicateWorkout),
		errors.Is(err, workout.ErrSessionExists),
		errors.Is(err, recurrence.ErrDuplicateRule),
		errors.Is(err, recurrence.ErrImmutableBinding):
		status = http.StatusConflict
	default:
		app.serverError(w, r, err)
		return
	}
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, "request rejected", errors.SlogError(err))
	app.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

// decodeJSON decodes the request body into dst and responds with 400 Bad Request on failure.
func (app *application) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		app.badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// parseIDParam parses the "id" path parameter from the request URL.
// On failure, it responds with 404 Not Found.
func (app *application) parseIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		app.notFound(w, r)
		return 0, false
	}
	return id, true
}
