package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/e2etest"
	"github.com/myrjola/repsched/internal/logging"
	"github.com/myrjola/repsched/internal/recurrence"
	"github.com/myrjola/repsched/internal/testhelpers"
	"github.com/myrjola/repsched/internal/workout"
)

// TestRecurringSession creates a throwaway workout with a daily rule, checks that focusing the today screen
// schedules exactly one session for it and removes everything it created.
func TestRecurringSession(ctx context.Context, client *e2etest.Client) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	name := "smoketest-" + uuid.NewString()
	var w workout.Workout
	status, err := client.JSON(ctx, http.MethodPost, "/api/workouts", map[string]any{
		"name": name,
		"days": []map[string]any{{
			"name":      "Full body",
			"exercises": []map[string]any{{"name": "Squat", "sets": 3, "reps": 5}},
		}},
	}, &w)
	if err != nil {
		return fmt.Errorf("create workout: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("create workout: unexpected status %d", status)
	}
	defer func() {
		if _, deleteErr := client.JSON(ctx, http.MethodDelete, fmt.Sprintf("/api/workouts/%d", w.ID), nil, nil); deleteErr != nil {
			err = errors.Join(err, fmt.Errorf("delete workout: %w", deleteErr))
		}
	}()

	today := day.Start(time.Now())
	status, err = client.JSON(ctx, http.MethodPost, "/api/rules", map[string]any{
		"workout_id": w.ID,
		"day_name":   "Full body",
		"start_date": today,
		"interval":   1,
	}, nil)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("create rule: unexpected status %d", status)
	}

	for range 2 {
		var result recurrence.PassResult
		if status, err = client.JSON(ctx, http.MethodPost, "/api/focus/today", nil, &result); err != nil {
			return fmt.Errorf("focus today: %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("focus today: unexpected status %d", status)
		}
	}

	var sessions []workout.Session
	if _, err = client.Get(ctx, "/api/sessions?since="+today.String(), &sessions); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	var found []workout.Session
	for _, s := range sessions {
		if s.WorkoutName == name {
			found = append(found, s)
		}
	}
	for _, s := range found {
		if _, err = client.JSON(ctx, http.MethodDelete, fmt.Sprintf("/api/sessions/%d", s.ID), nil, nil); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	if len(found) != 1 || found[0].Date != today {
		return fmt.Errorf("expected one session today for %s, got %d", name, len(found))
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		err      error
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}

	client := e2etest.NewClient(url)
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}
	if err = TestRecurringSession(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing recurring session", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
	os.Exit(0)
}
