package main

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/e2etest"
	"github.com/myrjola/repsched/internal/recurrence"
	"github.com/myrjola/repsched/internal/testhelpers"
	"github.com/myrjola/repsched/internal/workout"
)

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "REPSCHED_SQLITE_URL":
		return ":memory:", true
	case "REPSCHED_ADDR":
		return "localhost:0", true
	case "REPSCHED_TICK_INTERVAL":
		return "", true
	default:
		return "", false
	}
}

func Test_application_recurringWorkoutFlow(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	client := server.Client()
	today := day.Start(time.Now())

	var ppl workout.Workout
	t.Run("create workout", func(t *testing.T) {
		status, err := client.JSON(ctx, http.MethodPost, "/api/workouts", workoutInput{
			Name: "Push Pull Legs",
			Days: []workout.DayTemplate{
				{Name: "Push", Exercises: []workout.TemplateExercise{{Name: "Bench Press", Sets: 3, Reps: 5}}},
				{Name: "Pull", Exercises: []workout.TemplateExercise{{Name: "Row", Sets: 3, Reps: 8}}},
			},
		}, &ppl)
		if err != nil {
			t.Fatalf("Create workout: %v", err)
		}
		if status != http.StatusCreated {
			t.Fatalf("Expected status %d, got %d", http.StatusCreated, status)
		}
		if ppl.ID == 0 || len(ppl.Days) != 2 {
			t.Errorf("Unexpected workout %+v", ppl)
		}
	})

	t.Run("reject invalid workouts", func(t *testing.T) {
		tests := []struct {
			name string
			body workoutInput
			want int
		}{
			{"duplicate name", workoutInput{Name: "Push Pull Legs", Days: nil}, http.StatusConflict},
			{"empty name", workoutInput{Name: "", Days: nil}, http.StatusBadRequest},
		}
		for _, tt := range tests {
			status, err := client.JSON(ctx, http.MethodPost, "/api/workouts", tt.body, nil)
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if status != tt.want {
				t.Errorf("%s: expected status %d, got %d", tt.name, tt.want, status)
			}
		}
	})

	var rule ruleJSON
	t.Run("create rule", func(t *testing.T) {
		status, err := client.JSON(ctx, http.MethodPost, "/api/rules", ruleInput{
			WorkoutID: ppl.ID,
			DayName:   "Push",
			StartDate: new(today.AddDays(-10)),
			scheduleJSON: scheduleJSON{
				Interval:     new(2),
				Weekdays:     nil,
				Notification: &notificationJSON{Enabled: true, Time: "23:59"},
			},
		}, &rule)
		if err != nil {
			t.Fatalf("Create rule: %v", err)
		}
		if status != http.StatusCreated {
			t.Fatalf("Expected status %d, got %d", http.StatusCreated, status)
		}
		if rule.WorkoutName != "Push Pull Legs" || rule.Interval == nil || *rule.Interval != 2 {
			t.Errorf("Unexpected rule %+v", rule)
		}
	})

	t.Run("reject invalid rules", func(t *testing.T) {
		schedule := scheduleJSON{Interval: new(1), Weekdays: nil, Notification: nil}
		tests := []struct {
			name string
			body ruleInput
			want int
		}{
			{"duplicate", ruleInput{WorkoutID: ppl.ID, DayName: "Push", StartDate: new(today), scheduleJSON: schedule},
				http.StatusConflict},
			{"zero interval", ruleInput{WorkoutID: ppl.ID, DayName: "Pull", StartDate: new(today),
				scheduleJSON: scheduleJSON{Interval: new(0), Weekdays: nil, Notification: nil}},
				http.StatusBadRequest},
			{"empty weekdays", ruleInput{WorkoutID: ppl.ID, DayName: "Pull", StartDate: new(today),
				scheduleJSON: scheduleJSON{Interval: nil, Weekdays: []string{}, Notification: nil}},
				http.StatusBadRequest},
			{"both patterns", ruleInput{WorkoutID: ppl.ID, DayName: "Pull", StartDate: new(today),
				scheduleJSON: scheduleJSON{Interval: new(1), Weekdays: []string{"monday"}, Notification: nil}},
				http.StatusBadRequest},
			{"unknown weekday", ruleInput{WorkoutID: ppl.ID, DayName: "Pull", StartDate: new(today),
				scheduleJSON: scheduleJSON{Interval: nil, Weekdays: []string{"someday"}, Notification: nil}},
				http.StatusBadRequest},
			{"unknown workout", ruleInput{WorkoutID: ppl.ID + 100, DayName: "Pull", StartDate: new(today),
				scheduleJSON: schedule}, http.StatusNotFound},
			{"unknown day", ruleInput{WorkoutID: ppl.ID, DayName: "Legs", StartDate: new(today), scheduleJSON: schedule},
				http.StatusNotFound},
		}
		for _, tt := range tests {
			status, err := client.JSON(ctx, http.MethodPost, "/api/rules", tt.body, nil)
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if status != tt.want {
				t.Errorf("%s: expected status %d, got %d", tt.name, tt.want, status)
			}
		}
	})

	t.Run("focus materializes due session once", func(t *testing.T) {
		var first, second recurrence.PassResult
		if _, err := client.JSON(ctx, http.MethodPost, "/api/focus/today", nil, &first); err != nil {
			t.Fatalf("Focus: %v", err)
		}
		if _, err := client.JSON(ctx, http.MethodPost, "/api/focus/sessions", nil, &second); err != nil {
			t.Fatalf("Focus: %v", err)
		}
		if diff := cmp.Diff(recurrence.PassResult{Evaluated: 1, Materialized: 1}, first); diff != "" {
			t.Errorf("First pass mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(recurrence.PassResult{Evaluated: 1, NotDue: 1}, second); diff != "" {
			t.Errorf("Second pass mismatch (-want +got):\n%s", diff)
		}

		status, err := client.JSON(ctx, http.MethodPost, "/api/focus/settings", nil, nil)
		if err != nil {
			t.Fatalf("Focus: %v", err)
		}
		if status != http.StatusNotFound {
			t.Errorf("Expected status %d for unknown screen, got %d", http.StatusNotFound, status)
		}
	})

	var session workout.Session
	t.Run("list sessions", func(t *testing.T) {
		var sessions []workout.Session
		if _, err := client.Get(ctx, "/api/sessions?since="+today.String(), &sessions); err != nil {
			t.Fatalf("List sessions: %v", err)
		}
		if len(sessions) != 1 {
			t.Fatalf("Expected 1 session, got %d", len(sessions))
		}
		session = sessions[0]
		if session.Date != today || session.DayName != "Push" || session.WorkoutName != "Push Pull Legs" {
			t.Errorf("Unexpected session %+v", session)
		}
		want := []workout.LoggedExercise{{Name: "Bench Press", TargetSets: 3, TargetReps: 5}}
		if diff := cmp.Diff(want, session.Exercises); diff != "" {
			t.Errorf("Exercise snapshot mismatch (-want +got):\n%s", diff)
		}

		status, err := client.Get(ctx, "/api/sessions?since=yesterday", nil)
		if err != nil {
			t.Fatalf("List sessions: %v", err)
		}
		if status != http.StatusBadRequest {
			t.Errorf("Expected status %d for invalid since, got %d", http.StatusBadRequest, status)
		}
	})

	t.Run("reminder is pending for the session", func(t *testing.T) {
		if session.NotificationID == nil {
			t.Skip("reminder time already passed today")
		}
		var pending []notificationResponse
		if _, err := client.Get(ctx, "/api/notifications", &pending); err != nil {
			t.Fatalf("List notifications: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != *session.NotificationID {
			t.Errorf("Expected pending reminder %s, got %+v", *session.NotificationID, pending)
		}
	})

	t.Run("manual scheduling conflicts with materialized session", func(t *testing.T) {
		status, err := client.JSON(ctx, http.MethodPost, "/api/sessions",
			sessionInput{WorkoutID: ppl.ID, DayName: "Push", Date: today}, nil)
		if err != nil {
			t.Fatalf("Schedule session: %v", err)
		}
		if status != http.StatusConflict {
			t.Errorf("Expected status %d, got %d", http.StatusConflict, status)
		}
	})

	t.Run("update rule", func(t *testing.T) {
		var updated ruleJSON
		status, err := client.JSON(ctx, http.MethodPut, "/api/rules/"+strconv.Itoa(rule.ID), ruleInput{
			WorkoutID: 0,
			DayName:   "",
			StartDate: nil,
			scheduleJSON: scheduleJSON{
				Interval:     nil,
				Weekdays:     []string{"monday", "thu"},
				Notification: nil,
			},
		}, &updated)
		if err != nil {
			t.Fatalf("Update rule: %v", err)
		}
		if status != http.StatusOK {
			t.Fatalf("Expected status %d, got %d", http.StatusOK, status)
		}
		if diff := cmp.Diff([]string{"monday", "thursday"}, updated.Weekdays); diff != "" {
			t.Errorf("Weekdays mismatch (-want +got):\n%s", diff)
		}
		if updated.Interval != nil || updated.Notification != nil {
			t.Errorf("Unexpected rule %+v", updated)
		}

		status, err = client.JSON(ctx, http.MethodPut, "/api/rules/"+strconv.Itoa(rule.ID), ruleInput{
			WorkoutID:    0,
			DayName:      "Pull",
			StartDate:    nil,
			scheduleJSON: scheduleJSON{Interval: new(3), Weekdays: nil, Notification: nil},
		}, nil)
		if err != nil {
			t.Fatalf("Update rule: %v", err)
		}
		if status != http.StatusConflict {
			t.Errorf("Expected status %d when changing the day, got %d", http.StatusConflict, status)
		}
	})

	t.Run("complete session", func(t *testing.T) {
		var completed workout.Session
		status, err := client.JSON(ctx, http.MethodPost, "/api/sessions/"+strconv.Itoa(session.ID)+"/complete", nil, &completed)
		if err != nil {
			t.Fatalf("Complete session: %v", err)
		}
		if status != http.StatusOK || completed.CompletedAt == nil {
			t.Errorf("Expected completed session, got status %d and %+v", status, completed)
		}
	})

	t.Run("delete rule keeps sessions", func(t *testing.T) {
		status, err := client.JSON(ctx, http.MethodDelete, "/api/rules/"+strconv.Itoa(rule.ID), nil, nil)
		if err != nil {
			t.Fatalf("Delete rule: %v", err)
		}
		if status != http.StatusNoContent {
			t.Fatalf("Expected status %d, got %d", http.StatusNoContent, status)
		}
		if status, err = client.Get(ctx, "/api/rules/"+strconv.Itoa(rule.ID), nil); err != nil || status != http.StatusNotFound {
			t.Errorf("Expected deleted rule to be gone, got status %d: %v", status, err)
		}
		if status, err = client.Get(ctx, "/api/sessions/"+strconv.Itoa(session.ID), nil); err != nil || status != http.StatusOK {
			t.Errorf("Expected session to survive, got status %d: %v", status, err)
		}
	})

	t.Run("delete session cancels reminder", func(t *testing.T) {
		status, err := client.JSON(ctx, http.MethodDelete, "/api/sessions/"+strconv.Itoa(session.ID), nil, nil)
		if err != nil {
			t.Fatalf("Delete session: %v", err)
		}
		if status != http.StatusNoContent {
			t.Fatalf("Expected status %d, got %d", http.StatusNoContent, status)
		}
		var pending []notificationResponse
		if _, err = client.Get(ctx, "/api/notifications", &pending); err != nil {
			t.Fatalf("List notifications: %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("Expected no pending reminders, got %+v", pending)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := client.Do(ctx, http.MethodGet, "/metrics", nil)
		if err != nil {
			t.Fatalf("Get metrics: %v", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("Read metrics: %v", err)
		}
		for _, want := range []string{
			`repsched_scheduling_passes_total{trigger="today"} 1`,
			`repsched_scheduling_passes_total{trigger="launch"} 1`,
			`repsched_rule_evaluations_total{outcome="materialized"} 1`,
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("Expected metrics to contain %q", want)
			}
		}
	})
}

func Test_application_notFound(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	client := server.Client()

	for _, path := range []string{"/api/workouts/999", "/api/rules/999", "/api/sessions/999", "/api/rules/not-a-number"} {
		var body errorResponse
		status, err := client.Get(ctx, path, &body)
		if err != nil {
			t.Fatalf("Get %s: %v", path, err)
		}
		if status != http.StatusNotFound {
			t.Errorf("Get %s: expected status %d, got %d", path, http.StatusNotFound, status)
		}
		if body.Error == "" {
			t.Errorf("Get %s: expected an error message", path)
		}
	}
}

func Test_application_gracefulShutdown(t *testing.T) {
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	server.Shutdown()
	if err = server.Err(); err != nil {
		t.Errorf("Expected run to return cleanly on shutdown, got %v", err)
	}
	if _, err = server.Client().Get(context.Background(), "/api/healthy", nil); err == nil {
		t.Error("Expected requests to fail after shutdown")
	}
}
