package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/e2etest"
	"github.com/myrjola/repsched/internal/logging"
	"github.com/myrjola/repsched/internal/recurrence"
	"github.com/myrjola/repsched/internal/testhelpers"
	"github.com/myrjola/repsched/internal/workout"
	"golang.org/x/sync/errgroup"
)

const (
	setupTimeout            = 30 * time.Second
	scenarioTimeout         = 30 * time.Second
	historyTimeout          = 5 * time.Minute
	maxConcurrentSetups     = 10
	maxConcurrentOperations = 20
	scenariosPerWorkout     = 5
	successRateThreshold    = 95.0
	expectedArgsCount       = 2
	percentageMultiplier    = 100
	workoutHistoryWeeks     = 26 // 6 months of weekly sessions
	daysPerWeek             = 7
	dayName                 = "Full body"
)

var focusScreens = []string{"today", "calendar", "sessions", "rules"} //nolint:gochecknoglobals // fixed test input.

// SetupWorkouts creates numWorkouts uniquely named workouts, each bound to a daily rule starting today.
func SetupWorkouts(
	ctx context.Context,
	client *e2etest.Client,
	numWorkouts int,
	logger *slog.Logger,
) ([]workout.Workout, error) {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting workout setup", slog.Int("num_workouts", numWorkouts))

	workouts := make([]workout.Workout, numWorkouts)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSetups)
	today := day.Start(time.Now())
	for i := range numWorkouts {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, setupTimeout)
			defer cancel()

			var w workout.Workout
			status, err := client.JSON(ctx, http.MethodPost, "/api/workouts", map[string]any{
				"name": fmt.Sprintf("stresstest-%d-%s", i, uuid.NewString()),
				"days": []map[string]any{{
					"name":      dayName,
					"exercises": []map[string]any{{"name": "Deadlift", "sets": 3, "reps": 5}},
				}},
			}, &w)
			if err != nil {
				return fmt.Errorf("create workout %d: %w", i, err)
			}
			if status != http.StatusCreated {
				return fmt.Errorf("create workout %d: unexpected status %d", i, status)
			}
			workouts[i] = w

			status, err = client.JSON(ctx, http.MethodPost, "/api/rules", map[string]any{
				"workout_id":   w.ID,
				"day_name":     dayName,
				"start_date":   today,
				"interval":     1,
				"notification": map[string]any{"enabled": true, "time": "23:59"},
			}, nil)
			if err != nil {
				return fmt.Errorf("create rule for workout %d: %w", i, err)
			}
			if status != http.StatusCreated {
				return fmt.Errorf("create rule for workout %d: unexpected status %d", i, status)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("setup workouts: %w", err)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "All workouts created", slog.Int("total_workouts", numWorkouts))
	return workouts, nil
}

// GenerateSessionHistory schedules and completes weekly sessions for the past six months of a workout.
func GenerateSessionHistory(ctx context.Context, client *e2etest.Client, w workout.Workout) error {
	today := day.Start(time.Now())
	for week := workoutHistoryWeeks; week > 0; week-- {
		var session workout.Session
		status, err := client.JSON(ctx, http.MethodPost, "/api/sessions", map[string]any{
			"workout_id": w.ID,
			"day_name":   dayName,
			"date":       today.AddDays(-week * daysPerWeek),
		}, &session)
		if err != nil {
			return fmt.Errorf("schedule session: %w", err)
		}
		if status != http.StatusCreated {
			return fmt.Errorf("schedule session: unexpected status %d", status)
		}
		path := fmt.Sprintf("/api/sessions/%d/complete", session.ID)
		if status, err = client.JSON(ctx, http.MethodPost, path, nil, nil); err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("complete session: unexpected status %d", status)
		}
	}
	return nil
}

// GenerateSessionHistoryForAll generates session history for all workouts concurrently.
func GenerateSessionHistoryForAll(
	ctx context.Context,
	client *e2etest.Client,
	workouts []workout.Workout,
	logger *slog.Logger,
) error {
	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	var failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSetups)
	for _, w := range workouts {
		g.Go(func() error {
			if err := GenerateSessionHistory(ctx, client, w); err != nil {
				failed.Add(1)
				logger.LogAttrs(ctx, slog.LevelWarn, "Failed to generate session history",
					slog.Int("workout_id", w.ID), slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("history generation failed for %d workouts", n)
	}
	return nil
}

// FocusScenario simulates a user switching screens: every switch triggers a scheduling pass while the client
// reads sessions and rules.
func FocusScenario(ctx context.Context, client *e2etest.Client, i int) error {
	screen := focusScreens[i%len(focusScreens)]
	var result recurrence.PassResult
	status, err := client.JSON(ctx, http.MethodPost, "/api/focus/"+screen, nil, &result)
	if err != nil {
		return fmt.Errorf("focus %s: %w", screen, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("focus %s: unexpected status %d", screen, status)
	}
	if result.Failed > 0 {
		return fmt.Errorf("focus %s: %d rules failed", screen, result.Failed)
	}

	var sessions []workout.Session
	if _, err = client.Get(ctx, "/api/sessions", &sessions); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	var rules []map[string]any
	if _, err = client.Get(ctx, "/api/rules", &rules); err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	return nil
}

// RunLoadTest fires focus scenarios concurrently so that many scheduling passes race against each other.
func RunLoadTest(ctx context.Context, client *e2etest.Client, numScenarios int, logger *slog.Logger) error {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting load test", slog.Int("num_scenarios", numScenarios))

	var successCount, failureCount atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)
	for i := range numScenarios {
		g.Go(func() error {
			scenarioCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
			defer cancel()

			if err := FocusScenario(scenarioCtx, client, i); err != nil {
				failureCount.Add(1)
				logger.LogAttrs(scenarioCtx, slog.LevelWarn, "Scenario failed",
					slog.Int("scenario", i), slog.Any("error", err))
				return nil
			}
			successCount.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load test failed: %w", err)
	}

	successRate := float64(successCount.Load()) / float64(numScenarios) * percentageMultiplier
	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed",
		slog.Int64("successful", successCount.Load()),
		slog.Int64("failed", failureCount.Load()),
		slog.Float64("success_rate", successRate))
	if successRate < successRateThreshold {
		return fmt.Errorf("load test failed: success rate %.1f%% below threshold", successRate)
	}
	return nil
}

// VerifyNoDuplicates checks that the racing passes scheduled exactly one session today for every workout.
func VerifyNoDuplicates(ctx context.Context, client *e2etest.Client, workouts []workout.Workout) error {
	today := day.Start(time.Now())
	var sessions []workout.Session
	if _, err := client.Get(ctx, "/api/sessions?since="+today.String(), &sessions); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	counts := make(map[string]int, len(workouts))
	for _, s := range sessions {
		if s.Date == today {
			counts[s.WorkoutName]++
		}
	}
	var errs []error
	for _, w := range workouts {
		if n := counts[w.Name]; n != 1 {
			errs = append(errs, fmt.Errorf("workout %s has %d sessions today, want 1", w.Name, n))
		}
	}
	return errors.Join(errs...)
}

// Cleanup deletes the created workouts together with their rules and the sessions dated today.
func Cleanup(ctx context.Context, client *e2etest.Client, workouts []workout.Workout) error {
	var sessions []workout.Session
	if _, err := client.Get(ctx, "/api/sessions?since="+day.Start(time.Now()).String(), &sessions); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	names := make(map[string]bool, len(workouts))
	for _, w := range workouts {
		names[w.Name] = true
	}
	var errs []error
	for _, s := range sessions {
		if names[s.WorkoutName] {
			if _, err := client.JSON(ctx, http.MethodDelete, fmt.Sprintf("/api/sessions/%d", s.ID), nil, nil); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, w := range workouts {
		if _, err := client.JSON(ctx, http.MethodDelete, fmt.Sprintf("/api/workouts/%d", w.ID), nil, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname>")
		os.Exit(1)
	}

	var (
		hostname    = os.Args[1]
		numWorkouts = 10
		start       = time.Now()
	)

	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}
	client := e2etest.NewClient(url)

	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}

	setupStart := time.Now()
	workouts, err := SetupWorkouts(ctx, client, numWorkouts, logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to setup workouts", slog.Any("error", err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Workout setup completed",
		slog.Duration("setup_duration", time.Since(setupStart)))

	historyStart := time.Now()
	if err = GenerateSessionHistoryForAll(ctx, client, workouts, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "some session history generation failed, continuing with load test",
			slog.Any("error", err))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Session history generation completed",
		slog.Duration("history_duration", time.Since(historyStart)),
		slog.Int("weeks_per_workout", workoutHistoryWeeks))

	loadTestStart := time.Now()
	exitCode := 0
	if err = RunLoadTest(ctx, client, numWorkouts*scenariosPerWorkout, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "load test failed", slog.Any("error", err))
		exitCode = 1
	} else if err = VerifyNoDuplicates(ctx, client, workouts); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "duplicate sessions scheduled", slog.Any("error", err))
		exitCode = 1
	}
	if err = Cleanup(ctx, client, workouts); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "cleanup failed", slog.Any("error", err))
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed successfully 🙌",
		slog.Duration("total_duration", time.Since(start)),
		slog.Duration("load_test_duration", time.Since(loadTestStart)))
}
