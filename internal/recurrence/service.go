package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/notify"
	"github.com/myrjola/repsched/internal/sqlite"
	"github.com/myrjola/repsched/internal/workout"
)

// Workouts is the workout template and session store used by the scheduler.
type Workouts interface {
	GetWorkout(ctx context.Context, id int) (workout.Workout, error)
	DayExercises(ctx context.Context, workoutID int, dayName string) ([]workout.TemplateExercise, error)
	LatestSessionDate(ctx context.Context, workoutName, dayName string) (*day.Day, error)
	SessionExists(ctx context.Context, workoutName, dayName string, date day.Day) (bool, error)
	ScheduleSession(ctx context.Context, req workout.ScheduleRequest) (workout.Session, error)
}

// Notifier schedules best-effort session reminders.
type Notifier interface {
	Schedule(ctx context.Context, req notify.Request) (string, error)
	Cancel(ctx context.Context, id string) error
}

// Config tunes the scheduler.
type Config struct {
	// NotificationTimeout bounds each notification request. Zero disables the bound.
	NotificationTimeout time.Duration
}

// Service manages recurrence rules and runs scheduling passes.
type Service struct {
	rules      *sqliteRuleRepository
	workouts   Workouts
	notifier   Notifier
	calculator Calculator
	metrics    *Metrics
	logger     *slog.Logger
	cfg        Config
}

// NewService creates a recurrence service. notifier and metrics may be nil.
func NewService(
	db *sqlite.Database,
	logger *slog.Logger,
	workouts Workouts,
	notifier Notifier,
	metrics *Metrics,
	cfg Config,
) *Service {
	return &Service{
		rules:      newSQLiteRuleRepository(db),
		workouts:   workouts,
		notifier:   notifier,
		calculator: NewCalculator(logger),
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// CreateRule validates and stores a new rule bound to an existing workout day.
func (s *Service) CreateRule(ctx context.Context, nr NewRule) (Rule, error) {
	if err := validateSchedule(nr.Pattern, nr.Notification); err != nil {
		return Rule{}, err
	}
	w, err := s.workouts.GetWorkout(ctx, nr.WorkoutID)
	if err != nil {
		return Rule{}, fmt.Errorf("get workout %d: %w", nr.WorkoutID, err)
	}
	if _, ok := w.Day(nr.DayName); !ok {
		return Rule{}, errors.Wrap(workout.ErrNotFound, "get day template",
			slog.Int("workout_id", nr.WorkoutID), slog.String("day_name", nr.DayName))
	}

	rule := Rule{
		ID:           0,
		WorkoutID:    w.ID,
		WorkoutName:  w.Name,
		DayName:      nr.DayName,
		StartDate:    nr.StartDate,
		Pattern:      nr.Pattern,
		Notification: nr.Notification,
	}
	if rule.ID, err = s.rules.Create(ctx, rule); err != nil {
		return Rule{}, fmt.Errorf("create rule: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "created rule",
		append(rule.logAttrs(), slog.String("pattern", rule.Pattern.String()))...)
	return rule, nil
}

// GetRule retrieves a rule by id.
func (s *Service) GetRule(ctx context.Context, id int) (Rule, error) {
	rule, err := s.rules.Get(ctx, id)
	if err != nil {
		return Rule{}, fmt.Errorf("get rule %d: %w", id, err)
	}
	return rule, nil
}

// ListRules retrieves all rules.
func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// UpdateRule applies updateFn to a rule. Only the pattern and notification settings may change, and existing
// sessions are left as they are. The next pass anchors the new pattern on the latest existing session.
func (s *Service) UpdateRule(ctx context.Context, id int, updateFn func(rule *Rule) (bool, error)) error {
	err := s.rules.Update(ctx, id, func(rule *Rule) (bool, error) {
		updated, err := updateFn(rule)
		if err != nil || !updated {
			return updated, err
		}
		if err = validateSchedule(rule.Pattern, rule.Notification); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("update rule %d: %w", id, err)
	}
	return nil
}

// DeleteRule removes a rule. Sessions it created are kept.
func (s *Service) DeleteRule(ctx context.Context, id int) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	return nil
}
