package workout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/sqlite"
)

// NotificationCanceller cancels reminders attached to deleted sessions.
type NotificationCanceller interface {
	Cancel(ctx context.Context, id string) error
}

// Service handles workout templates and sessions.
type Service struct {
	repo      *repository
	logger    *slog.Logger
	canceller NotificationCanceller
	now       func() time.Time
}

// NewService creates a new workout service. The canceller may be nil when notifications are disabled.
func NewService(db *sqlite.Database, logger *slog.Logger, canceller NotificationCanceller) *Service {
	return &Service{
		repo:      newRepository(db),
		logger:    logger,
		canceller: canceller,
		now:       time.Now,
	}
}

func validateWorkout(w Workout) error {
	if strings.TrimSpace(w.Name) == "" {
		return errors.Wrap(ErrInvalidWorkout, "empty workout name")
	}
	seen := make(map[string]bool, len(w.Days))
	for _, d := range w.Days {
		if strings.TrimSpace(d.Name) == "" {
			return errors.Wrap(ErrInvalidWorkout, "empty day name")
		}
		if seen[d.Name] {
			return errors.Wrap(ErrInvalidWorkout, "duplicate day name", slog.String("day", d.Name))
		}
		seen[d.Name] = true
		for _, e := range d.Exercises {
			if strings.TrimSpace(e.Name) == "" || e.Sets <= 0 || e.Reps <= 0 {
				return errors.Wrap(ErrInvalidWorkout, "invalid exercise",
					slog.String("day", d.Name), slog.String("exercise", e.Name))
			}
		}
	}
	return nil
}

// CreateWorkout stores a new workout with its day templates.
func (s *Service) CreateWorkout(ctx context.Context, w Workout) (Workout, error) {
	if err := validateWorkout(w); err != nil {
		return Workout{}, err
	}
	created, err := s.repo.templates.Create(ctx, w)
	if err != nil {
		return Workout{}, fmt.Errorf("create workout %s: %w", w.Name, err)
	}
	return created, nil
}

// GetWorkout retrieves a workout by id.
func (s *Service) GetWorkout(ctx context.Context, id int) (Workout, error) {
	w, err := s.repo.templates.Get(ctx, id)
	if err != nil {
		return Workout{}, fmt.Errorf("get workout %d: %w", id, err)
	}
	return w, nil
}

// ListWorkouts retrieves all workouts.
func (s *Service) ListWorkouts(ctx context.Context) ([]Workout, error) {
	workouts, err := s.repo.templates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return workouts, nil
}

// UpdateWorkout applies updateFn to the workout and validates the result before storing it.
//
// Renaming a workout or a day does not touch existing sessions or recurrence rules, which keep the names they were
// created with.
func (s *Service) UpdateWorkout(ctx context.Context, id int, updateFn func(w *Workout) (bool, error)) error {
	err := s.repo.templates.Update(ctx, id, func(w *Workout) (bool, error) {
		updated, err := updateFn(w)
		if err != nil || !updated {
			return updated, err
		}
		w.ID = id
		if err = validateWorkout(*w); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("update workout %d: %w", id, err)
	}
	return nil
}

// DeleteWorkout removes a workout and the recurrence rules bound to it. Sessions are kept.
func (s *Service) DeleteWorkout(ctx context.Context, id int) error {
	if err := s.repo.templates.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete workout %d: %w", id, err)
	}
	return nil
}

// DayExercises returns the current exercises of a day template.
func (s *Service) DayExercises(ctx context.Context, workoutID int, dayName string) ([]TemplateExercise, error) {
	exercises, err := s.repo.templates.DayExercises(ctx, workoutID, dayName)
	if err != nil {
		return nil, fmt.Errorf("day exercises %d/%s: %w", workoutID, dayName, err)
	}
	return exercises, nil
}

// ScheduleSession creates a session from a day template, snapshotting the template's exercises.
//
// Manual scheduling and recurrence materialization both go through here so that the uniqueness of
// (workout name, day name, date) is enforced in one place.
func (s *Service) ScheduleSession(ctx context.Context, req ScheduleRequest) (Session, error) {
	id, err := s.repo.sessions.Create(ctx, req)
	if err != nil {
		return Session{}, fmt.Errorf("schedule session %s %s: %w", req.DayName, req.Date, err)
	}
	session, err := s.repo.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("get scheduled session %d: %w", id, err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "scheduled session",
		slog.Int("session_id", id),
		slog.String("workout_name", session.WorkoutName),
		slog.String("day_name", session.DayName),
		slog.String("workout_date", session.Date.String()))
	return session, nil
}

// GetSession retrieves a session by id.
func (s *Service) GetSession(ctx context.Context, id int) (Session, error) {
	session, err := s.repo.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("get session %d: %w", id, err)
	}
	return session, nil
}

// ListSessions retrieves the sessions dated on or after since.
func (s *Service) ListSessions(ctx context.Context, since day.Day) ([]Session, error) {
	sessions, err := s.repo.sessions.List(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list sessions since %s: %w", since, err)
	}
	return sessions, nil
}

// CompleteSession marks a session as completed now.
func (s *Service) CompleteSession(ctx context.Context, id int) error {
	if err := s.repo.sessions.Complete(ctx, id, s.now()); err != nil {
		return fmt.Errorf("complete session %d: %w", id, err)
	}
	return nil
}

// DeleteSession removes a session and cancels its pending reminder.
//
// A failing cancellation is logged and does not fail the deletion.
func (s *Service) DeleteSession(ctx context.Context, id int) error {
	notificationID, err := s.repo.sessions.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	if notificationID == nil || s.canceller == nil {
		return nil
	}
	if err = s.canceller.Cancel(ctx, *notificationID); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to cancel notification of deleted session",
			slog.Int("session_id", id),
			slog.String("notification_id", *notificationID),
			errors.SlogError(err))
	}
	return nil
}

// LatestSessionDate returns the most recent session date for the workout and day names, or nil without history.
func (s *Service) LatestSessionDate(ctx context.Context, workoutName, dayName string) (*day.Day, error) {
	latest, err := s.repo.sessions.LatestDate(ctx, workoutName, dayName)
	if err != nil {
		return nil, fmt.Errorf("latest session date %s/%s: %w", workoutName, dayName, err)
	}
	return latest, nil
}

// SessionExists reports whether a session for the workout and day names exists on date.
func (s *Service) SessionExists(ctx context.Context, workoutName, dayName string, date day.Day) (bool, error) {
	exists, err := s.repo.sessions.Exists(ctx, workoutName, dayName, date)
	if err != nil {
		return false, fmt.Errorf("session exists %s/%s %s: %w", workoutName, dayName, date, err)
	}
	return exists, nil
}
