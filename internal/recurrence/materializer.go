package recurrence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/notify"
	"github.com/myrjola/repsched/internal/workout"
)

// materialize creates the session of rule on date together with its exercise snapshot.
//
// It reports false without error when the session already exists, which happens when another pass or a manual
// scheduling won the race after the existence check. A reminder requested for a session that was not created is
// cancelled again.
func (s *Service) materialize(ctx context.Context, rule Rule, date day.Day) (bool, error) {
	if _, err := s.workouts.DayExercises(ctx, rule.WorkoutID, rule.DayName); err != nil {
		return false, fmt.Errorf("read day template: %w", err)
	}

	notificationID := s.requestNotification(ctx, rule, date)

	session, err := s.workouts.ScheduleSession(ctx, workout.ScheduleRequest{
		WorkoutID:      rule.WorkoutID,
		WorkoutName:    rule.WorkoutName,
		DayName:        rule.DayName,
		Date:           date,
		NotificationID: notificationID,
	})
	if err != nil {
		s.cancelNotification(ctx, notificationID)
		if errors.Is(err, workout.ErrSessionExists) {
			return false, nil
		}
		return false, fmt.Errorf("schedule session: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "materialized session",
		slog.Int("session_id", session.ID),
		slog.String("workout_date", date.String()),
		slog.Bool("notification", notificationID != nil))
	return true, nil
}

type scheduleResult struct {
	id  string
	err error
}

// requestNotification asks the notifier for a reminder and returns its id, or nil when reminders are disabled or
// the request failed. The request is bounded by Config.NotificationTimeout even if the notifier ignores ctx.
func (s *Service) requestNotification(ctx context.Context, rule Rule, date day.Day) *string {
	if s.notifier == nil || rule.Notification == nil || !rule.Notification.Enabled {
		return nil
	}

	req := notify.Request{
		WorkoutName: rule.WorkoutName,
		DayName:     rule.DayName,
		Date:        date,
		At:          rule.Notification.Time,
	}
	notifyCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.NotificationTimeout > 0 {
		notifyCtx, cancel = context.WithTimeout(ctx, s.cfg.NotificationTimeout)
	}
	defer cancel()

	results := make(chan scheduleResult, 1)
	go func() {
		id, err := s.notifier.Schedule(notifyCtx, req)
		results <- scheduleResult{id: id, err: err}
	}()

	var res scheduleResult
	select {
	case res = <-results:
	case <-notifyCtx.Done():
		// A reminder granted after we gave up would never be attached to a session.
		go func() {
			if late := <-results; late.err == nil {
				s.cancelNotification(context.WithoutCancel(ctx), &late.id)
			}
		}()
		res = scheduleResult{id: "", err: notifyCtx.Err()}
	}

	if errors.Is(res.err, notify.ErrTriggerInPast) {
		// Catch-up occurrences and sessions created after their reminder time land here routinely.
		s.logger.LogAttrs(ctx, slog.LevelDebug, "reminder time already passed, creating session without reminder",
			slog.String("workout_date", date.String()))
		return nil
	}
	if res.err != nil {
		s.metrics.observeNotificationFailure()
		s.logger.LogAttrs(ctx, slog.LevelWarn, "notification request failed, creating session without reminder",
			slog.String("workout_date", date.String()),
			errors.SlogError(res.err))
		return nil
	}
	return &res.id
}

func (s *Service) cancelNotification(ctx context.Context, id *string) {
	if id == nil || s.notifier == nil {
		return
	}
	if err := s.notifier.Cancel(ctx, *id); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to cancel notification",
			slog.String("notification_id", *id),
			errors.SlogError(err))
	}
}
