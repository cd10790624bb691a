package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/logging"
)

// PassResult summarizes a scheduling pass.
type PassResult struct {
	Evaluated     int `json:"evaluated"`
	Materialized  int `json:"materialized"`
	NotDue        int `json:"not_due"`
	AlreadyExists int `json:"already_exists"`
	Failed        int `json:"failed"`
}

func (r *PassResult) record(o Outcome) {
	r.Evaluated++
	switch o {
	case OutcomeMaterialized:
		r.Materialized++
	case OutcomeNotDue:
		r.NotDue++
	case OutcomeAlreadyExists:
		r.AlreadyExists++
	case OutcomeFailed:
		r.Failed++
	}
}

// RunPass evaluates every rule once against the day of now and materializes the rules that are due.
//
// At most one session per rule is created, so catching up on several missed occurrences takes several passes.
// A failing rule is logged and counted without affecting the others. The error is non-nil only when the rules
// cannot be listed.
func (s *Service) RunPass(ctx context.Context, now time.Time) (PassResult, error) {
	return s.runPass(ctx, now, "direct")
}

func (s *Service) runPass(ctx context.Context, now time.Time, trigger string) (PassResult, error) {
	start := time.Now()
	today := day.Start(now)
	ctx = logging.WithAttrs(ctx, slog.String("pass_trigger", trigger), slog.String("today", today.String()))

	rules, err := s.rules.List(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("list rules: %w", err)
	}

	var result PassResult
	for _, rule := range rules {
		ruleCtx := logging.WithAttrs(ctx, rule.logAttrs()...)
		outcome, evalErr := s.evaluateIsolated(ruleCtx, rule, today)
		if evalErr != nil {
			s.logger.LogAttrs(ruleCtx, slog.LevelError, "failed to evaluate rule", errors.SlogError(evalErr))
		}
		result.record(outcome)
		s.metrics.observeOutcome(outcome)
	}

	elapsed := time.Since(start)
	s.metrics.observePass(trigger, elapsed)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "scheduling pass done",
		slog.Int("evaluated", result.Evaluated),
		slog.Int("materialized", result.Materialized),
		slog.Int("not_due", result.NotDue),
		slog.Int("already_exists", result.AlreadyExists),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", elapsed))
	return result, nil
}

// evaluateIsolated runs evaluate and converts a panic into a failed outcome.
func (s *Service) evaluateIsolated(ctx context.Context, rule Rule, today day.Day) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = OutcomeFailed, errors.DecoratePanic(r)
		}
	}()
	return s.evaluate(ctx, rule, today)
}

func (s *Service) evaluate(ctx context.Context, rule Rule, today day.Day) (Outcome, error) {
	last, err := s.workouts.LatestSessionDate(ctx, rule.WorkoutName, rule.DayName)
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "read history")
	}

	candidate := s.calculator.Next(ctx, rule, last, today)
	if candidate > today {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "rule not due", slog.String("candidate", candidate.String()))
		return OutcomeNotDue, nil
	}

	exists, err := s.workouts.SessionExists(ctx, rule.WorkoutName, rule.DayName, candidate)
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "check existing session", slog.String("candidate", candidate.String()))
	}
	if exists {
		return OutcomeAlreadyExists, nil
	}

	created, err := s.materialize(ctx, rule, candidate)
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "materialize", slog.String("candidate", candidate.String()))
	}
	if !created {
		return OutcomeAlreadyExists, nil
	}
	return OutcomeMaterialized, nil
}
