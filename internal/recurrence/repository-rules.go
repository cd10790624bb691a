package recurrence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/notify"
	"github.com/myrjola/repsched/internal/sqlite"
)

// sqliteRuleRepository stores rules in the recurring_workouts table.
//
// The table keeps the pattern in two columns: recurring_interval holds the interval in days and 0 means the rule
// recurs on the weekdays of the recurring_days bitmask. The translation to Pattern happens only here.
type sqliteRuleRepository struct {
	db *sqlite.Database
}

func newSQLiteRuleRepository(db *sqlite.Database) *sqliteRuleRepository {
	return &sqliteRuleRepository{db: db}
}

// ruleRow mirrors a recurring_workouts row.
type ruleRow struct {
	id                  int
	workoutID           int
	workoutName         string
	dayName             string
	startDate           string
	interval            int
	weekdays            int
	notificationEnabled bool
	notificationTime    sql.NullString
}

func encodeRule(r Rule) (ruleRow, error) {
	row := ruleRow{
		id:                  r.ID,
		workoutID:           r.WorkoutID,
		workoutName:         r.WorkoutName,
		dayName:             r.DayName,
		startDate:           r.StartDate.String(),
		interval:            0,
		weekdays:            0,
		notificationEnabled: false,
		notificationTime:    sql.NullString{String: "", Valid: false},
	}
	switch p := r.Pattern.(type) {
	case Interval:
		row.interval = p.Days
	case Weekdays:
		row.weekdays = int(p.Set)
	default:
		return ruleRow{}, fmt.Errorf("encode pattern %T: %w", r.Pattern, ErrInvalidInterval)
	}
	if r.Notification != nil {
		row.notificationEnabled = r.Notification.Enabled
		row.notificationTime = sql.NullString{String: r.Notification.Time.String(), Valid: true}
	}
	return row, nil
}

func (row ruleRow) decode() (Rule, error) {
	startDate, err := day.Parse(row.startDate)
	if err != nil {
		return Rule{}, fmt.Errorf("decode start date: %w", err)
	}
	rule := Rule{
		ID:           row.id,
		WorkoutID:    row.workoutID,
		WorkoutName:  row.workoutName,
		DayName:      row.dayName,
		StartDate:    startDate,
		Pattern:      Interval{Days: row.interval},
		Notification: nil,
	}
	if row.interval == 0 {
		rule.Pattern = Weekdays{Set: WeekdaySet(row.weekdays)}
	}
	if row.notificationTime.Valid {
		t, parseErr := notify.ParseTimeOfDay(row.notificationTime.String)
		if parseErr != nil {
			return Rule{}, fmt.Errorf("decode notification time: %w", parseErr)
		}
		rule.Notification = &NotificationSettings{Enabled: row.notificationEnabled, Time: t}
	}
	return rule, nil
}

const selectRule = `
	SELECT id, workout_id, workout_name, day_name, start_date, recurring_interval, recurring_days,
	       notification_enabled, notification_time
	FROM recurring_workouts`

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (Rule, error) {
	var row ruleRow
	if err := s.Scan(&row.id, &row.workoutID, &row.workoutName, &row.dayName, &row.startDate, &row.interval,
		&row.weekdays, &row.notificationEnabled, &row.notificationTime); err != nil {
		return Rule{}, fmt.Errorf("scan rule: %w", err)
	}
	return row.decode()
}

// Create inserts a rule and returns its id.
func (r *sqliteRuleRepository) Create(ctx context.Context, rule Rule) (int, error) {
	row, err := encodeRule(rule)
	if err != nil {
		return 0, err
	}
	var id int
	err = r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO recurring_workouts (workout_id, workout_name, day_name, start_date, recurring_interval,
		                                recurring_days, notification_enabled, notification_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		row.workoutID, row.workoutName, row.dayName, row.startDate, row.interval, row.weekdays,
		row.notificationEnabled, row.notificationTime).Scan(&id)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return 0, ErrDuplicateRule
		}
		return 0, fmt.Errorf("insert rule: %w", err)
	}
	return id, nil
}

// Get retrieves a rule by id.
func (r *sqliteRuleRepository) Get(ctx context.Context, id int) (Rule, error) {
	rule, err := scanRule(r.db.ReadOnly.QueryRowContext(ctx, selectRule+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	if err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// List retrieves all rules ordered by id.
func (r *sqliteRuleRepository) List(ctx context.Context) (_ []Rule, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, selectRule+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	rules := []Rule{}
	for rows.Next() {
		var rule Rule
		if rule, err = scanRule(rows); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// Update applies updateFn and stores the pattern and notification settings when updateFn reports a change.
// Changes to the workout binding or start date are rejected with ErrImmutableBinding.
func (r *sqliteRuleRepository) Update(
	ctx context.Context,
	id int,
	updateFn func(rule *Rule) (bool, error),
) (err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	original, err := scanRule(tx.QueryRowContext(ctx, selectRule+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	rule := original
	if original.Notification != nil {
		settings := *original.Notification
		rule.Notification = &settings
	}
	updated, err := updateFn(&rule)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if !updated {
		return nil
	}
	if rule.ID != original.ID || rule.WorkoutID != original.WorkoutID || rule.WorkoutName != original.WorkoutName ||
		rule.DayName != original.DayName || rule.StartDate != original.StartDate {
		return ErrImmutableBinding
	}

	row, err := encodeRule(rule)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE recurring_workouts
		SET recurring_interval   = ?,
		    recurring_days       = ?,
		    notification_enabled = ?,
		    notification_time    = ?
		WHERE id = ?`,
		row.interval, row.weekdays, row.notificationEnabled, row.notificationTime, id); err != nil {
		return fmt.Errorf("update rule %d: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes a rule. Sessions it created are kept.
func (r *sqliteRuleRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `DELETE FROM recurring_workouts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
