package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/sqlite"
)

// sqliteSessionRepository stores materialized workout sessions.
type sqliteSessionRepository struct {
	baseRepository
}

func newSQLiteSessionRepository(db *sqlite.Database) *sqliteSessionRepository {
	return &sqliteSessionRepository{
		baseRepository: newBaseRepository(db),
	}
}

// Create inserts a session and snapshots the exercises of its day template in the same transaction.
//
// ErrNotFound is returned when the day template does not exist and ErrSessionExists when a session for the same
// workout name, day name and date has already been stored.
func (r *sqliteSessionRepository) Create(ctx context.Context, req ScheduleRequest) (_ int, err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	var (
		dayID       int
		workoutName string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT d.id, w.name
		FROM workout_days d
		JOIN workouts w ON w.id = d.workout_id
		WHERE d.workout_id = ? AND d.name = ?`, req.WorkoutID, req.DayName).Scan(&dayID, &workoutName)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("day template %s: %w", req.DayName, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query day template: %w", err)
	}
	if req.WorkoutName != "" {
		workoutName = req.WorkoutName
	}

	var sessionID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO workout_sessions (workout_name, day_name, workout_date, notification_id)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		workoutName, req.DayName, req.Date.String(), req.NotificationID).Scan(&sessionID)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return 0, ErrSessionExists
		}
		return 0, fmt.Errorf("insert session: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO logged_exercises (session_id, position, name, target_sets, target_reps)
		SELECT ?, position, name, sets, reps
		FROM day_exercises
		WHERE day_id = ?`, sessionID, dayID); err != nil {
		return 0, fmt.Errorf("snapshot exercises: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return sessionID, nil
}

// Get retrieves a session by id.
func (r *sqliteSessionRepository) Get(ctx context.Context, id int) (Session, error) {
	row := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, workout_name, day_name, workout_date, notification_id, completed_at
		FROM workout_sessions
		WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if session.Exercises, err = r.loadExercises(ctx, id); err != nil {
		return Session{}, err
	}
	return session, nil
}

// List retrieves the sessions dated on or after since, ordered by date.
func (r *sqliteSessionRepository) List(ctx context.Context, since day.Day) (_ []Session, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, workout_name, day_name, workout_date, notification_id, completed_at
		FROM workout_sessions
		WHERE workout_date >= ?
		ORDER BY workout_date, id`, since.String())
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	sessions := []Session{}
	for rows.Next() {
		var session Session
		if session, err = scanSession(rows); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	for i := range sessions {
		if sessions[i].Exercises, err = r.loadExercises(ctx, sessions[i].ID); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		session     Session
		dateStr     string
		completedAt sql.NullString
	)
	if err := row.Scan(&session.ID, &session.WorkoutName, &session.DayName, &dateStr,
		&session.NotificationID, &completedAt); err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	var err error
	if session.Date, err = parseDate(dateStr); err != nil {
		return Session{}, err
	}
	if session.CompletedAt, err = parseTimestamp(completedAt); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (r *sqliteSessionRepository) loadExercises(ctx context.Context, sessionID int) (_ []LoggedExercise, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT name, target_sets, target_reps
		FROM logged_exercises
		WHERE session_id = ?
		ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query logged exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	exercises := []LoggedExercise{}
	for rows.Next() {
		var e LoggedExercise
		if err = rows.Scan(&e.Name, &e.TargetSets, &e.TargetReps); err != nil {
			return nil, fmt.Errorf("scan logged exercise: %w", err)
		}
		exercises = append(exercises, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logged exercises: %w", err)
	}
	return exercises, nil
}

// LatestDate returns the most recent session date for the workout and day names, or nil without history.
func (r *sqliteSessionRepository) LatestDate(ctx context.Context, workoutName, dayName string) (*day.Day, error) {
	var latest sql.NullString
	if err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT MAX(workout_date)
		FROM workout_sessions
		WHERE workout_name = ? AND day_name = ?`, workoutName, dayName).Scan(&latest); err != nil {
		return nil, fmt.Errorf("query latest session date: %w", err)
	}
	if !latest.Valid {
		return nil, nil //nolint:nilnil // no history.
	}
	d, err := parseDate(latest.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Exists reports whether a session for the workout and day names is stored on date.
func (r *sqliteSessionRepository) Exists(ctx context.Context, workoutName, dayName string, date day.Day) (bool, error) {
	var exists bool
	if err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM workout_sessions
			WHERE workout_name = ? AND day_name = ? AND workout_date = ?
		)`, workoutName, dayName, date.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("query session existence: %w", err)
	}
	return exists, nil
}

// Complete marks a session completed at the given time. Completing an already completed session keeps the original
// completion time.
func (r *sqliteSessionRepository) Complete(ctx context.Context, id int, at time.Time) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE workout_sessions
		SET completed_at = COALESCE(completed_at, ?)
		WHERE id = ?`, formatTimestamp(at), id)
	if err != nil {
		return fmt.Errorf("complete session %d: %w", id, err)
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

// Delete removes a session and returns its notification id.
func (r *sqliteSessionRepository) Delete(ctx context.Context, id int) (*string, error) {
	var notificationID *string
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		DELETE FROM workout_sessions WHERE id = ? RETURNING notification_id`, id).Scan(&notificationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete session %d: %w", id, err)
	}
	return notificationID, nil
}
