package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/myrjola/repsched/internal/sqlite"
)

// sqliteTemplateRepository stores workouts with their day templates.
type sqliteTemplateRepository struct {
	baseRepository
}

func newSQLiteTemplateRepository(db *sqlite.Database) *sqliteTemplateRepository {
	return &sqliteTemplateRepository{
		baseRepository: newBaseRepository(db),
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Create inserts a workout with its days and returns the stored workout.
func (r *sqliteTemplateRepository) Create(ctx context.Context, w Workout) (_ Workout, err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return Workout{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	if err = tx.QueryRowContext(ctx, `INSERT INTO workouts (name) VALUES (?) RETURNING id`, w.Name).
		Scan(&w.ID); err != nil {
		if sqlite.IsUniqueViolation(err) {
			return Workout{}, ErrDuplicateWorkout
		}
		return Workout{}, fmt.Errorf("insert workout: %w", err)
	}
	if err = insertDays(ctx, tx, w.ID, w.Days); err != nil {
		return Workout{}, err
	}

	if err = tx.Commit(); err != nil {
		return Workout{}, fmt.Errorf("commit transaction: %w", err)
	}
	return w, nil
}

func insertDays(ctx context.Context, tx *sql.Tx, workoutID int, days []DayTemplate) error {
	for position, d := range days {
		var dayID int
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO workout_days (workout_id, position, name)
			VALUES (?, ?, ?)
			RETURNING id`, workoutID, position, d.Name).Scan(&dayID); err != nil {
			return fmt.Errorf("insert day %s: %w", d.Name, err)
		}
		for i, e := range d.Exercises {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO day_exercises (day_id, position, name, sets, reps)
				VALUES (?, ?, ?, ?, ?)`, dayID, i, e.Name, e.Sets, e.Reps); err != nil {
				return fmt.Errorf("insert exercise %s: %w", e.Name, err)
			}
		}
	}
	return nil
}

// Get retrieves a workout by id.
func (r *sqliteTemplateRepository) Get(ctx context.Context, id int) (Workout, error) {
	w := Workout{ID: id, Name: "", Days: nil}
	err := r.db.ReadOnly.QueryRowContext(ctx, `SELECT name FROM workouts WHERE id = ?`, id).Scan(&w.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Workout{}, ErrNotFound
	}
	if err != nil {
		return Workout{}, fmt.Errorf("query workout %d: %w", id, err)
	}
	if w.Days, err = r.loadDays(ctx, r.db.ReadOnly, id); err != nil {
		return Workout{}, err
	}
	return w, nil
}

// List retrieves all workouts ordered by name.
func (r *sqliteTemplateRepository) List(ctx context.Context) (_ []Workout, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `SELECT id, name FROM workouts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query workouts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var workouts []Workout
	for rows.Next() {
		var w Workout
		if err = rows.Scan(&w.ID, &w.Name); err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workouts: %w", err)
	}

	for i := range workouts {
		if workouts[i].Days, err = r.loadDays(ctx, r.db.ReadOnly, workouts[i].ID); err != nil {
			return nil, err
		}
	}
	return workouts, nil
}

// loadDays loads the ordered day templates with their exercises.
func (r *sqliteTemplateRepository) loadDays(ctx context.Context, q querier, workoutID int) (_ []DayTemplate, err error) {
	rows, err := q.QueryContext(ctx, `
		SELECT d.name, e.name, e.sets, e.reps
		FROM workout_days d
		LEFT JOIN day_exercises e ON e.day_id = d.id
		WHERE d.workout_id = ?
		ORDER BY d.position, e.position`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	days := []DayTemplate{}
	for rows.Next() {
		var (
			dayName      string
			exerciseName sql.NullString
			sets, reps   sql.NullInt64
		)
		if err = rows.Scan(&dayName, &exerciseName, &sets, &reps); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		if len(days) == 0 || days[len(days)-1].Name != dayName {
			days = append(days, DayTemplate{Name: dayName, Exercises: []TemplateExercise{}})
		}
		if exerciseName.Valid {
			current := &days[len(days)-1]
			current.Exercises = append(current.Exercises, TemplateExercise{
				Name: exerciseName.String,
				Sets: int(sets.Int64),
				Reps: int(reps.Int64),
			})
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate days: %w", err)
	}
	return days, nil
}

// DayExercises returns the exercises of the named day of a workout.
func (r *sqliteTemplateRepository) DayExercises(
	ctx context.Context,
	workoutID int,
	dayName string,
) (_ []TemplateExercise, err error) {
	var dayID int
	err = r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id FROM workout_days WHERE workout_id = ? AND name = ?`, workoutID, dayName).Scan(&dayID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query day %s: %w", dayName, err)
	}

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT name, sets, reps FROM day_exercises WHERE day_id = ? ORDER BY position`, dayID)
	if err != nil {
		return nil, fmt.Errorf("query day exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	exercises := []TemplateExercise{}
	for rows.Next() {
		var e TemplateExercise
		if err = rows.Scan(&e.Name, &e.Sets, &e.Reps); err != nil {
			return nil, fmt.Errorf("scan day exercise: %w", err)
		}
		exercises = append(exercises, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day exercises: %w", err)
	}
	return exercises, nil
}

// Update applies updateFn to the workout and stores the result when updateFn reports a change.
//
// The days are replaced wholesale. Sessions are unaffected because they hold their own exercise snapshot.
func (r *sqliteTemplateRepository) Update(
	ctx context.Context,
	id int,
	updateFn func(w *Workout) (bool, error),
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

	w := Workout{ID: id, Name: "", Days: nil}
	err = tx.QueryRowContext(ctx, `SELECT name FROM workouts WHERE id = ?`, id).Scan(&w.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query workout %d: %w", id, err)
	}
	if w.Days, err = r.loadDays(ctx, tx, id); err != nil {
		return err
	}

	updated, err := updateFn(&w)
	if err != nil {
		return fmt.Errorf("update workout: %w", err)
	}
	if !updated {
		return nil
	}

	if _, err = tx.ExecContext(ctx, `UPDATE workouts SET name = ? WHERE id = ?`, w.Name, id); err != nil {
		if sqlite.IsUniqueViolation(err) {
			return ErrDuplicateWorkout
		}
		return fmt.Errorf("update workout name: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM workout_days WHERE workout_id = ?`, id); err != nil {
		return fmt.Errorf("delete days: %w", err)
	}
	if err = insertDays(ctx, tx, id, w.Days); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes a workout together with its day templates and recurrence rules.
func (r *sqliteTemplateRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workout %d: %w", id, err)
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
