package workout

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

var (
	// ErrNotFound is returned when a workout, day template or session does not exist.
	ErrNotFound = errors.NewSentinel("not found")
	// ErrSessionExists is returned when a session for the same workout, day and date has already been created.
	ErrSessionExists = errors.NewSentinel("session already exists")
	// ErrDuplicateWorkout is returned when a workout with the same name exists.
	ErrDuplicateWorkout = errors.NewSentinel("workout name already in use")
	// ErrInvalidWorkout is returned for workouts that fail validation.
	ErrInvalidWorkout = errors.NewSentinel("invalid workout")
)

// baseRepository holds the database handle shared by the repositories.
type baseRepository struct {
	db *sqlite.Database
}

func newBaseRepository(db *sqlite.Database) baseRepository {
	return baseRepository{db: db}
}

// repository aggregates the repositories of the workout domain.
type repository struct {
	templates *sqliteTemplateRepository
	sessions  *sqliteSessionRepository
}

func newRepository(db *sqlite.Database) *repository {
	return &repository{
		templates: newSQLiteTemplateRepository(db),
		sessions:  newSQLiteSessionRepository(db),
	}
}

// parseDate converts a stored workout_date into a Day.
func parseDate(s string) (day.Day, error) {
	d, err := day.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("parse date: %w", err)
	}
	return d, nil
}

// formatTimestamp formats a timestamp for database storage.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

// parseTimestamp parses a nullable stored timestamp.
func parseTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil //nolint:nilnil // NULL timestamp means unset.
	}
	t, err := time.Parse(timestampFormat, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}
	return &t, nil
}
