package sqlite

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/repsched/internal/testhelpers"
)

const rulesV1 = `CREATE TABLE rules
(
    id         INTEGER PRIMARY KEY,
    day_name   TEXT    NOT NULL,
    start_date INTEGER NOT NULL
) STRICT;`

func newMigrationTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := connect(":memory:", testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return db
}

func TestDatabase_migrateTo(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		schemas  []string
		query    string
		queryErr bool
	}{
		{
			name:     "create table",
			schemas:  []string{rulesV1},
			query:    "INSERT INTO rules (day_name, start_date) VALUES ('Push', 1)",
			queryErr: false,
		},
		{
			name:     "drop table",
			schemas:  []string{rulesV1, ""},
			query:    "SELECT * FROM rules",
			queryErr: true,
		},
		{
			name: "add column",
			schemas: []string{rulesV1, `CREATE TABLE rules
(
    id            INTEGER PRIMARY KEY,
    day_name      TEXT    NOT NULL,
    start_date    INTEGER NOT NULL,
    interval_days INTEGER
) STRICT;`},
			query:    "INSERT INTO rules (day_name, start_date, interval_days) VALUES ('Push', 1, 2)",
			queryErr: false,
		},
		{
			name: "remove column",
			schemas: []string{`CREATE TABLE rules
(
    id         INTEGER PRIMARY KEY,
    day_name   TEXT    NOT NULL,
    start_date INTEGER NOT NULL,
    weekdays   INTEGER
) STRICT;`, rulesV1},
			query:    "SELECT weekdays FROM rules",
			queryErr: true,
		},
		{
			name:     "create unique index",
			schemas:  []string{rulesV1 + "CREATE UNIQUE INDEX rules_day_name ON rules (day_name);"},
			query:    "INSERT INTO rules (day_name, start_date) VALUES ('Push', 1), ('Push', 2)",
			queryErr: true,
		},
		{
			name:     "drop unique index",
			schemas:  []string{rulesV1 + "CREATE UNIQUE INDEX rules_day_name ON rules (day_name);", rulesV1},
			query:    "INSERT INTO rules (day_name, start_date) VALUES ('Push', 1), ('Push', 2)",
			queryErr: false,
		},
		{
			name: "replace trigger",
			schemas: []string{
				rulesV1 + `CREATE TRIGGER rules_guard BEFORE INSERT ON rules BEGIN SELECT RAISE(FAIL, 'blocked'); END;`,
				rulesV1 + `CREATE TRIGGER rules_guard BEFORE INSERT ON rules BEGIN SELECT 1; END;`,
			},
			query:    "INSERT INTO rules (day_name, start_date) VALUES ('Push', 1)",
			queryErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()
			db := newMigrationTestDB(t)
			for _, schema := range tt.schemas {
				if err := db.migrateTo(ctx, schema); err != nil {
					t.Fatalf("migrateTo: %v", err)
				}
			}
			_, err := db.ReadWrite.ExecContext(ctx, tt.query)
			if tt.queryErr && err == nil {
				t.Errorf("expected %q to fail", tt.query)
			}
			if !tt.queryErr && err != nil {
				t.Errorf("%q: %v", tt.query, err)
			}
		})
	}
}

func TestDatabase_migrateTo_keepsRows(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db := newMigrationTestDB(t)
	if err := db.migrateTo(ctx, rulesV1); err != nil {
		t.Fatalf("migrateTo v1: %v", err)
	}
	if _, err := db.ReadWrite.ExecContext(ctx,
		"INSERT INTO rules (day_name, start_date) VALUES ('Push', 10), ('Pull', 20)"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	v2 := `CREATE TABLE rules
(
    id         INTEGER PRIMARY KEY,
    day_name   TEXT    NOT NULL,
    start_date INTEGER NOT NULL,
    enabled    INTEGER NOT NULL DEFAULT 1
) STRICT;`
	if err := db.migrateTo(ctx, v2); err != nil {
		t.Fatalf("migrateTo v2: %v", err)
	}
	// Migrating to an unchanged schema is a no-op.
	if err := db.migrateTo(ctx, v2); err != nil {
		t.Fatalf("migrateTo v2 again: %v", err)
	}

	type row struct {
		DayName   string
		StartDate int
		Enabled   int
	}
	rows, err := db.ReadWrite.QueryContext(ctx, "SELECT day_name, start_date, enabled FROM rules ORDER BY id")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	var got []row
	for rows.Next() {
		var r row
		if err = rows.Scan(&r.DayName, &r.StartDate, &r.Enabled); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, r)
	}
	if err = rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	want := []row{{"Push", 10, 1}, {"Pull", 20, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}
