package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// schemaChange describes how one schema object differs between the live database and the target schema.
// Exactly one of liveSQL and targetSQL is empty when the object is being created or dropped.
type schemaChange struct {
	name      string
	liveSQL   string
	targetSQL string
}

func (c schemaChange) created() bool { return c.liveSQL == "" }
func (c schemaChange) dropped() bool { return c.targetSQL == "" }

// migrateTo brings the live schema in line with schemaDefinition declaratively.
//
// The target schema is created in an attached in-memory database and diffed against the live sqlite_schema one
// object type at a time. Tables with a changed definition are rebuilt with the generalized ALTER TABLE procedure
// from https://www.sqlite.org/lang_altertable.html#otheralter, copying the columns both definitions share.
// Triggers and indexes are dropped and recreated after the tables because rebuilding a table drops them.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachTargetSchema(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach target schema: %w", err)
	}
	defer detach()

	// Foreign keys can only be toggled outside a transaction.
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		_, enableErr := db.ReadWrite.ExecContext(context.WithoutCancel(ctx), "PRAGMA foreign_keys = ON")
		if enableErr != nil {
			err = errors.Join(err, fmt.Errorf("re-enable foreign keys: %w", enableErr))
		}
	}()

	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rollbackErr))
		}
	}()

	if err = db.migrateTables(ctx, tx); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	for _, typ := range []string{"trigger", "index"} {
		if err = db.migrateObjects(ctx, tx, typ); err != nil {
			return fmt.Errorf("migrate %s: %w", typ, err)
		}
	}

	var violations int
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM pragma_foreign_key_check").Scan(&violations); err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	if violations > 0 {
		return fmt.Errorf("foreign key check: %d violations", violations)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// attachTargetSchema creates the target schema in a fresh in-memory database attached as schemaTarget.
// The returned function detaches it.
func (db *Database) attachTargetSchema(ctx context.Context, schemaDefinition string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	// The attached connection keeps the shared in-memory database alive after this pool closes.
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close target schema database",
				slog.Any("error", closeErr))
		}
	}()

	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("create target schema: %w", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", dsn); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(context.WithoutCancel(ctx),
			"DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach target schema", slog.Any("error", detachErr))
		}
	}, nil
}

// diffSchema lists the objects of the given type that differ between the live and target schema.
func diffSchema(ctx context.Context, tx *sql.Tx, typ string) ([]schemaChange, error) {
	rows, err := tx.QueryContext(ctx, `SELECT COALESCE(live.name, target.name), live.sql, target.sql
FROM (SELECT name, sql FROM main.sqlite_schema WHERE type = :type AND name NOT LIKE 'sqlite\_%' ESCAPE '\') AS live
         FULL OUTER JOIN
     (SELECT name, sql FROM schemaTarget.sqlite_schema WHERE type = :type AND name NOT LIKE 'sqlite\_%' ESCAPE '\') AS target
     ON live.name = target.name`, sql.Named("type", typ))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var changes []schemaChange
	for rows.Next() {
		var (
			name               string
			liveSQL, targetSQL sql.NullString
		)
		if err = rows.Scan(&name, &liveSQL, &targetSQL); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		// Renaming a table quotes its name in sqlite_schema.
		if strings.ReplaceAll(liveSQL.String, `"`, "") == strings.ReplaceAll(targetSQL.String, `"`, "") {
			continue
		}
		changes = append(changes, schemaChange{name: name, liveSQL: liveSQL.String, targetSQL: targetSQL.String})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return changes, nil
}

func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	changes, err := diffSchema(ctx, tx, "table")
	if err != nil {
		return err
	}
	for _, c := range changes {
		logger := db.logger.With(slog.String("table", c.name))
		switch {
		case c.dropped():
			logger.LogAttrs(ctx, slog.LevelInfo, "dropping table")
			if _, err = tx.ExecContext(ctx, "DROP TABLE "+c.name); err != nil {
				return fmt.Errorf("drop table %s: %w", c.name, err)
			}
		case c.created():
			logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", c.targetSQL))
			if _, err = tx.ExecContext(ctx, c.targetSQL); err != nil {
				return fmt.Errorf("create table %s: %w", c.name, err)
			}
		default:
			logger.LogAttrs(ctx, slog.LevelInfo, "rebuilding table",
				slog.String("live_sql", c.liveSQL), slog.String("target_sql", c.targetSQL))
			if err = rebuildTable(ctx, tx, c); err != nil {
				return fmt.Errorf("rebuild table %s: %w", c.name, err)
			}
		}
	}
	return nil
}

// rebuildTable creates the new definition under a temporary name, copies the shared columns and swaps the tables.
func rebuildTable(ctx context.Context, tx *sql.Tx, c schemaChange) error {
	tempName := c.name + "_migration_temp"
	if _, err := tx.ExecContext(ctx, strings.Replace(c.targetSQL, c.name, tempName, 1)); err != nil {
		return fmt.Errorf("create temporary table: %w", err)
	}

	columns, err := sharedColumns(ctx, tx, c.name)
	if err != nil {
		return err
	}
	if len(columns) > 0 {
		list := strings.Join(columns, ", ")
		//nolint:gosec // identifiers come from sqlite_schema.
		copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tempName, list, list, c.name)
		if _, err = tx.ExecContext(ctx, copySQL); err != nil {
			return fmt.Errorf("copy rows: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, "DROP TABLE "+c.name); err != nil {
		return fmt.Errorf("drop old table: %w", err)
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tempName, c.name)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// sharedColumns returns the quoted names of the columns present in both the live and target definition of table.
func sharedColumns(ctx context.Context, tx *sql.Tx, table string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT '"' || target.name || '"'
FROM pragma_table_info(:table) AS live
         JOIN pragma_table_info(:table, 'schemaTarget') AS target ON target.name = live.name`,
		sql.Named("table", table))
	if err != nil {
		return nil, fmt.Errorf("query shared columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var column string
		if err = rows.Scan(&column); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, column)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return columns, nil
}

// migrateObjects synchronizes triggers or indexes by dropping the live definition and creating the target one.
func (db *Database) migrateObjects(ctx context.Context, tx *sql.Tx, typ string) error {
	changes, err := diffSchema(ctx, tx, typ)
	if err != nil {
		return err
	}
	for _, c := range changes {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "migrating schema object",
			slog.String("type", typ), slog.String("name", c.name), slog.String("target_sql", c.targetSQL))
		if !c.created() {
			if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP %s %s", strings.ToUpper(typ), c.name)); err != nil {
				return fmt.Errorf("drop %s: %w", c.name, err)
			}
		}
		if !c.dropped() {
			if _, err = tx.ExecContext(ctx, c.targetSQL); err != nil {
				return fmt.Errorf("create %s: %w", c.name, err)
			}
		}
	}
	return nil
}
