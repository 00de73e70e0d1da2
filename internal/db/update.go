package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpdateConfig defines the parameters for a bulk keyed update.
type UpdateConfig struct {
	Table     string   // target table (e.g., "activeCo" or "registry.activeCo")
	KeyColumn string   // column identifying the row to update
	Columns   []string // columns to overwrite; rows carry the key first, then these
}

// BulkUpdate overwrites columns on existing rows via a temp table:
// 1. Creates a temp table shaped like the target
// 2. COPY (key, columns...) into the temp table
// 3. UPDATE target SET ... FROM temp WHERE target.key = temp.key
// The temp table is dropped on commit.
func BulkUpdate(ctx context.Context, pool Pool, cfg UpdateConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if cfg.KeyColumn == "" {
		return 0, eris.New("db: update: no key column specified")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: update: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: update: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tempTable := TempTableName(cfg.Table)

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: update: create temp table for %s", cfg.Table)
	}

	copyCols := append([]string{cfg.KeyColumn}, cfg.Columns...)
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, copyCols, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: update: COPY into temp table for %s", cfg.Table)
	}

	setClauses := make([]string, len(cfg.Columns))
	for i, col := range cfg.Columns {
		ident := pgx.Identifier{col}.Sanitize()
		setClauses[i] = fmt.Sprintf("%s = s.%s", ident, ident)
	}
	key := pgx.Identifier{cfg.KeyColumn}.Sanitize()

	updateSQL := fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM %s AS s WHERE t.%s = s.%s",
		sanitizeTable(cfg.Table),
		strings.Join(setClauses, ", "),
		pgx.Identifier{tempTable}.Sanitize(),
		key, key,
	)

	tag, err := tx.Exec(ctx, updateSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: update: UPDATE FROM temp for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: update: commit tx")
	}

	return tag.RowsAffected(), nil
}

// TempTableName returns the temp table used by BulkUpdate for a target table.
func TempTableName(table string) string {
	return "_tmp_update_" + strings.ReplaceAll(table, ".", "_")
}

// Identifier splits a possibly schema-qualified table name into a pgx.Identifier.
func Identifier(table string) pgx.Identifier {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}
	}
	return pgx.Identifier{table}
}

// sanitizeTable handles schema-qualified table names like "registry.activeCo".
func sanitizeTable(table string) string {
	return Identifier(table).Sanitize()
}

// QuoteAndJoin quotes each column name and joins with commas.
func QuoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
