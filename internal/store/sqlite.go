package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/corpmatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, table string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; a single connection also keeps pragmas in effect.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, table: table}, nil
}

func (s *SQLiteStore) Table() string {
	return s.table
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTable(ctx context.Context, columns []string) error {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, quoteIdent(OffsetColumn)+" INTEGER PRIMARY KEY")
	for _, c := range columns {
		defs = append(defs, quoteIdent(c)+" TEXT")
	}
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(s.table), strings.Join(defs, ", "))
	_, err := s.db.ExecContext(ctx, q)
	return eris.Wrapf(err, "sqlite: create table %s", s.table)
}

func (s *SQLiteStore) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", s.table)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: table info")
	}
	defer rows.Close() //nolint:errcheck

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan table info")
		}
		cols = append(cols, name)
	}
	return cols, eris.Wrap(rows.Err(), "sqlite: iterate table info")
}

func (s *SQLiteStore) HasColumn(ctx context.Context, name string) (bool, error) {
	cols, err := s.Columns(ctx)
	if err != nil {
		return false, err
	}
	return hasName(cols, name), nil
}

func (s *SQLiteStore) AddColumn(ctx context.Context, name string) error {
	exists, err := s.HasColumn(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return eris.Wrapf(ErrColumnExists, "sqlite: add column %s to %s", name, s.table)
	}
	q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quoteIdent(s.table), quoteIdent(name))
	_, err = s.db.ExecContext(ctx, q)
	return eris.Wrapf(err, "sqlite: add column %s to %s", name, s.table)
}

func (s *SQLiteStore) MaxOffset(ctx context.Context) (int64, error) {
	var maxOff int64
	q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", quoteIdent(OffsetColumn), quoteIdent(s.table))
	if err := s.db.QueryRowContext(ctx, q).Scan(&maxOff); err != nil {
		return 0, eris.Wrap(err, "sqlite: max offset")
	}
	return maxOff, nil
}

func (s *SQLiteStore) AppendChunk(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(s.table),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	args := make([]any, len(columns))
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, eris.Errorf("sqlite: append: row has %d values for %d columns", len(row), len(columns))
		}
		for i, v := range row {
			args[i] = sqlValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: append: insert into %s", s.table)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: append: commit tx")
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) DeleteAfter(ctx context.Context, offset int64) (int64, error) {
	q := fmt.Sprintf("DELETE FROM %s WHERE %s > ?", quoteIdent(s.table), quoteIdent(OffsetColumn))
	res, err := s.db.ExecContext(ctx, q, offset)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete rows after offset %d", offset)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) ScanUncleaned(ctx context.Context, nameColumn string, after int64, limit int) ([]model.NameRow, error) {
	q := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s > ? AND %s IS NULL ORDER BY %s LIMIT ?",
		quoteIdent(OffsetColumn), quoteIdent(nameColumn), quoteIdent(s.table),
		quoteIdent(OffsetColumn), quoteIdent(CleanedColumn), quoteIdent(OffsetColumn))

	rows, err := s.db.QueryContext(ctx, q, after, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan names")
	}
	defer rows.Close() //nolint:errcheck

	out := make([]model.NameRow, 0, limit)
	for rows.Next() {
		var (
			off  int64
			name sql.NullString
		)
		if err := rows.Scan(&off, &name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan name row")
		}
		nr := model.NameRow{Offset: off}
		if name.Valid {
			nr.Name = model.Str(name.String)
		}
		out = append(out, nr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate names")
}

func (s *SQLiteStore) UpdateCleaned(ctx context.Context, rows []model.CleanedName) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		quoteIdent(s.table), quoteIdent(CleanedColumn), quoteIdent(OffsetColumn))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: update cleaned: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: update cleaned: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, r := range rows {
		res, err := stmt.ExecContext(ctx, r.Cleaned, r.Offset)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: update cleaned: row %d", r.Offset)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: update cleaned: commit tx")
	}
	return n, nil
}

func (s *SQLiteStore) CreateIndex(ctx context.Context) error {
	q := fmt.Sprintf("CREATE INDEX %s ON %s (%s COLLATE NOCASE)",
		quoteIdent(IndexName), quoteIdent(s.table), quoteIdent(CleanedColumn))
	_, err := s.db.ExecContext(ctx, q)
	return eris.Wrapf(err, "sqlite: create index %s", IndexName)
}

func (s *SQLiteStore) HasIndex(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ? AND tbl_name = ?",
		IndexName, s.table).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: look up index")
	}
	return n > 0, nil
}

func (s *SQLiteStore) FirstByPrefix(ctx context.Context, prefix string, tb TieBreak) (model.Record, error) {
	q := fmt.Sprintf(`SELECT * FROM %s WHERE %s LIKE ? ESCAPE '\' ORDER BY %s LIMIT 1`,
		quoteIdent(s.table), quoteIdent(CleanedColumn), orderBy(tb))

	rows, err := s.db.QueryContext(ctx, q, LikePrefix(prefix))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prefix lookup")
	}
	defer rows.Close() //nolint:errcheck

	if !rows.Next() {
		return nil, eris.Wrap(rows.Err(), "sqlite: prefix lookup")
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prefix lookup columns")
	}
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan prefix lookup")
	}

	rec := model.NullRecord(len(cols))
	for i, v := range vals {
		if v.Valid {
			rec[i] = model.Str(v.String)
		}
	}
	return rec, nil
}

// sqlValue unwraps nullable strings into values the driver binds directly.
func sqlValue(v any) any {
	if p, ok := v.(*string); ok {
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}

// quoteIdent quotes a table or column name for SQLite.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
