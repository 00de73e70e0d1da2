package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/corpmatch/internal/db"
	"github.com/sells-group/corpmatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	table   string
}

// NewPostgres creates a PostgresStore with a connection pool. The table may
// be schema-qualified ("registry.activeCo").
func NewPostgres(ctx context.Context, connString, table string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Phases run sequentially; a small pool is plenty.
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, table: table}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Table() string {
	return s.table
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ident() string {
	return db.Identifier(s.table).Sanitize()
}

// schemaAndName splits the table into schema (possibly empty) and name.
func (s *PostgresStore) schemaAndName() (string, string) {
	if i := strings.IndexByte(s.table, '.'); i >= 0 {
		return s.table[:i], s.table[i+1:]
	}
	return "", s.table
}

func (s *PostgresStore) CreateTable(ctx context.Context, columns []string) error {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, db.QuoteAndJoin([]string{OffsetColumn})+" BIGINT PRIMARY KEY")
	for _, c := range columns {
		defs = append(defs, db.QuoteAndJoin([]string{c})+" TEXT")
	}
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.ident(), strings.Join(defs, ", "))
	_, err := s.pool.Exec(ctx, q)
	return eris.Wrapf(err, "postgres: create table %s", s.table)
}

func (s *PostgresStore) Columns(ctx context.Context) ([]string, error) {
	schema, name := s.schemaAndName()
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2
		 ORDER BY ordinal_position`,
		schema, name)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list columns")
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "postgres: scan column")
		}
		cols = append(cols, c)
	}
	return cols, eris.Wrap(rows.Err(), "postgres: iterate columns")
}

func (s *PostgresStore) HasColumn(ctx context.Context, name string) (bool, error) {
	cols, err := s.Columns(ctx)
	if err != nil {
		return false, err
	}
	return hasName(cols, name), nil
}

func (s *PostgresStore) AddColumn(ctx context.Context, name string) error {
	exists, err := s.HasColumn(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return eris.Wrapf(ErrColumnExists, "postgres: add column %s to %s", name, s.table)
	}
	q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", s.ident(), db.QuoteAndJoin([]string{name}))
	_, err = s.pool.Exec(ctx, q)
	return eris.Wrapf(err, "postgres: add column %s to %s", name, s.table)
}

func (s *PostgresStore) MaxOffset(ctx context.Context) (int64, error) {
	var maxOff int64
	q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", db.QuoteAndJoin([]string{OffsetColumn}), s.ident())
	if err := s.pool.QueryRow(ctx, q).Scan(&maxOff); err != nil {
		return 0, eris.Wrap(err, "postgres: max offset")
	}
	return maxOff, nil
}

// AppendChunk COPYs rows into the table inside one transaction.
func (s *PostgresStore) AppendChunk(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: append: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := db.CopyFrom(ctx, tx, s.table, columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: append")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: append: commit tx")
	}
	return n, nil
}

func (s *PostgresStore) DeleteAfter(ctx context.Context, offset int64) (int64, error) {
	q := fmt.Sprintf("DELETE FROM %s WHERE %s > $1", s.ident(), db.QuoteAndJoin([]string{OffsetColumn}))
	tag, err := s.pool.Exec(ctx, q, offset)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete rows after offset %d", offset)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ScanUncleaned(ctx context.Context, nameColumn string, after int64, limit int) ([]model.NameRow, error) {
	off := db.QuoteAndJoin([]string{OffsetColumn})
	q := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s > $1 AND %s IS NULL ORDER BY %s LIMIT $2",
		off, db.QuoteAndJoin([]string{nameColumn}), s.ident(), off,
		db.QuoteAndJoin([]string{CleanedColumn}), off)

	rows, err := s.pool.Query(ctx, q, after, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan names")
	}
	defer rows.Close()

	out := make([]model.NameRow, 0, limit)
	for rows.Next() {
		var nr model.NameRow
		if err := rows.Scan(&nr.Offset, &nr.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan name row")
		}
		out = append(out, nr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate names")
}

// UpdateCleaned writes a batch through a temp table and a single UPDATE.
func (s *PostgresStore) UpdateCleaned(ctx context.Context, rows []model.CleanedName) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = []any{r.Offset, r.Cleaned}
	}

	n, err := db.BulkUpdate(ctx, s.pool, db.UpdateConfig{
		Table:     s.table,
		KeyColumn: OffsetColumn,
		Columns:   []string{CleanedColumn},
	}, data)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: update cleaned")
	}
	return n, nil
}

// CreateIndex builds an expression index on lower(name) with pattern ops so
// that lower(name) LIKE 'prefix%' can use it.
func (s *PostgresStore) CreateIndex(ctx context.Context) error {
	q := fmt.Sprintf("CREATE INDEX %s ON %s (lower(%s) text_pattern_ops)",
		db.QuoteAndJoin([]string{IndexName}), s.ident(), db.QuoteAndJoin([]string{CleanedColumn}))
	_, err := s.pool.Exec(ctx, q)
	return eris.Wrapf(err, "postgres: create index %s", IndexName)
}

func (s *PostgresStore) HasIndex(ctx context.Context) (bool, error) {
	schema, name := s.schemaAndName()
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_indexes
		 WHERE schemaname = COALESCE(NULLIF($1, ''), current_schema()) AND tablename = $2 AND indexname = $3)`,
		schema, name, IndexName).Scan(&ok)
	if err != nil {
		return false, eris.Wrap(err, "postgres: look up index")
	}
	return ok, nil
}

func (s *PostgresStore) FirstByPrefix(ctx context.Context, prefix string, tb TieBreak) (model.Record, error) {
	q := fmt.Sprintf(`SELECT * FROM %s WHERE lower(%s) LIKE lower($1) ESCAPE '\' ORDER BY %s LIMIT 1`,
		s.ident(), db.QuoteAndJoin([]string{CleanedColumn}), orderBy(tb))

	rows, err := s.pool.Query(ctx, q, LikePrefix(prefix))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: prefix lookup")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, eris.Wrap(rows.Err(), "postgres: prefix lookup")
	}

	vals, err := rows.Values()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan prefix lookup")
	}

	rec := model.NullRecord(len(vals))
	for i, v := range vals {
		rec[i] = pgText(v)
	}
	return rec, nil
}

// pgText renders a decoded column value as text, nil staying NULL.
func pgText(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return model.Str(t)
	case int64:
		return model.Str(strconv.FormatInt(t, 10))
	case int32:
		return model.Str(strconv.FormatInt(int64(t), 10))
	default:
		return model.Str(fmt.Sprint(t))
	}
}
