// Package store persists the registry table and answers prefix lookups
// against its normalized name column.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/corpmatch/internal/model"
)

// Reserved column names managed by the store.
const (
	OffsetColumn  = "RowOffset"
	CleanedColumn = "CleanedEntityName"
	IndexName     = "CleanedEntityIdx"
)

var (
	// ErrColumnExists is returned by AddColumn when the column is already present.
	ErrColumnExists = errors.New("store: column already exists")

	// ErrTableIndexed is returned when appending to a table whose normalized
	// name column has already been materialized.
	ErrTableIndexed = errors.New("store: table already indexed")
)

// TieBreak selects which row wins when several share a prefix.
type TieBreak string

// Tie-break policies.
const (
	TieFirst    TieBreak = "first"    // lowest RowOffset
	TieShortest TieBreak = "shortest" // shortest normalized name, then lowest RowOffset
)

// ParseTieBreak validates a configured tie-break name. Empty means TieFirst.
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case "", TieFirst:
		return TieFirst, nil
	case TieShortest:
		return TieShortest, nil
	default:
		return "", eris.Errorf("store: unknown tie-break %q", s)
	}
}

// Store is the persistence interface for one registry table.
type Store interface {
	// Table returns the name of the registry table.
	Table() string

	// CreateTable creates the table with RowOffset as primary key followed by
	// one text column per name in columns. An existing table is left alone.
	CreateTable(ctx context.Context, columns []string) error

	// Columns returns the table's column names in order, or nil if the table
	// does not exist.
	Columns(ctx context.Context) ([]string, error)
	HasColumn(ctx context.Context, name string) (bool, error)

	// AddColumn adds a nullable text column. Fails with ErrColumnExists.
	AddColumn(ctx context.Context, name string) error

	// MaxOffset returns the largest RowOffset stored, or 0 for an empty table.
	MaxOffset(ctx context.Context) (int64, error)

	// AppendChunk inserts rows atomically. Each row holds one value per column.
	AppendChunk(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// DeleteAfter removes every row with RowOffset > offset.
	DeleteAfter(ctx context.Context, offset int64) (int64, error)

	// ScanUncleaned returns up to limit rows with RowOffset > after whose
	// CleanedEntityName is still NULL, ordered by offset. The column must exist.
	ScanUncleaned(ctx context.Context, nameColumn string, after int64, limit int) ([]model.NameRow, error)

	// UpdateCleaned writes normalized names back onto their rows atomically.
	UpdateCleaned(ctx context.Context, rows []model.CleanedName) (int64, error)

	// CreateIndex creates the case-insensitive index on the normalized name column.
	CreateIndex(ctx context.Context) error
	HasIndex(ctx context.Context) (bool, error)

	// FirstByPrefix returns the row whose normalized name starts with prefix
	// (case-insensitive), chosen by tb, or nil when nothing matches.
	FirstByPrefix(ctx context.Context, prefix string, tb TieBreak) (model.Record, error)

	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	Driver      string // "sqlite" or "postgres"
	DatabaseURL string // file path for sqlite, connection string for postgres
	Table       string
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Table == "" {
		return nil, eris.New("store: table name is required")
	}
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL, cfg.Table)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.Table)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// LikePrefix builds a LIKE pattern matching strings that begin with prefix,
// escaping the wildcard characters with a backslash.
func LikePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func orderBy(tb TieBreak) string {
	if tb == TieShortest {
		return `length("` + CleanedColumn + `"), "` + OffsetColumn + `"`
	}
	return `"` + OffsetColumn + `"`
}

func hasName(cols []string, name string) bool {
	return model.IndexOf(cols, name) >= 0
}
