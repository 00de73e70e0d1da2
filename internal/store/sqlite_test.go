package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/corpmatch/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath, "activeCo")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

var testColumns = []string{OffsetColumn, "DOSID", "CurrentEntityName"}

// seedRegistry loads rows of (DOSID, CurrentEntityName) and materializes the
// cleaned column from the given cleaned values.
func seedRegistry(t *testing.T, st *SQLiteStore, rows [][2]string, cleaned []string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateTable(ctx, testColumns[1:]))

	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = []any{int64(i + 1), model.Str(r[0]), model.Str(r[1])}
	}
	_, err := st.AppendChunk(ctx, testColumns, data)
	require.NoError(t, err)

	if cleaned == nil {
		return
	}
	require.NoError(t, st.AddColumn(ctx, CleanedColumn))
	updates := make([]model.CleanedName, len(cleaned))
	for i, c := range cleaned {
		updates[i] = model.CleanedName{Offset: int64(i + 1), Cleaned: c}
	}
	_, err = st.UpdateCleaned(ctx, updates)
	require.NoError(t, err)
	require.NoError(t, st.CreateIndex(ctx))
}

func TestSQLite_Columns_MissingTable(t *testing.T) {
	st := newTestSQLiteStore(t)

	cols, err := st.Columns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestSQLite_CreateTable_Columns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateTable(ctx, []string{"DOSID", "CurrentEntityName"}))
	// Idempotent.
	require.NoError(t, st.CreateTable(ctx, []string{"DOSID", "CurrentEntityName"}))

	cols, err := st.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, testColumns, cols)

	ok, err := st.HasColumn(ctx, "DOSID")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.HasColumn(ctx, CleanedColumn)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_AppendChunk_MaxOffset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateTable(ctx, testColumns[1:]))

	off, err := st.MaxOffset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)

	n, err := st.AppendChunk(ctx, testColumns, [][]any{
		{int64(1), model.Str("11"), model.Str("ACME LLC")},
		{int64(2), nil, model.Str("BETA INC")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	off, err = st.MaxOffset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), off)

	require.NoError(t, st.AddColumn(ctx, CleanedColumn))
	names, err := st.ScanUncleaned(ctx, "CurrentEntityName", 0, 10)
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, int64(1), names[0].Offset)
	assert.Equal(t, "ACME LLC", *names[0].Name)
	assert.Equal(t, "BETA INC", *names[1].Name)
}

func TestSQLite_AppendChunk_Atomic(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateTable(ctx, testColumns[1:]))

	// Duplicate primary key fails the whole chunk.
	_, err := st.AppendChunk(ctx, testColumns, [][]any{
		{int64(1), model.Str("11"), model.Str("ACME LLC")},
		{int64(1), model.Str("12"), model.Str("BETA INC")},
	})
	require.Error(t, err)

	off, err := st.MaxOffset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)
}

func TestSQLite_ScanUncleaned_Paginates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedRegistry(t, st, [][2]string{{"1", "A"}, {"2", "B"}, {"3", "C"}, {"4", "D"}, {"5", "E"}}, nil)
	require.NoError(t, st.AddColumn(ctx, CleanedColumn))

	page1, err := st.ScanUncleaned(ctx, "CurrentEntityName", 0, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(2), page1[1].Offset)

	page3, err := st.ScanUncleaned(ctx, "CurrentEntityName", 4, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "E", *page3[0].Name)

	empty, err := st.ScanUncleaned(ctx, "CurrentEntityName", 5, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLite_ScanUncleaned_SkipsFilledRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedRegistry(t, st, [][2]string{{"1", "A"}, {"2", "B"}, {"3", "C"}}, nil)
	require.NoError(t, st.AddColumn(ctx, CleanedColumn))
	_, err := st.UpdateCleaned(ctx, []model.CleanedName{{Offset: 1, Cleaned: "A"}, {Offset: 3, Cleaned: ""}})
	require.NoError(t, err)

	names, err := st.ScanUncleaned(ctx, "CurrentEntityName", 0, 10)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, int64(2), names[0].Offset)
}

func TestSQLite_DeleteAfter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedRegistry(t, st, [][2]string{{"1", "A"}, {"2", "B"}, {"3", "C"}}, nil)

	n, err := st.DeleteAfter(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	off, err := st.MaxOffset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), off)
}

func TestSQLite_HasIndex(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedRegistry(t, st, [][2]string{{"1", "A"}}, nil)

	ok, err := st.HasIndex(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.AddColumn(ctx, CleanedColumn))
	require.NoError(t, st.CreateIndex(ctx))
	ok, err = st.HasIndex(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_AddColumn_Exists(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateTable(ctx, testColumns[1:]))

	require.NoError(t, st.AddColumn(ctx, CleanedColumn))
	err := st.AddColumn(ctx, CleanedColumn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrColumnExists)
}

func TestSQLite_FirstByPrefix(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedRegistry(t, st,
		[][2]string{{"10", "ALPHA BETA LLC"}, {"20", "ALPHA LLC"}, {"30", "Gamma 50% Inc"}},
		[]string{"ALPHABETALLC", "ALPHALLC", "Gamma50%Inc"},
	)

	rec, err := st.FirstByPrefix(ctx, "alpha", TieFirst)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"1", "10", "ALPHA BETA LLC", "ALPHABETALLC"}, rec.Strings())

	rec, err = st.FirstByPrefix(ctx, "alpha", TieShortest)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "20", *rec[1])

	rec, err = st.FirstByPrefix(ctx, "Gamma50%", TieFirst)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "30", *rec[1])

	// Wildcards in the prefix are literals.
	rec, err = st.FirstByPrefix(ctx, "A_PHA", TieFirst)
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = st.FirstByPrefix(ctx, "Zeta", TieFirst)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_FirstByPrefix_NullColumns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateTable(ctx, testColumns[1:]))
	_, err := st.AppendChunk(ctx, testColumns, [][]any{{int64(1), nil, model.Str("ACME")}})
	require.NoError(t, err)
	require.NoError(t, st.AddColumn(ctx, CleanedColumn))
	_, err = st.UpdateCleaned(ctx, []model.CleanedName{{Offset: 1, Cleaned: "ACME"}})
	require.NoError(t, err)

	rec, err := st.FirstByPrefix(ctx, "acme", TieFirst)
	require.NoError(t, err)
	require.Len(t, rec, 4)
	assert.Nil(t, rec[1])
	assert.Equal(t, "ACME", *rec[3])
}

func TestSQLite_CreateIndex_Twice(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedRegistry(t, st, [][2]string{{"1", "A"}}, []string{"A"})

	assert.Error(t, st.CreateIndex(ctx))
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), Config{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "open.db"),
		Table:       "activeCo",
	})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	assert.Equal(t, "activeCo", st.Table())
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", Table: "activeCo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")

	_, err = Open(context.Background(), Config{Driver: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table name is required")
}

func TestLikePrefix(t *testing.T) {
	assert.Equal(t, "Acme%", LikePrefix("Acme"))
	assert.Equal(t, `50\%\_off\\%`, LikePrefix(`50%_off\`))
	assert.Equal(t, "%", LikePrefix(""))
}

func TestParseTieBreak(t *testing.T) {
	tb, err := ParseTieBreak("")
	require.NoError(t, err)
	assert.Equal(t, TieFirst, tb)

	tb, err = ParseTieBreak("shortest")
	require.NoError(t, err)
	assert.Equal(t, TieShortest, tb)

	_, err = ParseTieBreak("longest")
	assert.Error(t, err)
}
