package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "activeCo", []string{"RowOffset", "CurrentEntityName"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"activeCo"}, []string{"RowOffset", "CurrentEntityName"}).WillReturnResult(3)

	rows := [][]any{{int64(1), "ACME"}, {int64(2), "BETA"}, {int64(3), nil}}
	n, err := CopyFrom(context.Background(), mock, "activeCo", []string{"RowOffset", "CurrentEntityName"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"registry", "activeCo"}, []string{"RowOffset"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "registry.activeCo", []string{"RowOffset"}, [][]any{{int64(1)}, {int64(2)}})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"activeCo"}, []string{"RowOffset"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "activeCo", []string{"RowOffset"}, [][]any{{int64(1)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO activeCo")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_RaggedRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{{int64(1), "ACME"}, {int64(2)}}
	_, err = CopyFrom(context.Background(), mock, "activeCo", []string{"RowOffset", "CurrentEntityName"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1 has 1 values, want 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_NoColumns(t *testing.T) {
	_, err := CopyFrom(context.Background(), nil, "activeCo", nil, [][]any{{int64(1)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")
}

func TestCopyFrom_ShortCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"activeCo"}, []string{"RowOffset"}).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "activeCo", []string{"RowOffset"}, [][]any{{int64(1)}, {int64(2)}})
	require.Error(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, err.Error(), "copied 1 of 2 rows")
}
