package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "quotations_quotation_number_key"}

	assert.True(t, IsUniqueViolation(pgErr))
	assert.True(t, IsUniqueViolation(eris.Wrap(pgErr, "postgres: insert quotation")))
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: orders.order_number (2067)")))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.False(t, IsUniqueViolation(nil))

	assert.Equal(t, "quotations_quotation_number_key", ConstraintName(eris.Wrap(pgErr, "wrap")))
	assert.Equal(t, "", ConstraintName(errors.New("x")))
}

func TestCopyFrom(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"policy_documents"}, []string{"section", "content"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "policy_documents", []string{"section", "content"},
		[][]any{{"Coverage", "a"}, {"Exclusion", "b"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Empty(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "policy_documents", []string{"content"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"policy_documents"}, []string{"content"}).WillReturnError(fmt.Errorf("permission denied"))

	_, err = CopyFrom(context.Background(), mock, "policy_documents", []string{"content"}, [][]any{{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO policy_documents")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "car_models",
		Columns:      []string{"id", "brand"},
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "car_models",
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "Honda"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "car_models",
		Columns: []string{"id", "brand"},
	}, [][]any{{1, "Honda"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_ConflictKeyNotColumn(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "premiums",
		Columns:      []string{"car_model_id", "base_premium"},
		ConflictKeys: []string{"car_model_id", "plan_id"},
	}, [][]any{{int64(1), "100"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `conflict key "plan_id" is not a column`)
}

func TestBulkUpsert_RowWidth(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "car_models",
		Columns:      []string{"id", "brand"},
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "Honda"}, {2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1 has 1 values, want 2")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO "premiums" ("car_model_id", "plan_id", "base_premium") VALUES ($1, $2, $3) ` +
			`ON CONFLICT ("car_model_id", "plan_id") DO UPDATE SET "base_premium" = EXCLUDED."base_premium"`)).
		WithArgs(int64(1), int64(2), "25000.00").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "premiums",
		Columns:      []string{"car_model_id", "plan_id", "base_premium"},
		ConflictKeys: []string{"car_model_id", "plan_id"},
	}, [][]any{{int64(1), int64(2), "25000.00"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_Chunks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2), ($3, $4) ON CONFLICT`)).
		WithArgs(int64(1), "Honda", int64(2), "Toyota").
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2) ON CONFLICT`)).
		WithArgs(int64(3), "Mazda").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "car_models",
		Columns:      []string{"id", "brand"},
		ConflictKeys: []string{"id"},
		ChunkSize:    2,
	}, [][]any{{int64(1), "Honda"}, {int64(2), "Toyota"}, {int64(3), "Mazda"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_ExecError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "car_models"`).WillReturnError(fmt.Errorf("deadlock detected"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "car_models",
		Columns:      []string{"id", "brand"},
		ConflictKeys: []string{"id"},
	}, [][]any{{int64(1), "Honda"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: upsert car_models rows 0-0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatement_DoNothing(t *testing.T) {
	sql, args := upsertStatement(UpsertConfig{
		Table:        "public.premiums",
		Columns:      []string{"car_model_id", "plan_id"},
		ConflictKeys: []string{"car_model_id", "plan_id"},
	}, [][]any{{int64(1), int64(2)}})
	assert.Equal(t, `INSERT INTO "public"."premiums" ("car_model_id", "plan_id") VALUES ($1, $2) `+
		`ON CONFLICT ("car_model_id", "plan_id") DO NOTHING`, sql)
	assert.Equal(t, []any{int64(1), int64(2)}, args)
}

func TestChunkRows(t *testing.T) {
	assert.Equal(t, defaultChunkRows, UpsertConfig{Columns: []string{"a", "b"}}.chunkRows())
	assert.Equal(t, 10, UpsertConfig{Columns: []string{"a"}, ChunkSize: 10}.chunkRows())

	wide := make([]string, 200)
	assert.Equal(t, maxParams/200, UpsertConfig{Columns: wide}.chunkRows())
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, `"simple"`, qualifiedName("simple"))
	assert.Equal(t, `"public"."car_models"`, qualifiedName("public.car_models"))
	assert.Equal(t, `"id", "brand", "model"`, identList([]string{"id", "brand", "model"}))
}
