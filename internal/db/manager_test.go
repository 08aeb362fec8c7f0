package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"pantry.app/internal/entity"
	"pantry.app/internal/statement"
	"pantry.app/internal/tabular"
)

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	dbh, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	return NewManager(dbh, nil), mock
}

func ingredientRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "type", "created_at", "updated_at"})
}

func TestTouchSelectReturnsRows(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM ingredients").WillReturnRows(
		ingredientRows().AddRow(int64(1), "Flour", "", "Dry", "2026-01-01 00:00:00", "2026-01-01 00:00:00"),
	)
	mock.ExpectRollback()

	st, err := statement.Select(entity.Ingredients, statement.Filters{})
	require.NoError(t, err)

	res := m.TouchOne(context.Background(), StatementTask(entity.Ingredients, st), "Ingredients retrieved.", true)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, "Ingredients retrieved.", res.Message)
	require.Equal(t, 1, res.First().Len())
	require.Equal(t, "Flour", res.First().Value(0, "name"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchEmptySelectIs204(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM ingredients").WillReturnRows(ingredientRows())
	mock.ExpectRollback()

	st, err := statement.Select(entity.Ingredients, statement.Filters{
		And: map[string][]any{"name": {"Nonexistent"}},
	})
	require.NoError(t, err)

	res := m.TouchOne(context.Background(), StatementTask(entity.Ingredients, st), "", true)
	require.Equal(t, 204, res.StatusCode)
	require.Equal(t, MsgNoData, res.Message)
	require.True(t, res.OK())
	require.True(t, res.First().Empty())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchMultiTaskEmptyTableIsNot204(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM ingredients").WillReturnRows(ingredientRows())
	mock.ExpectQuery("SELECT .* FROM recipes").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Bread"),
	)
	mock.ExpectRollback()

	ingSt, err := statement.Select(entity.Ingredients, statement.Filters{})
	require.NoError(t, err)
	recSt, err := statement.Select(entity.Recipes, statement.Filters{})
	require.NoError(t, err)

	res := m.Touch(context.Background(), []Task{
		StatementTask(entity.Ingredients, ingSt),
		StatementTask(entity.Recipes, recSt),
	}, "", true)
	require.Equal(t, 200, res.StatusCode)
	require.Len(t, res.Content, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchBatchRollsBackAsOne(t *testing.T) {
	// Task 2 of 2 violates a uniqueness constraint; nothing may commit.
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO ingredients").WillReturnRows(
		ingredientRows().AddRow(int64(1), "Flour", "", "Dry", "2026-01-01 00:00:00", "2026-01-01 00:00:00"),
	)
	mock.ExpectQuery("INSERT INTO ingredients").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	first, err := statement.Insert(entity.Ingredients, []map[string]any{{"name": "Flour", "type": "Dry"}})
	require.NoError(t, err)
	second, err := statement.Insert(entity.Ingredients, []map[string]any{{"name": "Flour", "type": "Dry"}})
	require.NoError(t, err)

	res := m.Touch(context.Background(), []Task{
		StatementTask(entity.Ingredients, first),
		StatementTask(entity.Ingredients, second),
	}, "", false)

	require.Equal(t, 400, res.StatusCode)
	require.Equal(t, "Integrity error.", res.Message)
	require.Empty(t, res.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchCommitsMutations(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO categories").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "type", "created_at", "updated_at"}).
			AddRow(int64(3), "Dinner", "period", "2026-01-01 00:00:00", "2026-01-01 00:00:00"),
	)
	mock.ExpectCommit()

	st, err := statement.Insert(entity.Categories, []map[string]any{{"name": "Dinner", "type": "period"}})
	require.NoError(t, err)

	res := m.TouchOne(context.Background(), StatementTask(entity.Categories, st), "Successfully submitted to Categories.", false)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, "Successfully submitted to Categories.", res.Message)
	require.Equal(t, int64(3), res.First().Value(0, "id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchCommitFailureClassified(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO categories").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(int64(1)),
	)
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "08006"})

	st, err := statement.Insert(entity.Categories, []map[string]any{{"name": "Dinner", "type": "period"}})
	require.NoError(t, err)

	res := m.TouchOne(context.Background(), StatementTask(entity.Categories, st), "", false)
	require.Equal(t, 503, res.StatusCode)
	require.Equal(t, "Database is unavailable.", res.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchTaskCombinesRows(t *testing.T) {
	m, mock := newMockManager(t)

	cols := []string{"id", "name", "type", "created_at", "updated_at"}
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE categories SET").WillReturnRows(
		sqlmock.NewRows(cols).AddRow(int64(1), "Dinner", "period", "c", "u"),
	)
	mock.ExpectQuery("UPDATE categories SET").WillReturnRows(
		sqlmock.NewRows(cols).AddRow(int64(2), "Dessert", "period", "c", "u"),
	)
	mock.ExpectCommit()

	first, err := statement.Update(entity.Categories, map[string]any{"id": 1, "name": "Dinner"})
	require.NoError(t, err)
	second, err := statement.Update(entity.Categories, map[string]any{"id": 2, "name": "Dessert"})
	require.NoError(t, err)

	res := m.TouchOne(context.Background(), BatchTask(entity.Categories, []statement.Statement{first, second}), "", false)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, 2, res.First().Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatchingRollsBackOnError(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	res := m.Catching(context.Background(), "", func(ctx context.Context, tx *sql.Tx) ([]tabular.Table, error) {
		return nil, ErrStaleData
	})
	require.Equal(t, 400, res.StatusCode)
	require.Equal(t, "Stale data.", res.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatchingCommitsOnSuccess(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	res := m.Catching(context.Background(), "Recipe submitted successfully.", func(ctx context.Context, tx *sql.Tx) ([]tabular.Table, error) {
		return []tabular.Table{{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}}}, nil
	})
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, "Recipe submitted successfully.", res.Message)
	require.Len(t, res.Content, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
