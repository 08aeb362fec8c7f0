package statement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"pantry.app/internal/entity"
)

func TestSelectNoFilters(t *testing.T) {
	st, err := Select(entity.Ingredients, Filters{})
	require.NoError(t, err)
	require.Equal(t,
		"SELECT id, name, description, type, created_at, updated_at FROM ingredients ORDER BY id",
		st.SQL)
	require.Empty(t, st.Args)
}

func TestSelectAllGroupsConjoined(t *testing.T) {
	st, err := Select(entity.Ingredients, Filters{
		And:     map[string][]any{"id": {1, 2}},
		Or:      map[string][]any{"name": {"Salt"}, "type": {"Dry"}},
		Like:    map[string][]any{"name": {"%a%", "%b%"}},
		NotLike: map[string][]any{"description": {"%c%"}},
	})
	require.NoError(t, err)
	require.Equal(t,
		"SELECT id, name, description, type, created_at, updated_at FROM ingredients"+
			" WHERE (id IN ($1, $2))"+
			" AND (name IN ($3) OR type IN ($4))"+
			" AND (name LIKE $5 OR name LIKE $6)"+
			" AND (description NOT LIKE $7)"+
			" ORDER BY id",
		st.SQL)
	require.Equal(t, []any{1, 2, "Salt", "Dry", "%a%", "%b%", "%c%"}, st.Args)
}

func TestSelectOrderBy(t *testing.T) {
	st, err := Select(entity.Units, Filters{}, "name", "base")
	require.NoError(t, err)
	require.Contains(t, st.SQL, "ORDER BY name, base")

	_, err = Select(entity.Units, Filters{}, "granularity")
	require.True(t, errors.Is(err, ErrValidation))
}

func TestSelectRejectsUnknownColumn(t *testing.T) {
	_, err := Select(entity.Ingredients, Filters{And: map[string][]any{"salinity": {1}}})
	require.True(t, errors.Is(err, ErrValidation))

	_, err = Select(entity.Ingredients, Filters{And: map[string][]any{"id": {}}})
	require.True(t, errors.Is(err, ErrValidation))
}

func TestInsertBulk(t *testing.T) {
	st, err := Insert(entity.Categories, []map[string]any{
		{"name": "Dinner", "type": "period"},
		{"name": "Dessert", "type": "period"},
	})
	require.NoError(t, err)
	require.Equal(t,
		"INSERT INTO categories (name, type) VALUES ($1, $2), ($3, $4) RETURNING *",
		st.SQL)
	require.Equal(t, []any{"Dinner", "period", "Dessert", "period"}, st.Args)
}

func TestInsertDropsEmptyServerOwnedValues(t *testing.T) {
	st, err := Insert(entity.Categories, []map[string]any{{
		"id":         "",
		"name":       "Dinner",
		"type":       "period",
		"created_at": "",
		"updated_at": "2020-01-01 00:00:00",
	}})
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO categories (name, type) VALUES ($1, $2) RETURNING *", st.SQL)
}

func TestInsertRejectsMismatchedRows(t *testing.T) {
	_, err := Insert(entity.Categories, []map[string]any{
		{"name": "Dinner", "type": "period"},
		{"name": "Dessert"},
	})
	require.True(t, errors.Is(err, ErrValidation))
}

func TestUpdateByPrimaryKey(t *testing.T) {
	st, err := Update(entity.Ingredients, map[string]any{
		"id":   7,
		"name": "Flour",
		"type": "Dry",
	})
	require.NoError(t, err)
	require.Equal(t,
		"UPDATE ingredients SET name = $1, type = $2, updated_at = now() WHERE id = $3 RETURNING *",
		st.SQL)
	require.Equal(t, []any{"Flour", "Dry", 7}, st.Args)
}

func TestUpdateDropsEmptyCreatedAt(t *testing.T) {
	st, err := Update(entity.Ingredients, map[string]any{
		"id":         7,
		"name":       "Flour",
		"created_at": "",
	})
	require.NoError(t, err)
	require.NotContains(t, st.SQL, "created_at")
}

func TestUpdateRequiresPrimaryKey(t *testing.T) {
	_, err := Update(entity.Ingredients, map[string]any{"name": "Flour"})
	require.True(t, errors.Is(err, ErrValidation))

	_, err = Update(entity.Ingredients, map[string]any{"id": "", "name": "Flour"})
	require.True(t, errors.Is(err, ErrValidation))
}

func TestDelete(t *testing.T) {
	st, err := Delete(entity.RecipeIngredients, map[string][]any{"id": {5, 6}})
	require.NoError(t, err)
	require.Equal(t, "DELETE FROM recipe_ingredients WHERE id IN ($1, $2) RETURNING *", st.SQL)
	require.Equal(t, []any{5, 6}, st.Args)
}

func TestDeleteEmptyFiltersRejected(t *testing.T) {
	_, err := Delete(entity.RecipeIngredients, nil)
	require.True(t, errors.Is(err, ErrEmptyFilters))

	_, err = Delete(entity.RecipeIngredients, map[string][]any{})
	require.True(t, errors.Is(err, ErrEmptyFilters))
}

func TestUpsertConflictClause(t *testing.T) {
	st, err := Upsert(entity.Recipes, map[string]any{
		"id":     3,
		"name":   "Porridge",
		"period": "Breakfast",
	})
	require.NoError(t, err)
	require.Equal(t,
		"INSERT INTO recipes (id, name, period) VALUES ($1, $2, $3)"+
			" ON CONFLICT (id) DO UPDATE SET name = excluded.name, period = excluded.period,"+
			" updated_at = now() RETURNING *",
		st.SQL)
	require.Equal(t, []any{3, "Porridge", "Breakfast"}, st.Args)
}

func TestUpsertWithoutIDStillConflictsOnPK(t *testing.T) {
	st, err := Upsert(entity.Users, map[string]any{
		"google_id":    "g-123",
		"google_email": "a@b.c",
	})
	require.NoError(t, err)
	require.Contains(t, st.SQL, "ON CONFLICT (google_id) DO UPDATE SET")
	require.Contains(t, st.SQL, "google_email = excluded.google_email")
	require.NotContains(t, st.SQL, "google_id = excluded.google_id")
	require.Contains(t, st.SQL, "updated_at = now()")
}
