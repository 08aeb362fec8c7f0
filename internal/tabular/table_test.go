package tabular

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"pantry.app/internal/entity"
)

func TestReorderCanonicalFirst(t *testing.T) {
	in := Table{
		Columns: []string{"unit", "name", "updated_at", "id", "created_at"},
		Rows:    [][]any{{"g", "Flour", "u", int64(3), "c"}},
	}
	out := Reorder(in, entity.Ingredients)

	// Canonical ingredient columns present in the table first, then extras
	// in their original order.
	require.Equal(t, []string{"id", "name", "created_at", "updated_at", "unit"}, out.Columns)
	require.Equal(t, [][]any{{int64(3), "Flour", "c", "u", "g"}}, out.Rows)
}

func TestNormalizeSerializesTimestamps(t *testing.T) {
	ts := time.Date(2026, 5, 17, 10, 30, 0, 0, time.UTC)
	in := Table{
		Columns: []string{"id", "name", "type", "created_at", "updated_at"},
		Rows:    [][]any{{int64(1), "Dry", "ingredient", ts, ts}},
	}
	out := Normalize(in, entity.Categories)
	require.Equal(t, "2026-05-17 10:30:00", out.Value(0, "created_at"))
	require.Equal(t, "2026-05-17 10:30:00", out.Value(0, "updated_at"))
}

func TestSingle(t *testing.T) {
	tbl := Table{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(7), "Salt"}, {int64(8), "Pepper"}},
	}
	rec, err := Single(tbl)
	require.NoError(t, err)
	require.Equal(t, "Salt", rec.Get("name"))

	id, ok := rec.Int64("id")
	require.True(t, ok)
	require.Equal(t, int64(7), id)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.AsJSON), &decoded))
	require.Equal(t, "Salt", decoded["name"])
}

func TestSingleEmptyIsIndexError(t *testing.T) {
	_, err := Single(Table{Columns: []string{"id"}})
	require.True(t, errors.Is(err, ErrNoRow))
}

func TestParseRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("select .* from ingredients").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("Flour")).
			AddRow(int64(2), "Sugar"),
	)

	rows, err := db.Query("select id, name from ingredients")
	require.NoError(t, err)

	tbl, err := ParseRows(rows)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	require.Equal(t, "Flour", tbl.Value(0, "name"))
	require.Equal(t, "Sugar", tbl.Value(1, "name"))
}

func TestAppendRemapsByName(t *testing.T) {
	a := Table{Columns: []string{"id", "name"}, Rows: [][]any{{int64(1), "a"}}}
	b := Table{Columns: []string{"name", "id"}, Rows: [][]any{{"b", int64(2)}}}
	out := Append(a, b)
	require.Equal(t, 2, out.Len())
	require.Equal(t, int64(2), out.Value(1, "id"))
	require.Equal(t, "b", out.Value(1, "name"))
}
