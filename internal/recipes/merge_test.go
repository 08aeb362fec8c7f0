package recipes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergePartitionsAreDisjoint(t *testing.T) {
	existing := []map[string]any{
		{"id": int64(10), "id_ingredient": int64(1), "quantity": float64(2), "id_unit": int64(1)},
		{"id": int64(11), "id_ingredient": int64(2), "quantity": float64(5), "id_unit": int64(1)},
		{"id": int64(12), "id_ingredient": int64(3), "quantity": float64(1), "id_unit": int64(2)},
	}
	submitted := []map[string]any{
		{"id_ingredient": float64(1), "quantity": float64(2), "id_unit": float64(1)}, // unchanged
		{"id_ingredient": float64(2), "quantity": float64(8), "id_unit": float64(1)}, // quantity changed
		{"id_ingredient": float64(4), "quantity": float64(3), "id_unit": float64(2)}, // new
	}

	p := Merge(existing, submitted, []string{"id_ingredient"}, []string{"quantity", "id_unit"})

	require.Len(t, p.Insert, 1)
	require.Equal(t, float64(4), p.Insert[0]["id_ingredient"])
	require.NotContains(t, p.Insert[0], "id")
	require.NotContains(t, p.Insert[0], "created_at")

	require.Len(t, p.Update, 1)
	require.Equal(t, int64(11), p.Update[0]["id"])
	require.Equal(t, float64(8), p.Update[0]["quantity"])

	require.Equal(t, []any{int64(12)}, p.DeleteIDs)
}

func TestMergeIdenticalSetsAreNoOp(t *testing.T) {
	existing := []map[string]any{
		{"id": int64(10), "id_ingredient": int64(1), "quantity": float64(2), "id_unit": int64(1),
			"created_at": "2026-01-01 00:00:00", "updated_at": "2026-01-01 00:00:00"},
	}
	// JSON decoding turns every number into float64; the merge must still
	// see this as the same row.
	submitted := []map[string]any{
		{"id_ingredient": float64(1), "quantity": float64(2), "id_unit": float64(1)},
	}

	p := Merge(existing, submitted, []string{"id_ingredient"}, []string{"quantity", "id_unit"})
	require.True(t, p.Empty())
}

func TestMergeEmptySubmissionDeletesEverything(t *testing.T) {
	existing := []map[string]any{
		{"id": int64(10), "id_ingredient": int64(1), "quantity": float64(2), "id_unit": int64(1)},
		{"id": int64(11), "id_ingredient": int64(2), "quantity": float64(5), "id_unit": int64(1)},
	}

	p := Merge(existing, nil, []string{"id_ingredient"}, []string{"quantity", "id_unit"})
	require.Empty(t, p.Insert)
	require.Empty(t, p.Update)
	require.ElementsMatch(t, []any{int64(10), int64(11)}, p.DeleteIDs)
}

func TestMergeAgainstEmptyStateInsertsEverything(t *testing.T) {
	submitted := []map[string]any{
		{"id_ingredient": float64(1), "quantity": float64(2), "id_unit": float64(1)},
		{"id_ingredient": float64(2), "quantity": float64(5), "id_unit": float64(1)},
	}

	p := Merge(nil, submitted, []string{"id_ingredient"}, []string{"quantity", "id_unit"})
	require.Len(t, p.Insert, 2)
	require.Empty(t, p.Update)
	require.Empty(t, p.DeleteIDs)
}

func TestMergeDropsDuplicateSubmittedKeys(t *testing.T) {
	submitted := []map[string]any{
		{"id_ingredient": float64(1), "quantity": float64(2), "id_unit": float64(1)},
		{"id_ingredient": float64(1), "quantity": float64(9), "id_unit": float64(1)},
	}

	p := Merge(nil, submitted, []string{"id_ingredient"}, []string{"quantity", "id_unit"})
	require.Len(t, p.Insert, 1)
	require.Equal(t, float64(2), p.Insert[0]["quantity"])
}
