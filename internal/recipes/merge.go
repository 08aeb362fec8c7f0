package recipes

import (
	"fmt"
	"strconv"
	"strings"
)

// Partition is the outcome of a three-way merge between the persisted child
// rows and a client-submitted replacement set. The three sides are disjoint
// and rows identical on both sides appear in none of them.
type Partition struct {
	Insert    []map[string]any
	Update    []map[string]any
	DeleteIDs []any
}

// Empty reports whether the merge produced no work at all.
func (p Partition) Empty() bool {
	return len(p.Insert) == 0 && len(p.Update) == 0 && len(p.DeleteIDs) == 0
}

// Merge diffs existing against submitted rows. Rows are matched by the key
// columns; matched rows are compared on the compare columns only, so a row
// that still carries its old values is a no-op rather than a spurious update.
//
// Submitted-only rows land in Insert with their id and timestamps dropped.
// Matched-but-changed rows land in Update keyed by the existing row's id.
// Existing-only rows contribute their ids to DeleteIDs.
func Merge(existing, submitted []map[string]any, keyColumns, compareColumns []string) Partition {
	var p Partition

	oldByKey := make(map[string]map[string]any, len(existing))
	for _, row := range existing {
		oldByKey[rowKey(row, keyColumns)] = row
	}

	seen := make(map[string]bool, len(submitted))
	for _, row := range submitted {
		key := rowKey(row, keyColumns)
		if seen[key] {
			continue
		}
		seen[key] = true

		old, ok := oldByKey[key]
		if !ok {
			p.Insert = append(p.Insert, stripRow(row))
			continue
		}
		if !sameValues(old, row, compareColumns) {
			update := stripRow(row)
			update["id"] = old["id"]
			p.Update = append(p.Update, update)
		}
	}

	for _, row := range existing {
		if !seen[rowKey(row, keyColumns)] {
			p.DeleteIDs = append(p.DeleteIDs, row["id"])
		}
	}
	return p
}

func rowKey(row map[string]any, keyColumns []string) string {
	parts := make([]string, len(keyColumns))
	for i, col := range keyColumns {
		parts[i] = canonical(row[col])
	}
	return strings.Join(parts, "\x1f")
}

func sameValues(a, b map[string]any, columns []string) bool {
	for _, col := range columns {
		if canonical(a[col]) != canonical(b[col]) {
			return false
		}
	}
	return true
}

// stripRow drops the surrogate id and timestamps so inserts take database
// defaults and updates never carry client clocks.
func stripRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for col, v := range row {
		switch col {
		case "id", "created_at", "updated_at":
			continue
		}
		out[col] = v
	}
	return out
}

// canonical folds the numeric types the driver and the JSON decoder produce
// into one comparable form, so int64(5) and float64(5) match.
func canonical(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case int:
		return strconv.FormatFloat(float64(n), 'f', -1, 64)
	case int32:
		return strconv.FormatFloat(float64(n), 'f', -1, 64)
	case int64:
		return strconv.FormatFloat(float64(n), 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 64)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
