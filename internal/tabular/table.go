// Package tabular is the single internal row representation shared by the
// statement executor, the result parser and the reconciliation engine: an
// ordered sequence of ordered rows.
package tabular

import (
	"encoding/json"
	"errors"
	"time"

	"pantry.app/internal/entity"
)

// TimeLayout is the fixed serialization format for timestamp columns.
const TimeLayout = "2006-01-02 15:04:05"

// ErrNoRow indicates a caller asked for the first row of an empty table.
var ErrNoRow = errors.New("tabular: expected returning data but none was found")

// Table is an ordered set of rows with a shared column order.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the table holds no rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Len returns the row count.
func (t Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of a column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the value at (row, column name), or nil when absent.
func (t Table) Value(row int, column string) any {
	i := t.ColumnIndex(column)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return nil
	}
	return t.Rows[row][i]
}

// Records renders rows as ordered maps for the JSON envelope.
func (t Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c] = r[i]
		}
		out = append(out, rec)
	}
	return out
}

// Record exposes the first row of a result with per-field access plus a
// serialized JSON form, for use in chained operations.
type Record struct {
	Columns []string
	Fields  map[string]any
	AsJSON  string
}

// Get returns a field value, or nil when absent.
func (r Record) Get(name string) any { return r.Fields[name] }

// Int64 coerces a numeric field; ok is false for non-numeric values.
func (r Record) Int64(name string) (int64, bool) {
	switch v := r.Fields[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Single returns the first row of a non-empty table as a Record. Calling it
// on an empty table is a caller error and maps to the index-error taxonomy
// entry.
func Single(t Table) (Record, error) {
	if t.Empty() {
		return Record{}, ErrNoRow
	}
	fields := make(map[string]any, len(t.Columns))
	for i, c := range t.Columns {
		fields[c] = t.Rows[0][i]
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Columns: append([]string(nil), t.Columns...),
		Fields:  fields,
		AsJSON:  string(data),
	}, nil
}

// Reorder rearranges columns so the canonical descriptor columns come first,
// in descriptor order, followed by any extra columns in their original order.
// Canonical columns absent from the table are skipped.
func Reorder(t Table, desc entity.Descriptor) Table {
	if len(t.Columns) == 0 {
		return t
	}
	indices := make([]int, 0, len(t.Columns))
	seen := make(map[int]struct{}, len(t.Columns))
	for _, name := range desc.ColumnNames() {
		if i := t.ColumnIndex(name); i >= 0 {
			indices = append(indices, i)
			seen[i] = struct{}{}
		}
	}
	for i := range t.Columns {
		if _, ok := seen[i]; !ok {
			indices = append(indices, i)
		}
	}

	out := Table{Columns: make([]string, len(indices)), Rows: make([][]any, len(t.Rows))}
	for j, i := range indices {
		out.Columns[j] = t.Columns[i]
	}
	for ri, row := range t.Rows {
		next := make([]any, len(indices))
		for j, i := range indices {
			next[j] = row[i]
		}
		out.Rows[ri] = next
	}
	return out
}

// Normalize reorders columns against the descriptor and serializes every
// time.Time value to the fixed layout.
func Normalize(t Table, desc entity.Descriptor) Table {
	t = Reorder(t, desc)
	for _, row := range t.Rows {
		for i, v := range row {
			if ts, ok := v.(time.Time); ok {
				row[i] = ts.UTC().Format(TimeLayout)
			}
		}
	}
	return t
}
