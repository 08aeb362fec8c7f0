package tabular

import (
	"database/sql"
)

// ParseRows drains a *sql.Rows into a Table. Byte slices are converted to
// strings so heterogeneous driver representations converge on one shape.
func ParseRows(rows *sql.Rows) (Table, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Table{}, err
	}

	t := Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		targets := make([]any, len(cols))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return Table{}, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Append concatenates two tables produced against the same column set. The
// receiver's column order wins; rows from other are remapped by name.
func Append(t, other Table) Table {
	if len(t.Columns) == 0 {
		return other
	}
	for _, row := range other.Rows {
		next := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			if j := other.ColumnIndex(c); j >= 0 {
				next[i] = row[j]
			}
		}
		t.Rows = append(t.Rows, next)
	}
	return t
}
