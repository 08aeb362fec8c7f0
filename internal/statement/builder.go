// Package statement translates declarative filter and row descriptions into
// parameterized SQL. All values are bound as parameters, never interpolated,
// and generated clauses iterate sorted column names so the same input always
// yields the same SQL.
package statement

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"pantry.app/internal/entity"
)

var (
	// ErrValidation indicates incoming data did not pass validation.
	ErrValidation = errors.New("statement: input did not pass validation")

	// ErrEmptyFilters guards delete paths against accidental full-table
	// mutation.
	ErrEmptyFilters = errors.New("statement: refusing to build an unfiltered mutation")
)

// Statement is one parameterized SQL statement.
type Statement struct {
	SQL  string
	Args []any
}

type builder struct {
	sb   strings.Builder
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) bindList(values []any) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.bind(v)
	}
	return strings.Join(placeholders, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateColumns(desc entity.Descriptor, m map[string][]any) error {
	for col, values := range m {
		if !desc.HasColumn(col) {
			return fmt.Errorf("%w: unknown column %q on %q", ErrValidation, col, desc.Name)
		}
		if len(values) == 0 {
			return fmt.Errorf("%w: empty value list for column %q", ErrValidation, col)
		}
	}
	return nil
}

// Select builds a query over the entity's canonical columns. When no order
// is requested rows come back in primary-key order so results are stable.
func Select(desc entity.Descriptor, f Filters, orderBy ...string) (Statement, error) {
	b := &builder{}
	b.sb.WriteString("SELECT ")
	b.sb.WriteString(strings.Join(desc.ColumnNames(), ", "))
	b.sb.WriteString(" FROM ")
	b.sb.WriteString(desc.Name)

	where, err := f.render(desc, b)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		b.sb.WriteString(" WHERE ")
		b.sb.WriteString(where)
	}

	b.sb.WriteString(" ORDER BY ")
	if len(orderBy) == 0 {
		b.sb.WriteString(desc.PrimaryKey)
	} else {
		for i, col := range orderBy {
			if !desc.HasColumn(col) {
				return Statement{}, fmt.Errorf("%w: unknown order column %q on %q", ErrValidation, col, desc.Name)
			}
			if i > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteString(col)
		}
	}
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// Insert builds a bulk insert returning the written rows. Empty id and
// timestamp values are dropped so database defaults apply; updated_at is
// never taken from the client.
func Insert(desc entity.Descriptor, rows []map[string]any) (Statement, error) {
	if len(rows) == 0 {
		return Statement{}, fmt.Errorf("%w: no rows to insert", ErrValidation)
	}

	cleaned := make([]map[string]any, len(rows))
	for i, row := range rows {
		cleaned[i] = cleanRow(desc, row, true)
	}
	cols := sortedKeys(cleaned[0])
	if len(cols) == 0 {
		return Statement{}, fmt.Errorf("%w: no insertable columns", ErrValidation)
	}
	for _, col := range cols {
		if !desc.HasColumn(col) {
			return Statement{}, fmt.Errorf("%w: unknown column %q on %q", ErrValidation, col, desc.Name)
		}
	}

	b := &builder{}
	b.sb.WriteString("INSERT INTO ")
	b.sb.WriteString(desc.Name)
	b.sb.WriteString(" (")
	b.sb.WriteString(strings.Join(cols, ", "))
	b.sb.WriteString(") VALUES ")

	for i, row := range cleaned {
		if len(row) != len(cols) {
			return Statement{}, fmt.Errorf("%w: row %d has a different column set", ErrValidation, i)
		}
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString("(")
		for j, col := range cols {
			v, ok := row[col]
			if !ok {
				return Statement{}, fmt.Errorf("%w: row %d is missing column %q", ErrValidation, i, col)
			}
			if j > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteString(b.bind(v))
		}
		b.sb.WriteString(")")
	}
	b.sb.WriteString(" RETURNING *")
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// Update builds a per-row update keyed by the entity's primary key. The row
// must carry its primary-key value; updated_at is always refreshed
// server-side and an empty created_at is dropped so the creation timestamp
// is never overwritten.
func Update(desc entity.Descriptor, row map[string]any) (Statement, error) {
	pk, ok := row[desc.PrimaryKey]
	if !ok || isEmpty(pk) {
		return Statement{}, fmt.Errorf("%w: row is missing primary key %q", ErrValidation, desc.PrimaryKey)
	}

	cleaned := cleanRow(desc, row, false)
	delete(cleaned, desc.PrimaryKey)
	cols := sortedKeys(cleaned)
	for _, col := range cols {
		if !desc.HasColumn(col) {
			return Statement{}, fmt.Errorf("%w: unknown column %q on %q", ErrValidation, col, desc.Name)
		}
	}
	if len(cols) == 0 {
		return Statement{}, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	b := &builder{}
	b.sb.WriteString("UPDATE ")
	b.sb.WriteString(desc.Name)
	b.sb.WriteString(" SET ")
	for i, col := range cols {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(col)
		b.sb.WriteString(" = ")
		b.sb.WriteString(b.bind(cleaned[col]))
	}
	b.sb.WriteString(", updated_at = now() WHERE ")
	b.sb.WriteString(desc.PrimaryKey)
	b.sb.WriteString(" = ")
	b.sb.WriteString(b.bind(pk))
	b.sb.WriteString(" RETURNING *")
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// Delete builds a delete whose predicate is an AND of per-column IN clauses.
// Empty filters are rejected outright: an unfiltered delete is never built.
func Delete(desc entity.Descriptor, filters map[string][]any) (Statement, error) {
	if len(filters) == 0 {
		return Statement{}, ErrEmptyFilters
	}
	if err := validateColumns(desc, filters); err != nil {
		return Statement{}, err
	}

	b := &builder{}
	b.sb.WriteString("DELETE FROM ")
	b.sb.WriteString(desc.Name)
	b.sb.WriteString(" WHERE ")
	for i, col := range sortedKeys(filters) {
		if i > 0 {
			b.sb.WriteString(" AND ")
		}
		b.sb.WriteString(col)
		b.sb.WriteString(" IN (")
		b.sb.WriteString(b.bindList(filters[col]))
		b.sb.WriteString(")")
	}
	b.sb.WriteString(" RETURNING *")
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// Upsert builds an insert that, on primary-key conflict, overwrites every
// provided column with the incoming value and refreshes updated_at to now().
func Upsert(desc entity.Descriptor, row map[string]any) (Statement, error) {
	cleaned := cleanRow(desc, row, false)
	cols := sortedKeys(cleaned)
	if len(cols) == 0 {
		return Statement{}, fmt.Errorf("%w: no columns to upsert", ErrValidation)
	}
	for _, col := range cols {
		if !desc.HasColumn(col) {
			return Statement{}, fmt.Errorf("%w: unknown column %q on %q", ErrValidation, col, desc.Name)
		}
	}

	b := &builder{}
	b.sb.WriteString("INSERT INTO ")
	b.sb.WriteString(desc.Name)
	b.sb.WriteString(" (")
	b.sb.WriteString(strings.Join(cols, ", "))
	b.sb.WriteString(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(b.bind(cleaned[col]))
	}
	b.sb.WriteString(") ON CONFLICT (")
	b.sb.WriteString(desc.PrimaryKey)
	b.sb.WriteString(") DO UPDATE SET ")
	wrote := false
	for _, col := range cols {
		if col == desc.PrimaryKey {
			continue
		}
		if wrote {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(col)
		b.sb.WriteString(" = excluded.")
		b.sb.WriteString(col)
		wrote = true
	}
	if wrote {
		b.sb.WriteString(", ")
	}
	b.sb.WriteString("updated_at = now() RETURNING *")
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// cleanRow drops values the server owns: updated_at always, created_at and
// the primary key when empty (so defaults apply on insert paths).
func cleanRow(desc entity.Descriptor, row map[string]any, dropEmptyPK bool) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		switch {
		case k == "updated_at":
			continue
		case k == "created_at" && isEmpty(v):
			continue
		case dropEmptyPK && k == desc.PrimaryKey && isEmpty(v):
			continue
		}
		out[k] = v
	}
	return out
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
