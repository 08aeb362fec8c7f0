package statement

import (
	"fmt"
	"strings"

	"pantry.app/internal/entity"
)

// Filters is the declarative predicate grouping accepted from clients.
// Semantics: the and group is an AND of per-column IN clauses, the or group
// is an OR of per-column IN clauses, like patterns combine with OR and
// not_like patterns with AND. All present groups are conjoined.
type Filters struct {
	And     map[string][]any `json:"and,omitempty"`
	Or      map[string][]any `json:"or,omitempty"`
	Like    map[string][]any `json:"like,omitempty"`
	NotLike map[string][]any `json:"not_like,omitempty"`
}

// Empty reports whether no group carries a predicate. An empty filter set
// matches all rows on select but is rejected for mutations.
func (f Filters) Empty() bool {
	return len(f.And) == 0 && len(f.Or) == 0 && len(f.Like) == 0 && len(f.NotLike) == 0
}

// DeleteFilter is the single-column value-list shape the delete endpoints
// accept.
type DeleteFilter struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
}

// Map converts the filter to the column map the Delete builder takes. An
// unset field yields nil, which Delete rejects as empty.
func (f DeleteFilter) Map() map[string][]any {
	if f.Field == "" {
		return nil
	}
	return map[string][]any{f.Field: f.Values}
}

func (f Filters) render(desc entity.Descriptor, b *builder) (string, error) {
	for _, group := range []map[string][]any{f.And, f.Or, f.Like, f.NotLike} {
		if err := validateColumns(desc, group); err != nil {
			return "", err
		}
	}

	var groups []string

	if len(f.And) > 0 {
		var parts []string
		for _, col := range sortedKeys(f.And) {
			parts = append(parts, fmt.Sprintf("%s IN (%s)", col, b.bindList(f.And[col])))
		}
		groups = append(groups, "("+strings.Join(parts, " AND ")+")")
	}

	if len(f.Or) > 0 {
		var parts []string
		for _, col := range sortedKeys(f.Or) {
			parts = append(parts, fmt.Sprintf("%s IN (%s)", col, b.bindList(f.Or[col])))
		}
		groups = append(groups, "("+strings.Join(parts, " OR ")+")")
	}

	if len(f.Like) > 0 {
		var parts []string
		for _, col := range sortedKeys(f.Like) {
			for _, pattern := range f.Like[col] {
				parts = append(parts, fmt.Sprintf("%s LIKE %s", col, b.bind(pattern)))
			}
		}
		groups = append(groups, "("+strings.Join(parts, " OR ")+")")
	}

	if len(f.NotLike) > 0 {
		var parts []string
		for _, col := range sortedKeys(f.NotLike) {
			for _, pattern := range f.NotLike[col] {
				parts = append(parts, fmt.Sprintf("%s NOT LIKE %s", col, b.bind(pattern)))
			}
		}
		groups = append(groups, "("+strings.Join(parts, " AND ")+")")
	}

	return strings.Join(groups, " AND "), nil
}
