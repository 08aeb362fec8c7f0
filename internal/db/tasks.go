package db

import (
	"context"
	"database/sql"

	"pantry.app/internal/entity"
	"pantry.app/internal/statement"
	"pantry.app/internal/tabular"
)

// Task is one unit of work inside a transaction: a function producing one
// table, plus the descriptor used to reorder its result.
type Task struct {
	Name string
	Run  func(ctx context.Context, tx *sql.Tx) (tabular.Table, error)
}

// StatementTask runs one built statement and normalizes the returned rows
// against the entity's canonical column order.
func StatementTask(desc entity.Descriptor, st statement.Statement) Task {
	return Task{
		Name: desc.Name,
		Run: func(ctx context.Context, tx *sql.Tx) (tabular.Table, error) {
			return runStatement(ctx, tx, desc, st)
		},
	}
}

// BatchTask runs several statements against the same entity as one logical
// task, concatenating the returned rows into a single combined table. Used
// for per-row updates and upserts submitted as one call.
func BatchTask(desc entity.Descriptor, sts []statement.Statement) Task {
	return Task{
		Name: desc.Name,
		Run: func(ctx context.Context, tx *sql.Tx) (tabular.Table, error) {
			var combined tabular.Table
			for _, st := range sts {
				t, err := runStatement(ctx, tx, desc, st)
				if err != nil {
					return tabular.Table{}, err
				}
				combined = tabular.Append(combined, t)
			}
			return combined, nil
		},
	}
}

// QueryTask runs a prebuilt query whose column set does not belong to any
// single entity, keeping the columns in the order the query produced them.
func QueryTask(name string, st statement.Statement) Task {
	return Task{
		Name: name,
		Run: func(ctx context.Context, tx *sql.Tx) (tabular.Table, error) {
			return runStatement(ctx, tx, entity.Descriptor{}, st)
		},
	}
}

func runStatement(ctx context.Context, tx *sql.Tx, desc entity.Descriptor, st statement.Statement) (tabular.Table, error) {
	rows, err := tx.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return tabular.Table{}, err
	}
	t, err := tabular.ParseRows(rows)
	if err != nil {
		return tabular.Table{}, err
	}
	return tabular.Normalize(t, desc), nil
}
