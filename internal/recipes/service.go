// Package recipes reconciles a client-submitted recipe composition against
// the persisted one: the client always sends the full replacement set of
// ingredient rows, and the engine computes the minimal insert, update and
// delete statements inside one transaction.
package recipes

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pantry.app/internal/db"
	"pantry.app/internal/entity"
	"pantry.app/internal/statement"
	"pantry.app/internal/tabular"
)

// Child rows are matched by the ingredient they point at; quantity and unit
// are the payload that decides whether a matched row needs an update.
var (
	mergeKeyColumns     = []string{"id_ingredient"}
	mergeCompareColumns = []string{"quantity", "id_unit"}
)

// Service owns the recipe submit and delete flows.
type Service struct {
	manager *db.Manager
	log     *zap.Logger
}

// NewService builds the reconciliation service on the shared manager.
func NewService(manager *db.Manager, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{manager: manager, log: log}
}

// UpsertRecipe persists the recipe form plus its full ingredient set.
// The reference time is the updated_at the client last saw; any parent or
// child row written after it aborts the whole submit as stale. On success
// the result carries the parent record, the refreshed recipes table, the
// loaded composition view and the snapshot view, in that order.
func (s *Service) UpsertRecipe(ctx context.Context, form map[string]any, referenceTime string, rows []map[string]any) db.Result {
	reference, err := parseReference(referenceTime)
	if err != nil {
		return s.manager.Catching(ctx, "", func(context.Context, *sql.Tx) ([]tabular.Table, error) {
			return nil, fmt.Errorf("%w: bad reference_time %q", db.ErrBadRequest, referenceTime)
		})
	}

	return s.manager.Catching(ctx, "Recipe submitted successfully.", func(ctx context.Context, tx *sql.Tx) ([]tabular.Table, error) {
		if err := s.guardParent(ctx, tx, form["id"], reference); err != nil {
			return nil, err
		}

		parent, err := s.writeParent(ctx, tx, form)
		if err != nil {
			return nil, err
		}
		recipeID := parent.Get("id")

		existing, err := s.fetchChildren(ctx, tx, recipeID)
		if err != nil {
			return nil, err
		}
		if err := guardChildren(existing, reference); err != nil {
			return nil, err
		}

		partition := Merge(existing.Records(), projectChildRows(rows), mergeKeyColumns, mergeCompareColumns)
		if err := s.applyPartition(ctx, tx, recipeID, partition); err != nil {
			return nil, err
		}

		return s.compositionTables(ctx, tx, parent, recipeID)
	})
}

// DeleteRecipe removes the composition rows and then the recipe rows the
// filters select, and returns the refreshed recipes table plus the empty
// composition view for the client to reset with.
func (s *Service) DeleteRecipe(ctx context.Context, recipe, composition statement.DeleteFilter) db.Result {
	return s.manager.Catching(ctx, "Recipe deleted successfully.", func(ctx context.Context, tx *sql.Tx) ([]tabular.Table, error) {
		deleteChildren, err := statement.Delete(entity.RecipeIngredients, composition.Map())
		if err != nil {
			return nil, err
		}
		deleteParent, err := statement.Delete(entity.Recipes, recipe.Map())
		if err != nil {
			return nil, err
		}

		if _, err := db.StatementTask(entity.RecipeIngredients, deleteChildren).Run(ctx, tx); err != nil {
			return nil, err
		}
		if _, err := db.StatementTask(entity.Recipes, deleteParent).Run(ctx, tx); err != nil {
			return nil, err
		}

		allRecipes, err := s.selectAll(ctx, tx, entity.Recipes)
		if err != nil {
			return nil, err
		}
		empty, err := db.QueryTask("recipe_composition_empty", CompositionEmpty()).Run(ctx, tx)
		if err != nil {
			return nil, err
		}
		return []tabular.Table{allRecipes, empty}, nil
	})
}

// guardParent rejects the submit when the persisted parent moved past the
// client's reference time.
func (s *Service) guardParent(ctx context.Context, tx *sql.Tx, id any, reference time.Time) error {
	if isEmptyID(id) {
		return nil
	}
	st, err := statement.Select(entity.Recipes, statement.Filters{
		And: map[string][]any{"id": {id}},
	})
	if err != nil {
		return err
	}
	current, err := db.StatementTask(entity.Recipes, st).Run(ctx, tx)
	if err != nil {
		return err
	}
	if current.Empty() {
		return nil
	}
	updated, err := parseTimestamp(current.Value(0, "updated_at"))
	if err != nil {
		return err
	}
	if updated.After(reference) {
		s.log.Warn("recipe submit rejected as stale",
			zap.Any("recipe_id", id),
			zap.Time("persisted_updated_at", updated),
			zap.Time("reference_time", reference))
		return db.ErrStaleData
	}
	return nil
}

// writeParent inserts a new recipe or upserts an existing one and returns
// the stored row.
func (s *Service) writeParent(ctx context.Context, tx *sql.Tx, form map[string]any) (tabular.Record, error) {
	var st statement.Statement
	var err error
	if isEmptyID(form["id"]) {
		st, err = statement.Insert(entity.Recipes, []map[string]any{form})
	} else {
		st, err = statement.Upsert(entity.Recipes, form)
	}
	if err != nil {
		return tabular.Record{}, err
	}
	t, err := db.StatementTask(entity.Recipes, st).Run(ctx, tx)
	if err != nil {
		return tabular.Record{}, err
	}
	return tabular.Single(t)
}

func (s *Service) fetchChildren(ctx context.Context, tx *sql.Tx, recipeID any) (tabular.Table, error) {
	st, err := statement.Select(entity.RecipeIngredients, statement.Filters{
		And: map[string][]any{"id_recipe": {recipeID}},
	})
	if err != nil {
		return tabular.Table{}, err
	}
	return db.StatementTask(entity.RecipeIngredients, st).Run(ctx, tx)
}

// guardChildren extends the staleness check to the existing child rows, so
// a concurrent edit to the composition also aborts the submit.
func guardChildren(existing tabular.Table, reference time.Time) error {
	for i := 0; i < existing.Len(); i++ {
		updated, err := parseTimestamp(existing.Value(i, "updated_at"))
		if err != nil {
			return err
		}
		if updated.After(reference) {
			return db.ErrStaleData
		}
	}
	return nil
}

func (s *Service) applyPartition(ctx context.Context, tx *sql.Tx, recipeID any, p Partition) error {
	if len(p.Insert) > 0 {
		rows := make([]map[string]any, len(p.Insert))
		for i, row := range p.Insert {
			stamped := make(map[string]any, len(row)+1)
			for col, v := range row {
				stamped[col] = v
			}
			stamped["id_recipe"] = recipeID
			rows[i] = stamped
		}
		st, err := statement.Insert(entity.RecipeIngredients, rows)
		if err != nil {
			return err
		}
		if _, err := db.StatementTask(entity.RecipeIngredients, st).Run(ctx, tx); err != nil {
			return err
		}
	}

	if len(p.Update) > 0 {
		sts := make([]statement.Statement, len(p.Update))
		for i, row := range p.Update {
			st, err := statement.Update(entity.RecipeIngredients, row)
			if err != nil {
				return err
			}
			sts[i] = st
		}
		if _, err := db.BatchTask(entity.RecipeIngredients, sts).Run(ctx, tx); err != nil {
			return err
		}
	}

	if len(p.DeleteIDs) > 0 {
		st, err := statement.Delete(entity.RecipeIngredients, map[string][]any{"id": p.DeleteIDs})
		if err != nil {
			return err
		}
		if _, err := db.StatementTask(entity.RecipeIngredients, st).Run(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) compositionTables(ctx context.Context, tx *sql.Tx, parent tabular.Record, recipeID any) ([]tabular.Table, error) {
	parentTable := tabular.Table{Columns: parent.Columns, Rows: [][]any{make([]any, len(parent.Columns))}}
	for i, col := range parent.Columns {
		parentTable.Rows[0][i] = parent.Fields[col]
	}

	allRecipes, err := s.selectAll(ctx, tx, entity.Recipes)
	if err != nil {
		return nil, err
	}
	loaded, err := db.QueryTask("recipe_composition_loaded", CompositionLoaded(recipeID)).Run(ctx, tx)
	if err != nil {
		return nil, err
	}
	snapshot, err := db.QueryTask("recipe_composition_snapshot", CompositionSnapshot(recipeID)).Run(ctx, tx)
	if err != nil {
		return nil, err
	}
	return []tabular.Table{parentTable, allRecipes, loaded, snapshot}, nil
}

func (s *Service) selectAll(ctx context.Context, tx *sql.Tx, desc entity.Descriptor) (tabular.Table, error) {
	st, err := statement.Select(desc, statement.Filters{})
	if err != nil {
		return tabular.Table{}, err
	}
	return db.StatementTask(desc, st).Run(ctx, tx)
}

// projectChildRows reduces submitted rows to the recipe_ingredients schema.
// Clients echo the loaded composition view back, which carries joined
// ingredient and unit columns and uses id for the view row number; the real
// surrogate key travels as id_recipe_ingredient.
func projectChildRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		projected := make(map[string]any, len(row))
		for col, v := range row {
			if entity.RecipeIngredients.HasColumn(col) {
				projected[col] = v
			}
		}
		if pk, ok := row["id_recipe_ingredient"]; ok {
			delete(projected, "id")
			if !isEmptyID(pk) {
				projected["id"] = pk
			}
		}
		out[i] = projected
	}
	return out
}

func isEmptyID(id any) bool {
	switch v := id.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}

// parseReference accepts the fixed tabular layout and RFC 3339; an empty
// reference is the zero time, which makes any persisted row look newer.
func parseReference(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(tabular.TimeLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

func parseTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return ts.UTC(), nil
	case string:
		return time.Parse(tabular.TimeLayout, ts)
	default:
		return time.Time{}, fmt.Errorf("%w: unreadable timestamp %v", db.ErrBadRequest, v)
	}
}
