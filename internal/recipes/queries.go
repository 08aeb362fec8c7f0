package recipes

import (
	"fmt"

	"pantry.app/internal/statement"
)

// Composition views flatten the ingredient list of one recipe. The loaded
// view keeps every known ingredient, with zero quantity for the ones the
// recipe does not use, so a client can render the full picker in one query.
// The snapshot view keeps only the ingredients actually in the recipe.

const compositionColumns = `row_number() OVER (ORDER BY i.name) AS id,
	ri.id AS id_recipe_ingredient,
	i.id AS id_ingredient,
	i.name AS name,
	i.description AS description,
	i.type AS type,
	i.created_at AS created_at,
	i.updated_at AS updated_at,
	COALESCE(ri.quantity, 0) AS quantity,
	u.id AS id_unit,
	u.name AS unit`

// CompositionLoaded joins every ingredient against one recipe's rows.
func CompositionLoaded(recipeID any) statement.Statement {
	sql := fmt.Sprintf(`SELECT %s
FROM ingredients i
LEFT JOIN recipe_ingredients ri ON ri.id_ingredient = i.id AND ri.id_recipe = $1
LEFT JOIN units u ON u.id = ri.id_unit
ORDER BY i.name`, compositionColumns)
	return statement.Statement{SQL: sql, Args: []any{recipeID}}
}

// CompositionSnapshot returns only the rows that belong to the recipe.
func CompositionSnapshot(recipeID any) statement.Statement {
	sql := fmt.Sprintf(`SELECT %s
FROM ingredients i
JOIN recipe_ingredients ri ON ri.id_ingredient = i.id AND ri.id_recipe = $1
LEFT JOIN units u ON u.id = ri.id_unit
WHERE ri.quantity > 0
ORDER BY i.name`, compositionColumns)
	return statement.Statement{SQL: sql, Args: []any{recipeID}}
}

// CompositionEmpty is the loaded view of a recipe that does not exist yet:
// every ingredient at zero quantity with no unit attached.
func CompositionEmpty() statement.Statement {
	sql := `SELECT row_number() OVER (ORDER BY i.name) AS id,
	NULL AS id_recipe_ingredient,
	i.id AS id_ingredient,
	i.name AS name,
	i.description AS description,
	i.type AS type,
	i.created_at AS created_at,
	i.updated_at AS updated_at,
	0 AS quantity,
	NULL AS id_unit,
	NULL AS unit
FROM ingredients i
ORDER BY i.name`
	return statement.Statement{SQL: sql}
}

// NamedQuery resolves the composite select names accepted on the select
// endpoint. Unknown names fall back to ok=false so the caller can treat the
// name as a plain table instead.
func NamedQuery(name string, recipeID any) (statement.Statement, bool) {
	switch name {
	case "recipe_composition_empty":
		return CompositionEmpty(), true
	case "recipe_composition_loaded":
		return CompositionLoaded(recipeID), true
	case "recipe_composition_snapshot":
		return CompositionSnapshot(recipeID), true
	default:
		return statement.Statement{}, false
	}
}
