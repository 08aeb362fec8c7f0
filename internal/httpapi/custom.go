package httpapi

import (
	"net/http"
	"os"

	"go.uber.org/zap"

	"pantry.app/internal/statement"
)

type upsertRecipeRequest struct {
	FormData             map[string]any   `json:"form_data"`
	ReferenceTime        string           `json:"reference_time"`
	RecipeIngredientRows []map[string]any `json:"recipe_ingredients_rows"`
}

func (a *API) customUpsertRecipe(w http.ResponseWriter, r *http.Request) {
	var req upsertRecipeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.FormData) == 0 {
		a.log.Warn("recipe submit without form data")
		writeMessage(w, http.StatusBadRequest, "Could not find form data in request body.")
		return
	}

	res := a.recipes.UpsertRecipe(r.Context(), req.FormData, req.ReferenceTime, req.RecipeIngredientRows)
	if !res.OK() {
		writeResult(w, res)
		return
	}

	// The four tables come back in a fixed order: parent record, recipes
	// table, loaded view, snapshot view.
	writeJSON(w, res.StatusCode, map[string]any{
		"data": map[string]any{
			"form_data":                       firstRecord(res.Content[0].Records()),
			"recipe_data":                     res.Content[1].Records(),
			"recipe_ingredient_loaded_data":   res.Content[2].Records(),
			"recipe_ingredient_snapshot_data": res.Content[3].Records(),
		},
		"message": res.Message,
	})
}

type deleteRecipeRequest struct {
	Recipe      statement.DeleteFilter `json:"recipe"`
	Composition statement.DeleteFilter `json:"composition"`
}

func (a *API) customDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	var req deleteRecipeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res := a.recipes.DeleteRecipe(r.Context(), req.Recipe, req.Composition)
	if !res.OK() {
		writeResult(w, res)
		return
	}

	writeJSON(w, res.StatusCode, map[string]any{
		"data": map[string]any{
			"recipes":            res.Content[0].Records(),
			"recipe_ingredients": res.Content[1].Records(),
		},
		"message": res.Message,
	})
}

// customMaps serves the client field-map configuration file.
func (a *API) customMaps(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(a.mapsPath)
	if err != nil {
		a.log.Error("could not load maps file", zap.String("path", a.mapsPath), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"data":    map[string]any{},
			"message": "Configs could not be retrieved.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":    string(data),
		"message": "Configs retrieved!",
	})
}

func firstRecord(records []map[string]any) map[string]any {
	if len(records) == 0 {
		return nil
	}
	return records[0]
}
