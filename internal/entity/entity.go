// Package entity holds the static schema descriptors for every persisted
// relation. Statement building, result ordering and upsert conflict targets
// are all driven by these descriptors; unknown entity names are rejected
// here, before any SQL is built.
package entity

import (
	"errors"
	"fmt"
)

// ErrUnknownEntity indicates a client supplied a table name that is not part
// of the registry.
var ErrUnknownEntity = errors.New("entity: unknown entity")

// Kind is the coarse column type used for serialization decisions.
type Kind string

const (
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindText      Kind = "text"
	KindTimestamp Kind = "timestamp"
)

// Column describes one typed column of a relation.
type Column struct {
	Name string
	Kind Kind
}

// Reference points a column at another relation's column.
type Reference struct {
	Column string
	Target string // "table.column"
}

// Descriptor is the static description of one persisted relation.
type Descriptor struct {
	Name       string
	Columns    []Column
	PrimaryKey string
	References []Reference
}

// ColumnNames returns the canonical column order.
func (d Descriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether name is part of the canonical schema.
func (d Descriptor) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ColumnKind returns the kind of a canonical column, or KindText for columns
// outside the schema (extra columns produced by joins).
func (d Descriptor) ColumnKind(name string) Kind {
	for _, c := range d.Columns {
		if c.Name == name {
			return c.Kind
		}
	}
	return KindText
}

func timestamps() []Column {
	return []Column{
		{Name: "created_at", Kind: KindTimestamp},
		{Name: "updated_at", Kind: KindTimestamp},
	}
}

func withTimestamps(cols ...Column) []Column {
	return append(cols, timestamps()...)
}

// Static registry. Descriptors are defined once at startup and never mutated.
var (
	Users = Descriptor{
		Name: "users",
		Columns: withTimestamps(
			Column{Name: "google_id", Kind: KindText},
			Column{Name: "google_email", Kind: KindText},
			Column{Name: "google_picture_url", Kind: KindText},
			Column{Name: "google_access_token", Kind: KindText},
			Column{Name: "name", Kind: KindText},
			Column{Name: "locale", Kind: KindText},
		),
		PrimaryKey: "google_id",
	}

	Sessions = Descriptor{
		Name: "sessions",
		Columns: withTimestamps(
			Column{Name: "id", Kind: KindInt},
			Column{Name: "google_id", Kind: KindText},
			Column{Name: "token", Kind: KindText},
			Column{Name: "user_agent", Kind: KindText},
			Column{Name: "client_ip", Kind: KindText},
			Column{Name: "status", Kind: KindText},
		),
		PrimaryKey: "id",
		References: []Reference{{Column: "google_id", Target: "users.google_id"}},
	}

	Categories = Descriptor{
		Name: "categories",
		Columns: withTimestamps(
			Column{Name: "id", Kind: KindInt},
			Column{Name: "name", Kind: KindText},
			Column{Name: "type", Kind: KindText},
		),
		PrimaryKey: "id",
	}

	Units = Descriptor{
		Name: "units",
		Columns: withTimestamps(
			Column{Name: "id", Kind: KindInt},
			Column{Name: "name", Kind: KindText},
			Column{Name: "abbreviation", Kind: KindText},
			Column{Name: "base", Kind: KindInt},
		),
		PrimaryKey: "id",
	}

	Recipes = Descriptor{
		Name: "recipes",
		Columns: withTimestamps(
			Column{Name: "id", Kind: KindInt},
			Column{Name: "name", Kind: KindText},
			Column{Name: "description", Kind: KindText},
			Column{Name: "period", Kind: KindText},
			Column{Name: "type", Kind: KindText},
			Column{Name: "presentation", Kind: KindText},
		),
		PrimaryKey: "id",
	}

	Ingredients = Descriptor{
		Name: "ingredients",
		Columns: withTimestamps(
			Column{Name: "id", Kind: KindInt},
			Column{Name: "name", Kind: KindText},
			Column{Name: "description", Kind: KindText},
			Column{Name: "type", Kind: KindText},
		),
		PrimaryKey: "id",
	}

	RecipeIngredients = Descriptor{
		Name: "recipe_ingredients",
		Columns: withTimestamps(
			Column{Name: "id", Kind: KindInt},
			Column{Name: "id_recipe", Kind: KindInt},
			Column{Name: "id_ingredient", Kind: KindInt},
			Column{Name: "quantity", Kind: KindFloat},
			Column{Name: "id_unit", Kind: KindInt},
		),
		PrimaryKey: "id",
		References: []Reference{
			{Column: "id_recipe", Target: "recipes.id"},
			{Column: "id_ingredient", Target: "ingredients.id"},
			{Column: "id_unit", Target: "units.id"},
		},
	}
)

var registry = map[string]Descriptor{
	Users.Name:             Users,
	Sessions.Name:          Sessions,
	Categories.Name:        Categories,
	Units.Name:             Units,
	Recipes.Name:           Recipes,
	Ingredients.Name:       Ingredients,
	RecipeIngredients.Name: RecipeIngredients,
}

// Lookup resolves a client-supplied table name to its descriptor.
func Lookup(name string) (Descriptor, error) {
	d, ok := registry[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return d, nil
}

// Names lists every registered entity name.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
