package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Difficulty is the preparation difficulty of a recipe.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Valid reports whether d is one of EASY, MEDIUM or HARD.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Recipe is the aggregate root for a recipe and its ingredients. Ingredients
// are only ever created, replaced or removed through the recipe that owns them.
//
// The JSON form of Recipe is the detail view returned by the API.
type Recipe struct {
	// ID is the numeric identifier assigned by the database.
	ID int64 `json:"id" db:"id"`

	// Title is the required recipe name, at most 255 characters.
	Title string `json:"title" db:"title"`

	Difficulty Difficulty `json:"difficulty" db:"difficulty"`

	// Instructions is free-form preparation text.
	Instructions string `json:"instructions" db:"instructions"`

	// ImageURL is the public URL of the recipe image, if any.
	ImageURL string `json:"imageUrl" db:"image_url"`

	// CreatorName is the display name of the author at creation time.
	CreatorName string `json:"creatorName" db:"creator_name"`

	CreatedAt time.Time `json:"createdDate" db:"created_at"`

	// OwnerID references the owning user. It is nil for legacy rows that were
	// migrated without an owner; such recipes cannot be mutated.
	OwnerID *uuid.UUID `json:"userId" db:"user_id"`

	Ingredients []Ingredient `json:"ingredients"`
}

// Ingredient is a single named ingredient of a recipe.
type Ingredient struct {
	ID       int64  `json:"id" db:"id"`
	RecipeID int64  `json:"-" db:"recipe_id"`
	Name     string `json:"ingredientName" db:"ingredient_name"`
}

// RecipeSummary is the list view of a recipe.
type RecipeSummary struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Difficulty      Difficulty `json:"difficulty"`
	ImageURL        string     `json:"imageUrl"`
	CreatorName     string     `json:"creatorName"`
	CreatedAt       time.Time  `json:"createdDate"`
	OwnerID         *uuid.UUID `json:"userId"`
	IngredientCount int        `json:"ingredientCount"`
}

// Summary returns the list view of r.
func (r Recipe) Summary() RecipeSummary {
	return RecipeSummary{
		ID:              r.ID,
		Title:           r.Title,
		Difficulty:      r.Difficulty,
		ImageURL:        r.ImageURL,
		CreatorName:     r.CreatorName,
		CreatedAt:       r.CreatedAt,
		OwnerID:         r.OwnerID,
		IngredientCount: len(r.Ingredients),
	}
}

// SetIngredients replaces the ingredient set with the given names. Blank names
// are dropped. An existing ingredient with the same name keeps its ID so the
// store only has to delete the detached rows and insert the new ones.
func (r *Recipe) SetIngredients(names []string) {
	unused := make(map[string][]int64, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if ing.ID != 0 {
			unused[ing.Name] = append(unused[ing.Name], ing.ID)
		}
	}

	next := make([]Ingredient, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		ing := Ingredient{RecipeID: r.ID, Name: name}
		if ids := unused[name]; len(ids) > 0 {
			ing.ID = ids[0]
			unused[name] = ids[1:]
		}
		next = append(next, ing)
	}
	r.Ingredients = next
}

// IngredientIDs returns the IDs of ingredients that are already persisted.
func (r Recipe) IngredientIDs() []int64 {
	ids := make([]int64, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if ing.ID != 0 {
			ids = append(ids, ing.ID)
		}
	}
	return ids
}
