package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/recipevault/apiserver/internal/db"
	"github.com/recipevault/apiserver/types"
)

// RecipeRepository handles persistence for recipes and their ingredients.
// Every write runs in a single transaction covering the recipe row and the
// full ingredient set.
type RecipeRepository struct {
	db *sql.DB
}

func NewRecipeRepository(db *sql.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

const summaryQuery = `
	SELECT r.id, r.title, r.difficulty, r.image_url, r.creator_name, r.created_at, r.user_id, COUNT(i.id)
	FROM recipes r
	LEFT JOIN ingredients i ON i.recipe_id = r.id`

// List returns summaries of all recipes, newest first.
func (r *RecipeRepository) List(ctx context.Context) ([]types.RecipeSummary, error) {
	query := summaryQuery + `
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id DESC`
	return r.listSummaries(ctx, query)
}

// ListByOwner returns summaries of the recipes owned by ownerID, newest first.
func (r *RecipeRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.RecipeSummary, error) {
	query := summaryQuery + `
		WHERE r.user_id = $1
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id DESC`
	return r.listSummaries(ctx, query, ownerID.String())
}

func (r *RecipeRepository) listSummaries(ctx context.Context, query string, args ...any) ([]types.RecipeSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]types.RecipeSummary, 0)
	for rows.Next() {
		var s types.RecipeSummary
		var owner uuid.NullUUID
		if err := rows.Scan(
			&s.ID,
			&s.Title,
			&s.Difficulty,
			&s.ImageURL,
			&s.CreatorName,
			&s.CreatedAt,
			&owner,
			&s.IngredientCount,
		); err != nil {
			return nil, err
		}
		s.OwnerID = ownerPtr(owner)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// Get loads a recipe with its ingredients.
func (r *RecipeRepository) Get(ctx context.Context, id int64) (types.Recipe, error) {
	return getRecipe(ctx, r.db, id, false)
}

// Create inserts the recipe and its ingredients atomically.
func (r *RecipeRepository) Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = time.Now().UTC()
	}

	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		const query = `
			INSERT INTO recipes (title, difficulty, instructions, image_url, creator_name, created_at, user_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			query,
			recipe.Title,
			string(recipe.Difficulty),
			recipe.Instructions,
			recipe.ImageURL,
			recipe.CreatorName,
			recipe.CreatedAt,
			nullableUUID(recipe.OwnerID),
		).Scan(&recipe.ID); err != nil {
			return err
		}

		for i := range recipe.Ingredients {
			recipe.Ingredients[i].ID = 0
			recipe.Ingredients[i].RecipeID = recipe.ID
		}
		return insertIngredients(ctx, tx, recipe.Ingredients)
	})
	if err != nil {
		return types.Recipe{}, err
	}
	return recipe, nil
}

// Update locks the recipe row, hands the current state to mutate and persists
// the result. If mutate returns an error nothing is written and that error is
// returned. The ingredient set is reconciled by deleting detached rows and
// inserting new ones.
func (r *RecipeRepository) Update(ctx context.Context, id int64, mutate func(recipe *types.Recipe) error) (types.Recipe, error) {
	var updated types.Recipe
	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		recipe, err := getRecipe(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := mutate(&recipe); err != nil {
			return err
		}
		recipe.ID = id

		const query = `
			UPDATE recipes
			SET title = $1,
				difficulty = $2,
				instructions = $3,
				image_url = $4,
				creator_name = $5
			WHERE id = $6`
		result, err := tx.ExecContext(
			ctx,
			query,
			recipe.Title,
			string(recipe.Difficulty),
			recipe.Instructions,
			recipe.ImageURL,
			recipe.CreatorName,
			recipe.ID,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}

		if err := syncIngredients(ctx, tx, &recipe); err != nil {
			return err
		}
		updated = recipe
		return nil
	})
	if err != nil {
		return types.Recipe{}, err
	}
	return updated, nil
}

// Delete locks the recipe row, lets check veto the deletion and then removes
// the recipe together with all of its ingredients. The deleted recipe is
// returned.
func (r *RecipeRepository) Delete(ctx context.Context, id int64, check func(recipe types.Recipe) error) (types.Recipe, error) {
	var deleted types.Recipe
	err := db.WithTx(ctx, r.db, nil, func(ctx context.Context, tx db.DBTX) error {
		recipe, err := getRecipe(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := check(recipe); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM ingredients WHERE recipe_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM recipes WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		deleted = recipe
		return nil
	})
	if err != nil {
		return types.Recipe{}, err
	}
	return deleted, nil
}

func getRecipe(ctx context.Context, q db.DBTX, id int64, forUpdate bool) (types.Recipe, error) {
	query := `
		SELECT id, title, difficulty, instructions, image_url, creator_name, created_at, user_id
		FROM recipes
		WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var recipe types.Recipe
	var owner uuid.NullUUID
	err := q.QueryRowContext(ctx, query, id).Scan(
		&recipe.ID,
		&recipe.Title,
		&recipe.Difficulty,
		&recipe.Instructions,
		&recipe.ImageURL,
		&recipe.CreatorName,
		&recipe.CreatedAt,
		&owner,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Recipe{}, ErrNotFound
		}
		return types.Recipe{}, err
	}
	recipe.OwnerID = ownerPtr(owner)

	ingredients, err := listIngredients(ctx, q, id)
	if err != nil {
		return types.Recipe{}, err
	}
	recipe.Ingredients = ingredients
	return recipe, nil
}

func listIngredients(ctx context.Context, q db.DBTX, recipeID int64) ([]types.Ingredient, error) {
	const query = `
		SELECT id, recipe_id, ingredient_name
		FROM ingredients
		WHERE recipe_id = $1
		ORDER BY id`
	rows, err := q.QueryContext(ctx, query, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ingredients := make([]types.Ingredient, 0)
	for rows.Next() {
		var ing types.Ingredient
		if err := rows.Scan(&ing.ID, &ing.RecipeID, &ing.Name); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ingredients, nil
}

// syncIngredients deletes ingredient rows no longer referenced by recipe and
// inserts the ones without an ID.
func syncIngredients(ctx context.Context, tx db.DBTX, recipe *types.Recipe) error {
	const query = `DELETE FROM ingredients WHERE recipe_id = $1 AND NOT (id = ANY($2))`
	if _, err := tx.ExecContext(ctx, query, recipe.ID, pq.Array(recipe.IngredientIDs())); err != nil {
		return err
	}

	fresh := make([]types.Ingredient, 0)
	for i := range recipe.Ingredients {
		recipe.Ingredients[i].RecipeID = recipe.ID
		if recipe.Ingredients[i].ID == 0 {
			fresh = append(fresh, recipe.Ingredients[i])
		}
	}
	if err := insertIngredients(ctx, tx, fresh); err != nil {
		return err
	}

	next := 0
	for i := range recipe.Ingredients {
		if recipe.Ingredients[i].ID == 0 {
			recipe.Ingredients[i].ID = fresh[next].ID
			next++
		}
	}
	return nil
}

func insertIngredients(ctx context.Context, tx db.DBTX, ingredients []types.Ingredient) error {
	const query = `
		INSERT INTO ingredients (recipe_id, ingredient_name)
		VALUES ($1, $2)
		RETURNING id`
	for i := range ingredients {
		if err := tx.QueryRowContext(ctx, query, ingredients[i].RecipeID, ingredients[i].Name).Scan(&ingredients[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func ownerPtr(owner uuid.NullUUID) *uuid.UUID {
	if !owner.Valid {
		return nil
	}
	id := owner.UUID
	return &id
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
