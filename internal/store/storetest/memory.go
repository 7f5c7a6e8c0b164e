// Package storetest provides in-memory repositories with the same error
// semantics as the Postgres store, for service and handler tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/recipevault/apiserver/internal/store"
	"github.com/recipevault/apiserver/types"
)

// Users is an in-memory user repository.
type Users struct {
	mu    sync.Mutex
	users map[uuid.UUID]types.User
}

func NewUsers() *Users {
	return &Users{users: make(map[uuid.UUID]types.User)}
}

func (r *Users) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *Users) GetByUsernameOrEmail(_ context.Context, login string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var byEmail *types.User
	for _, user := range r.users {
		if user.Username == login {
			return user, nil
		}
		if user.Email == login {
			u := user
			byEmail = &u
		}
	}
	if byEmail != nil {
		return *byEmail, nil
	}
	return types.User{}, store.ErrNotFound
}

func (r *Users) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *Users) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *Users) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrDuplicateUsername
		}
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.ID] = user
	return user, nil
}

// Put stores user as is, bypassing uniqueness checks.
func (r *Users) Put(user types.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

// Recipes is an in-memory recipe repository. Update and Delete hold the
// repository lock for the whole callback, mirroring the row lock of the
// Postgres implementation.
type Recipes struct {
	mu             sync.Mutex
	recipes        map[int64]types.Recipe
	nextRecipe     int64
	nextIngredient int64
}

func NewRecipes() *Recipes {
	return &Recipes{recipes: make(map[int64]types.Recipe)}
}

func (r *Recipes) List(_ context.Context) ([]types.RecipeSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaries(func(types.Recipe) bool { return true }), nil
}

func (r *Recipes) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]types.RecipeSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaries(func(recipe types.Recipe) bool {
		return recipe.OwnerID != nil && *recipe.OwnerID == ownerID
	}), nil
}

func (r *Recipes) summaries(keep func(types.Recipe) bool) []types.RecipeSummary {
	out := make([]types.RecipeSummary, 0, len(r.recipes))
	for _, recipe := range r.recipes {
		if keep(recipe) {
			out = append(out, recipe.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *Recipes) Get(_ context.Context, id int64) (types.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recipe, ok := r.recipes[id]
	if !ok {
		return types.Recipe{}, store.ErrNotFound
	}
	return clone(recipe), nil
}

func (r *Recipes) Create(_ context.Context, recipe types.Recipe) (types.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRecipe++
	recipe.ID = r.nextRecipe
	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = time.Now().UTC()
	}
	recipe = clone(recipe)
	for i := range recipe.Ingredients {
		recipe.Ingredients[i].ID = 0
	}
	r.assignIngredientIDs(&recipe)
	r.recipes[recipe.ID] = recipe
	return clone(recipe), nil
}

func (r *Recipes) Update(_ context.Context, id int64, mutate func(recipe *types.Recipe) error) (types.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.recipes[id]
	if !ok {
		return types.Recipe{}, store.ErrNotFound
	}
	working := clone(current)
	if err := mutate(&working); err != nil {
		return types.Recipe{}, err
	}
	working.ID = id
	r.assignIngredientIDs(&working)
	r.recipes[id] = working
	return clone(working), nil
}

func (r *Recipes) Delete(_ context.Context, id int64, check func(recipe types.Recipe) error) (types.Recipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.recipes[id]
	if !ok {
		return types.Recipe{}, store.ErrNotFound
	}
	if err := check(clone(current)); err != nil {
		return types.Recipe{}, err
	}
	delete(r.recipes, id)
	return current, nil
}

// IngredientCount returns the number of stored ingredient rows across all
// recipes.
func (r *Recipes) IngredientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, recipe := range r.recipes {
		n += len(recipe.Ingredients)
	}
	return n
}

// Put stores recipe as is, allowing tests to seed legacy rows without owner.
func (r *Recipes) Put(recipe types.Recipe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if recipe.ID > r.nextRecipe {
		r.nextRecipe = recipe.ID
	}
	recipe = clone(recipe)
	r.assignIngredientIDs(&recipe)
	r.recipes[recipe.ID] = recipe
}

func (r *Recipes) assignIngredientIDs(recipe *types.Recipe) {
	for i := range recipe.Ingredients {
		recipe.Ingredients[i].RecipeID = recipe.ID
		if recipe.Ingredients[i].ID == 0 {
			r.nextIngredient++
			recipe.Ingredients[i].ID = r.nextIngredient
		} else if recipe.Ingredients[i].ID > r.nextIngredient {
			r.nextIngredient = recipe.Ingredients[i].ID
		}
	}
}

func clone(recipe types.Recipe) types.Recipe {
	ingredients := make([]types.Ingredient, len(recipe.Ingredients))
	copy(ingredients, recipe.Ingredients)
	recipe.Ingredients = ingredients
	if recipe.OwnerID != nil {
		owner := *recipe.OwnerID
		recipe.OwnerID = &owner
	}
	return recipe
}
