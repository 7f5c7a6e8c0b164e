package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/recipevault/apiserver/internal/logging"
	"github.com/recipevault/apiserver/internal/store"
	"github.com/recipevault/apiserver/types"
)

// RecipeRepository defines persistence operations for recipes. Update and
// Delete run the callback and the write inside one transaction with the
// recipe row locked; a callback error aborts the transaction.
type RecipeRepository interface {
	List(ctx context.Context) ([]types.RecipeSummary, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.RecipeSummary, error)
	Get(ctx context.Context, id int64) (types.Recipe, error)
	Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
	Update(ctx context.Context, id int64, mutate func(recipe *types.Recipe) error) (types.Recipe, error)
	Delete(ctx context.Context, id int64, check func(recipe types.Recipe) error) (types.Recipe, error)
}

// EventPublisher receives recipe lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event types.RecipeEvent) error
}

// RecipeInput carries the fields of a create request.
type RecipeInput struct {
	Title           string
	Difficulty      string
	Instructions    string
	ImageURL        string
	IngredientNames []string
}

// RecipeUpdate carries a partial update. Nil fields are left untouched; a
// non-nil IngredientNames replaces the whole ingredient set.
type RecipeUpdate struct {
	Title           *string
	Difficulty      *string
	Instructions    *string
	ImageURL        *string
	CreatorName     *string
	IngredientNames *[]string
}

// RecipeService encapsulates recipe use-cases and enforces ownership on
// every mutation.
type RecipeService struct {
	repo   RecipeRepository
	events EventPublisher
	log    logging.Logger
	now    func() time.Time
}

func NewRecipeService(repo RecipeRepository, events EventPublisher, log logging.Logger) *RecipeService {
	if log == nil {
		log = logging.Nop()
	}
	return &RecipeService{
		repo:   repo,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// ListAll returns every recipe, newest first.
func (s *RecipeService) ListAll(ctx context.Context) ([]types.RecipeSummary, error) {
	summaries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return summaries, nil
}

// ListMine returns the recipes owned by user, newest first.
func (s *RecipeService) ListMine(ctx context.Context, user types.User) ([]types.RecipeSummary, error) {
	summaries, err := s.repo.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list recipes of %s: %w", user.ID, err)
	}
	return summaries, nil
}

func (s *RecipeService) GetByID(ctx context.Context, id int64) (types.Recipe, error) {
	recipe, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Recipe{}, translateRecipeErr(id, err)
	}
	return recipe, nil
}

// Create stores a new recipe owned by user. The creator name is always
// derived from the user's first and last name.
func (s *RecipeService) Create(ctx context.Context, in RecipeInput, user types.User) (types.Recipe, error) {
	if err := in.validate(); err != nil {
		return types.Recipe{}, err
	}

	owner := user.ID
	recipe := types.Recipe{
		Title:        strings.TrimSpace(in.Title),
		Difficulty:   types.Difficulty(in.Difficulty),
		Instructions: in.Instructions,
		ImageURL:     strings.TrimSpace(in.ImageURL),
		CreatorName:  user.DisplayName(),
		CreatedAt:    s.now().UTC(),
		OwnerID:      &owner,
	}
	recipe.SetIngredients(in.IngredientNames)

	created, err := s.repo.Create(ctx, recipe)
	if err != nil {
		return types.Recipe{}, fmt.Errorf("create recipe: %w", err)
	}

	s.publish(ctx, types.RecipeEvent{
		Type:     types.RecipeCreated,
		RecipeID: created.ID,
		OwnerID:  created.OwnerID,
		ImageURL: created.ImageURL,
	})
	return created, nil
}

// Update applies the fields present in in to the recipe identified by id.
func (s *RecipeService) Update(ctx context.Context, id int64, in RecipeUpdate, user types.User) (types.Recipe, error) {
	if err := in.validate(); err != nil {
		return types.Recipe{}, err
	}

	var previousImage string
	updated, err := s.repo.Update(ctx, id, func(recipe *types.Recipe) error {
		if !IsOwner(*recipe, user) {
			return &ForbiddenError{Message: "You can only update your own recipes"}
		}
		previousImage = recipe.ImageURL
		in.apply(recipe)
		return nil
	})
	if err != nil {
		return types.Recipe{}, translateRecipeErr(id, err)
	}

	s.publish(ctx, types.RecipeEvent{
		Type:             types.RecipeUpdated,
		RecipeID:         updated.ID,
		OwnerID:          updated.OwnerID,
		ImageURL:         updated.ImageURL,
		PreviousImageURL: previousImage,
	})
	return updated, nil
}

// Delete removes the recipe identified by id together with its ingredients.
func (s *RecipeService) Delete(ctx context.Context, id int64, user types.User) error {
	deleted, err := s.repo.Delete(ctx, id, func(recipe types.Recipe) error {
		if !IsOwner(recipe, user) {
			return &ForbiddenError{Message: "You can only delete your own recipes"}
		}
		return nil
	})
	if err != nil {
		return translateRecipeErr(id, err)
	}

	s.publish(ctx, types.RecipeEvent{
		Type:             types.RecipeDeleted,
		RecipeID:         deleted.ID,
		OwnerID:          deleted.OwnerID,
		PreviousImageURL: deleted.ImageURL,
	})
	return nil
}

func (in RecipeUpdate) apply(recipe *types.Recipe) {
	if in.Title != nil {
		recipe.Title = strings.TrimSpace(*in.Title)
	}
	if in.Difficulty != nil {
		recipe.Difficulty = types.Difficulty(*in.Difficulty)
	}
	if in.Instructions != nil {
		recipe.Instructions = *in.Instructions
	}
	if in.ImageURL != nil {
		recipe.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.CreatorName != nil {
		recipe.CreatorName = strings.TrimSpace(*in.CreatorName)
	}
	if in.IngredientNames != nil {
		recipe.SetIngredients(*in.IngredientNames)
	}
}

func (s *RecipeService) publish(ctx context.Context, event types.RecipeEvent) {
	if s.events == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn(ctx, "publish recipe event failed",
			"type", string(event.Type),
			"recipe_id", event.RecipeID,
			"error", err,
		)
	}
}

func translateRecipeErr(id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Message: "Recipe not found with id: " + strconv.FormatInt(id, 10)}
	}
	var forbidden *ForbiddenError
	if errors.As(err, &forbidden) {
		return forbidden
	}
	return fmt.Errorf("recipe %d: %w", id, err)
}
