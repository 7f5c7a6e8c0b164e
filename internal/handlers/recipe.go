package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/recipevault/apiserver/internal/logging"
	"github.com/recipevault/apiserver/internal/services"
)

// RecipeHandler provides HTTP handlers for recipes.
type RecipeHandler struct {
	recipeService *services.RecipeService
	log           logging.Logger
}

func NewRecipeHandler(recipeService *services.RecipeService, log logging.Logger) *RecipeHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &RecipeHandler{recipeService: recipeService, log: log}
}

// RecipeRouter registers recipe routes. Reads are public; writes and the
// personal listing go through authMiddleware.
func RecipeRouter(r chi.Router, handler *RecipeHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/", handler.ListRecipes)
	r.With(authMiddleware).Get("/my-recipes", handler.ListMyRecipes)
	r.With(authMiddleware).Post("/", handler.CreateRecipe)
	r.Route("/{recipeID}", func(r chi.Router) {
		r.Get("/", handler.GetRecipe)
		r.With(authMiddleware).Put("/", handler.UpdateRecipe)
		r.With(authMiddleware).Delete("/", handler.DeleteRecipe)
	})
}

func (h *RecipeHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.recipeService.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *RecipeHandler) ListMyRecipes(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	summaries, err := h.recipeService.ListMine(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *RecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := parseRecipeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recipe id")
		return
	}
	recipe, err := h.recipeService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (h *RecipeHandler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req RecipeCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgMalformedBody)
		return
	}

	created, err := h.recipeService.Create(r.Context(), services.RecipeInput{
		Title:           req.Title,
		Difficulty:      req.Difficulty,
		Instructions:    req.Instructions,
		ImageURL:        req.ImageURL,
		IngredientNames: req.IngredientNames,
	}, user)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *RecipeHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	id, err := parseRecipeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recipe id")
		return
	}

	var req RecipeUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgMalformedBody)
		return
	}

	updated, err := h.recipeService.Update(r.Context(), id, services.RecipeUpdate{
		Title:           req.Title,
		Difficulty:      req.Difficulty,
		Instructions:    req.Instructions,
		ImageURL:        req.ImageURL,
		CreatorName:     req.CreatorName,
		IngredientNames: req.IngredientNames,
	}, user)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *RecipeHandler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	id, err := parseRecipeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recipe id")
		return
	}

	if err := h.recipeService.Delete(r.Context(), id, user); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecipeCreateRequest is the create payload. A creatorName sent by the
// client is accepted and ignored; the owner's name is used instead.
type RecipeCreateRequest struct {
	Title           string   `json:"title"`
	Difficulty      string   `json:"difficulty"`
	Instructions    string   `json:"instructions"`
	ImageURL        string   `json:"imageUrl"`
	CreatorName     string   `json:"creatorName"`
	IngredientNames []string `json:"ingredientNames"`
}

// RecipeUpdateRequest is the partial update payload; absent or null fields
// are left unchanged.
type RecipeUpdateRequest struct {
	Title           *string   `json:"title"`
	Difficulty      *string   `json:"difficulty"`
	Instructions    *string   `json:"instructions"`
	ImageURL        *string   `json:"imageUrl"`
	CreatorName     *string   `json:"creatorName"`
	IngredientNames *[]string `json:"ingredientNames"`
}
