package types

import (
	"time"

	"github.com/google/uuid"
)

// RecipeEventType names a recipe lifecycle transition.
type RecipeEventType string

const (
	RecipeCreated RecipeEventType = "recipe.created"
	RecipeUpdated RecipeEventType = "recipe.updated"
	RecipeDeleted RecipeEventType = "recipe.deleted"
)

// RecipeEvent is published after a recipe change has been committed.
type RecipeEvent struct {
	Type     RecipeEventType `json:"type"`
	RecipeID int64           `json:"recipeId"`
	OwnerID  *uuid.UUID      `json:"ownerId,omitempty"`

	// ImageURL is the image referenced after the change; empty for deletions.
	ImageURL string `json:"imageUrl,omitempty"`

	// PreviousImageURL is the image referenced before the change, if any.
	PreviousImageURL string `json:"previousImageUrl,omitempty"`

	OccurredAt time.Time `json:"occurredAt"`
}

// OrphanedImage returns the image URL that the change stopped referencing, or
// "" when no image was released.
func (e RecipeEvent) OrphanedImage() string {
	switch e.Type {
	case RecipeDeleted:
		return e.PreviousImageURL
	case RecipeUpdated:
		if e.PreviousImageURL != e.ImageURL {
			return e.PreviousImageURL
		}
	}
	return ""
}
