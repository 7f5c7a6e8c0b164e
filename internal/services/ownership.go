package services

import "github.com/recipevault/apiserver/types"

// IsOwner reports whether user may mutate recipe. Recipes without an owner
// are never mutable, whatever their creator name says.
func IsOwner(recipe types.Recipe, user types.User) bool {
	if recipe.OwnerID == nil {
		return false
	}
	return *recipe.OwnerID == user.ID
}
