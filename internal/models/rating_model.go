package models

import "time"

// RecipeRating is a global, non household-scoped review of a recipe.
type RecipeRating struct {
	ID           string          `json:"id" firestore:"-"`
	RecipeTitle  string          `json:"recipeTitle" firestore:"recipeTitle"`
	Rating       int             `json:"rating" firestore:"rating"`
	Comment      string          `json:"comment" firestore:"comment"`
	AuthorName   string          `json:"authorName" firestore:"authorName"`
	AuthorAvatar string          `json:"authorAvatar,omitempty" firestore:"authorAvatar,omitempty"`
	Date         time.Time       `json:"date" firestore:"date"`
	Recipe       *RecipeSnapshot `json:"recipe,omitempty" firestore:"recipe,omitempty"`
}
