package models

import "time"

// Recipe is a full recipe as produced by the recipe generator or entered by hand.
type Recipe struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	PrepTime     string   `json:"prepTime,omitempty"`
	CookTime     string   `json:"cookTime,omitempty"`
	Servings     int      `json:"servings,omitempty"`
}

// SavedRecipe is a recipe kept in the user's or household's saved set.
type SavedRecipe struct {
	ID           string    `json:"id" firestore:"-"`
	Title        string    `json:"title" firestore:"title"`
	Description  string    `json:"description" firestore:"description"`
	Ingredients  []string  `json:"ingredients" firestore:"ingredients"`
	Instructions []string  `json:"instructions" firestore:"instructions"`
	CookTime     string    `json:"cookTime" firestore:"cookTime"`
	SavedAt      time.Time `json:"savedAt" firestore:"savedAt"`
	Color        string    `json:"color" firestore:"color"` // decorative placeholder
}

// RecipeSnapshot is the sanitized copy of a recipe embedded in meal plans
// and ratings. It never references the saved recipe it came from.
type RecipeSnapshot struct {
	Title        string   `json:"title" firestore:"title"`
	Ingredients  []string `json:"ingredients" firestore:"ingredients"`
	Instructions []string `json:"instructions" firestore:"instructions"`
	PrepTime     string   `json:"prepTime" firestore:"prepTime"`
	CookTime     string   `json:"cookTime" firestore:"cookTime"`
	Servings     int      `json:"servings" firestore:"servings"`
}
