package models

// Names of the per-scope subcollections and top-level collections.
const (
	CollectionInventory    = "inventory"
	CollectionShoppingList = "shoppingList"
	CollectionSavedRecipes = "savedRecipes"
	CollectionMealPlan     = "mealPlan"

	CollectionUsers      = "users"
	CollectionHouseholds = "households"
	CollectionRatings    = "ratings"
)

// ScopedCollections lists the subcollections that follow the household scope.
var ScopedCollections = []string{
	CollectionInventory,
	CollectionShoppingList,
	CollectionSavedRecipes,
	CollectionMealPlan,
}
