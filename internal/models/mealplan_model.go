package models

// MealPlanItem is one planned meal.
type MealPlanItem struct {
	ID     string         `json:"id" firestore:"id"`
	Recipe RecipeSnapshot `json:"recipe" firestore:"recipe"`
}

// DayPlan is one day of the rolling meal plan. Date (YYYY-MM-DD) is both the
// sort key and the remote document ID.
type DayPlan struct {
	Date  string         `json:"date" firestore:"-"`
	Day   string         `json:"day" firestore:"-"`
	Meals []MealPlanItem `json:"meals" firestore:"meals"`
}
