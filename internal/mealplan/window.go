// Package mealplan builds and edits the rolling seven day meal plan.
package mealplan

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/example/pantrysync/internal/models"
)

// DateLayout is the format of day keys and meal plan document IDs.
const DateLayout = "2006-01-02"

// WindowDays is the length of the rolling window.
const WindowDays = 7

var (
	ErrDayOutsideWindow = errors.New("date is outside the meal plan window")
	ErrMealNotFound     = errors.New("meal not found")
)

// DateKey formats t's calendar date in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// DayName returns the English weekday of a date key, or "" if the key does
// not parse.
func DayName(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return t.Weekday().String()
}

// BuildWindow returns the seven days today..today+6 with empty meal lists.
// Days are computed on the calendar, so DST transitions never skip a date.
func BuildWindow(today time.Time) []models.DayPlan {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	window := make([]models.DayPlan, WindowDays)
	for i := range window {
		day := start.AddDate(0, 0, i)
		window[i] = models.DayPlan{
			Date:  DateKey(day),
			Day:   day.Weekday().String(),
			Meals: []models.MealPlanItem{},
		}
	}
	return window
}

// MergeRemote overlays the meals of remote days onto the matching days of
// window. Remote days outside the window are dropped; window days without a
// remote counterpart keep their empty meal list. window is not modified.
func MergeRemote(window, remote []models.DayPlan) []models.DayPlan {
	byDate := make(map[string]models.DayPlan, len(remote))
	for _, d := range remote {
		byDate[d.Date] = d
	}
	out := make([]models.DayPlan, len(window))
	for i, day := range window {
		out[i] = models.DayPlan{Date: day.Date, Day: day.Day, Meals: []models.MealPlanItem{}}
		if r, ok := byDate[day.Date]; ok {
			out[i].Meals = append(out[i].Meals, r.Meals...)
		}
	}
	return out
}

// Reanchor rebuilds plan on the window starting at today, dropping lapsed days.
func Reanchor(plan []models.DayPlan, today time.Time) []models.DayPlan {
	return MergeRemote(BuildWindow(today), plan)
}

// Equal compares two plans structurally. Nil and empty lists are equal.
func Equal(a, b []models.DayPlan) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// Sort orders days by date key.
func Sort(plan []models.DayPlan) {
	sort.Slice(plan, func(i, j int) bool { return plan[i].Date < plan[j].Date })
}

func indexOf(plan []models.DayPlan, date string) int {
	for i, d := range plan {
		if d.Date == date {
			return i
		}
	}
	return -1
}

// AddMeal appends a snapshot of recipe to the given day and returns the new
// plan together with the created meal.
func AddMeal(plan []models.DayPlan, date string, recipe models.Recipe) ([]models.DayPlan, models.MealPlanItem, error) {
	i := indexOf(plan, date)
	if i < 0 {
		return nil, models.MealPlanItem{}, ErrDayOutsideWindow
	}
	meal := models.MealPlanItem{ID: uuid.NewString(), Recipe: Sanitize(recipe)}
	out := clone(plan)
	out[i].Meals = append(out[i].Meals, meal)
	return out, meal, nil
}

// RemoveMeal removes one meal from the given day.
func RemoveMeal(plan []models.DayPlan, date, mealID string) ([]models.DayPlan, error) {
	i := indexOf(plan, date)
	if i < 0 {
		return nil, ErrDayOutsideWindow
	}
	out := clone(plan)
	meals := out[i].Meals[:0]
	found := false
	for _, m := range plan[i].Meals {
		if m.ID == mealID {
			found = true
			continue
		}
		meals = append(meals, m)
	}
	if !found {
		return nil, ErrMealNotFound
	}
	out[i].Meals = meals
	return out, nil
}

// clone copies the plan and every day's meal list.
func clone(plan []models.DayPlan) []models.DayPlan {
	out := make([]models.DayPlan, len(plan))
	for i, d := range plan {
		out[i] = d
		out[i].Meals = append([]models.MealPlanItem{}, d.Meals...)
	}
	return out
}

// Sanitize copies the fields of recipe that a meal plan keeps. The snapshot
// shares no memory with recipe.
func Sanitize(recipe models.Recipe) models.RecipeSnapshot {
	title := strings.TrimSpace(recipe.Title)
	if title == "" {
		title = "Untitled recipe"
	}
	return models.RecipeSnapshot{
		Title:        title,
		Ingredients:  trimmed(recipe.Ingredients),
		Instructions: trimmed(recipe.Instructions),
		PrepTime:     strings.TrimSpace(recipe.PrepTime),
		CookTime:     strings.TrimSpace(recipe.CookTime),
		Servings:     recipe.Servings,
	}
}

func trimmed(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HasMeals reports whether a day is worth persisting.
func HasMeals(day models.DayPlan) bool {
	return len(day.Meals) > 0
}
