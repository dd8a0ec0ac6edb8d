// Package pantry holds the local edits applied to inventory, shopping list
// and saved recipe collections. Every function returns a new slice and leaves
// its input untouched.
package pantry

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/pantrysync/internal/codec"
	"github.com/example/pantrysync/internal/models"
)

var (
	ErrEmptyName       = errors.New("name must not be empty")
	ErrItemNotFound    = errors.New("item not found")
	ErrDuplicateRecipe = errors.New("a recipe with this title is already saved")
)

// DefaultCategory is used for items added without a category.
const DefaultCategory = "Other"

// quantity parses a quantity estimate. Anything that is not a positive whole
// number counts as one.
func quantity(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// AddPantryItem inserts item, merging it into an existing entry with the same
// document key, so names differing only in case, surrounding space or
// characters not allowed in keys are one item. A merge sums the quantities and
// keeps the existing spelling.
func AddPantryItem(items []models.PantryItem, item models.PantryItem) ([]models.PantryItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, ErrEmptyName
	}
	if item.Category == "" {
		item.Category = DefaultCategory
	}
	out := append([]models.PantryItem{}, items...)
	key := codec.InventoryKey(item.Name)
	for i, existing := range out {
		if codec.InventoryKey(existing.Name) != key {
			continue
		}
		out[i].QuantityEstimate = strconv.Itoa(quantity(existing.QuantityEstimate) + quantity(item.QuantityEstimate))
		if existing.Category == "" || existing.Category == DefaultCategory {
			out[i].Category = item.Category
		}
		return out, nil
	}
	item.QuantityEstimate = strconv.Itoa(quantity(item.QuantityEstimate))
	return append(out, item), nil
}

// RemovePantryItem removes the entry whose document key matches name. name
// may be the item name or its key.
func RemovePantryItem(items []models.PantryItem, name string) ([]models.PantryItem, error) {
	key := codec.InventoryKey(name)
	out := make([]models.PantryItem, 0, len(items))
	for _, it := range items {
		if codec.InventoryKey(it.Name) != key {
			out = append(out, it)
		}
	}
	if len(out) == len(items) {
		return nil, ErrItemNotFound
	}
	return out, nil
}

// FindPantryItem looks an item up by its document key.
func FindPantryItem(items []models.PantryItem, name string) (models.PantryItem, bool) {
	key := codec.InventoryKey(name)
	for _, it := range items {
		if codec.InventoryKey(it.Name) == key {
			return it, true
		}
	}
	return models.PantryItem{}, false
}

// AddShoppingItem appends a new unchecked item with a fresh ID.
func AddShoppingItem(list []models.ShoppingItem, name, category string) ([]models.ShoppingItem, models.ShoppingItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ShoppingItem{}, ErrEmptyName
	}
	if category == "" {
		category = DefaultCategory
	}
	item := models.ShoppingItem{ID: uuid.NewString(), Name: name, Category: category}
	return append(append([]models.ShoppingItem{}, list...), item), item, nil
}

// SetChecked sets the checked flag of the item with the given ID.
func SetChecked(list []models.ShoppingItem, id string, checked bool) ([]models.ShoppingItem, error) {
	out := append([]models.ShoppingItem{}, list...)
	for i := range out {
		if out[i].ID == id {
			out[i].Checked = checked
			return out, nil
		}
	}
	return nil, ErrItemNotFound
}

// RemoveShoppingItem removes the item with the given ID.
func RemoveShoppingItem(list []models.ShoppingItem, id string) ([]models.ShoppingItem, error) {
	out := make([]models.ShoppingItem, 0, len(list))
	for _, it := range list {
		if it.ID != id {
			out = append(out, it)
		}
	}
	if len(out) == len(list) {
		return nil, ErrItemNotFound
	}
	return out, nil
}

// ClearChecked removes every checked item.
func ClearChecked(list []models.ShoppingItem) []models.ShoppingItem {
	out := make([]models.ShoppingItem, 0, len(list))
	for _, it := range list {
		if !it.Checked {
			out = append(out, it)
		}
	}
	return out
}

// SaveRecipe adds recipe to the saved set. Titles are unique ignoring case.
func SaveRecipe(saved []models.SavedRecipe, recipe models.Recipe, now time.Time) ([]models.SavedRecipe, models.SavedRecipe, error) {
	title := strings.TrimSpace(recipe.Title)
	if title == "" {
		return nil, models.SavedRecipe{}, ErrEmptyName
	}
	for _, s := range saved {
		if strings.EqualFold(strings.TrimSpace(s.Title), title) {
			return nil, models.SavedRecipe{}, ErrDuplicateRecipe
		}
	}
	r := models.SavedRecipe{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  recipe.Description,
		Ingredients:  append([]string{}, recipe.Ingredients...),
		Instructions: append([]string{}, recipe.Instructions...),
		CookTime:     recipe.CookTime,
		// stored timestamps keep millisecond precision
		SavedAt: now.UTC().Truncate(time.Millisecond),
		Color:   codec.DefaultRecipeColor,
	}
	return append(append([]models.SavedRecipe{}, saved...), r), r, nil
}

// RemoveRecipe removes the saved recipe with the given ID.
func RemoveRecipe(saved []models.SavedRecipe, id string) ([]models.SavedRecipe, error) {
	out := make([]models.SavedRecipe, 0, len(saved))
	for _, r := range saved {
		if r.ID != id {
			out = append(out, r)
		}
	}
	if len(out) == len(saved) {
		return nil, ErrItemNotFound
	}
	return out, nil
}
