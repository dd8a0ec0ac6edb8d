package codec

import (
	"strings"

	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/pkg/database"
)

// SavedRecipes encodes saved recipes.
type SavedRecipes struct {
	ClientID string
}

func (SavedRecipes) Key(r models.SavedRecipe) string { return r.ID }

func (c SavedRecipes) Encode(r models.SavedRecipe) map[string]interface{} {
	return stamp(map[string]interface{}{
		"title":        r.Title,
		"description":  r.Description,
		"ingredients":  toInterfaces(r.Ingredients),
		"instructions": toInterfaces(r.Instructions),
		"cookTime":     r.CookTime,
		"savedAt":      r.SavedAt,
		"color":        r.Color,
	}, c.ClientID)
}

func (SavedRecipes) Decode(doc database.Document) (models.SavedRecipe, error) {
	if doc.ID == "" {
		return models.SavedRecipe{}, malformed(doc, "missing id")
	}
	title := strings.TrimSpace(str(doc.Data["title"]))
	if title == "" {
		title = "Untitled recipe"
	}
	color := str(doc.Data["color"])
	if color == "" {
		color = DefaultRecipeColor
	}
	return models.SavedRecipe{
		ID:           doc.ID,
		Title:        title,
		Description:  str(doc.Data["description"]),
		Ingredients:  stringList(doc.Data["ingredients"]),
		Instructions: stringList(doc.Data["instructions"]),
		CookTime:     str(doc.Data["cookTime"]),
		SavedAt:      timestamp(doc.Data["savedAt"]),
		Color:        color,
	}, nil
}

// DefaultRecipeColor is the placeholder color of recipes saved without one.
const DefaultRecipeColor = "#E0E0E0"

// EncodeSnapshot encodes an embedded recipe snapshot.
func EncodeSnapshot(s models.RecipeSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"title":        s.Title,
		"ingredients":  toInterfaces(s.Ingredients),
		"instructions": toInterfaces(s.Instructions),
		"prepTime":     s.PrepTime,
		"cookTime":     s.CookTime,
		"servings":     s.Servings,
	}
}

// DecodeSnapshot decodes an embedded recipe snapshot.
func DecodeSnapshot(v interface{}) models.RecipeSnapshot {
	m := object(v)
	return models.RecipeSnapshot{
		Title:        strings.TrimSpace(str(m["title"])),
		Ingredients:  stringList(m["ingredients"]),
		Instructions: stringList(m["instructions"]),
		PrepTime:     str(m["prepTime"]),
		CookTime:     str(m["cookTime"]),
		Servings:     integer(m["servings"]),
	}
}
