package codec

import (
	"strings"

	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/pkg/database"
)

// Inventory encodes pantry items.
type Inventory struct {
	ClientID string
}

func (Inventory) Key(item models.PantryItem) string { return InventoryKey(item.Name) }

func (c Inventory) Encode(item models.PantryItem) map[string]interface{} {
	return stamp(map[string]interface{}{
		"item":              item.Name,
		"category":          item.Category,
		"quantity_estimate": item.QuantityEstimate,
	}, c.ClientID)
}

func (Inventory) Decode(doc database.Document) (models.PantryItem, error) {
	name := strings.TrimSpace(str(doc.Data["item"]))
	if name == "" {
		name = doc.ID
	}
	if name == "" {
		return models.PantryItem{}, malformed(doc, "missing item name")
	}
	qty := strings.TrimSpace(str(doc.Data["quantity_estimate"]))
	if qty == "" {
		qty = "1"
	}
	category := str(doc.Data["category"])
	if category == "" {
		category = "Other"
	}
	return models.PantryItem{Name: name, Category: category, QuantityEstimate: qty}, nil
}

// Shopping encodes shopping list items.
type Shopping struct {
	ClientID string
}

func (Shopping) Key(item models.ShoppingItem) string { return item.ID }

func (c Shopping) Encode(item models.ShoppingItem) map[string]interface{} {
	return stamp(map[string]interface{}{
		"item":     item.Name,
		"category": item.Category,
		"checked":  item.Checked,
	}, c.ClientID)
}

func (Shopping) Decode(doc database.Document) (models.ShoppingItem, error) {
	if doc.ID == "" {
		return models.ShoppingItem{}, malformed(doc, "missing id")
	}
	category := str(doc.Data["category"])
	if category == "" {
		category = "Other"
	}
	return models.ShoppingItem{
		ID:       doc.ID,
		Name:     strings.TrimSpace(str(doc.Data["item"])),
		Category: category,
		Checked:  boolean(doc.Data["checked"]),
	}, nil
}
