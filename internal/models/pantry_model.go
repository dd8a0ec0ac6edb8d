package models

// PantryItem is one inventory entry. Name is the natural key, compared
// case-insensitively.
type PantryItem struct {
	Name             string `json:"item" firestore:"item"`
	Category         string `json:"category" firestore:"category"`
	QuantityEstimate string `json:"quantity_estimate" firestore:"quantity_estimate"`
}

// ShoppingItem is one shopping list entry keyed by its document ID.
type ShoppingItem struct {
	ID       string `json:"id" firestore:"-"`
	Name     string `json:"item" firestore:"item"`
	Category string `json:"category" firestore:"category"`
	Checked  bool   `json:"checked" firestore:"checked"`
}
