package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/internal/pantry"
)

// ListInventory handles GET /inventory.
func (h *Handler) ListInventory(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, items(s.Inventory()))
}

// AddInventoryItem handles POST /inventory. Adding a name already in the
// pantry increases its quantity.
func (h *Handler) AddInventoryItem(c *gin.Context) {
	var req AddPantryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	item := models.PantryItem{Name: req.Item, Category: req.Category, QuantityEstimate: req.QuantityEstimate}
	err := s.Inventory().Mutate(func(list []models.PantryItem) ([]models.PantryItem, error) {
		return pantry.AddPantryItem(list, item)
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, items(s.Inventory()))
}

// RemoveInventoryItem handles DELETE /inventory/:name.
func (h *Handler) RemoveInventoryItem(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	name := c.Param("name")
	err := s.Inventory().Mutate(func(list []models.PantryItem) ([]models.PantryItem, error) {
		return pantry.RemovePantryItem(list, name)
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListShopping handles GET /shopping-list.
func (h *Handler) ListShopping(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, items(s.Shopping()))
}

// AddShoppingItem handles POST /shopping-list.
func (h *Handler) AddShoppingItem(c *gin.Context) {
	var req AddShoppingItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	var added models.ShoppingItem
	err := s.Shopping().Mutate(func(list []models.ShoppingItem) ([]models.ShoppingItem, error) {
		out, item, err := pantry.AddShoppingItem(list, req.Item, req.Category)
		added = item
		return out, err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// UpdateShoppingItem handles PATCH /shopping-list/:id.
func (h *Handler) UpdateShoppingItem(c *gin.Context) {
	var req UpdateShoppingItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	err := s.Shopping().Mutate(func(list []models.ShoppingItem) ([]models.ShoppingItem, error) {
		return pantry.SetChecked(list, id, *req.Checked)
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	for _, it := range s.Shopping().Items() {
		if it.ID == id {
			c.JSON(http.StatusOK, it)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// RemoveShoppingItem handles DELETE /shopping-list/:id.
func (h *Handler) RemoveShoppingItem(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	err := s.Shopping().Mutate(func(list []models.ShoppingItem) ([]models.ShoppingItem, error) {
		return pantry.RemoveShoppingItem(list, id)
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCheckedShopping handles POST /shopping-list/clear-checked.
func (h *Handler) ClearCheckedShopping(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	err := s.Shopping().Mutate(func(list []models.ShoppingItem) ([]models.ShoppingItem, error) {
		return pantry.ClearChecked(list), nil
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items(s.Shopping()))
}

// ListSavedRecipes handles GET /saved-recipes.
func (h *Handler) ListSavedRecipes(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, items(s.Recipes()))
}

// SaveRecipe handles POST /saved-recipes.
func (h *Handler) SaveRecipe(c *gin.Context) {
	var req models.Recipe
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	var saved models.SavedRecipe
	err := s.Recipes().Mutate(func(list []models.SavedRecipe) ([]models.SavedRecipe, error) {
		out, r, err := pantry.SaveRecipe(list, req, h.now())
		saved = r
		return out, err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// RemoveSavedRecipe handles DELETE /saved-recipes/:id.
func (h *Handler) RemoveSavedRecipe(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	err := s.Recipes().Mutate(func(list []models.SavedRecipe) ([]models.SavedRecipe, error) {
		return pantry.RemoveRecipe(list, id)
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
