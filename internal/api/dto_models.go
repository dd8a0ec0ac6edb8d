package api

import (
	"github.com/example/pantrysync/internal/middleware"
	"github.com/example/pantrysync/internal/models"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse = middleware.ErrorResponse

// AddPantryItemRequest is the body of POST /inventory.
type AddPantryItemRequest struct {
	Item             string `json:"item" binding:"required"`
	Category         string `json:"category"`
	QuantityEstimate string `json:"quantity_estimate"`
}

// AddShoppingItemRequest is the body of POST /shopping-list.
type AddShoppingItemRequest struct {
	Item     string `json:"item" binding:"required"`
	Category string `json:"category"`
}

// UpdateShoppingItemRequest is the body of PATCH /shopping-list/:id.
type UpdateShoppingItemRequest struct {
	Checked *bool `json:"checked" binding:"required"`
}

// AddMealRequest is the body of POST /meal-plan/:date/meals.
type AddMealRequest struct {
	Recipe models.Recipe `json:"recipe"`
}

// CreateHouseholdRequest is the body of POST /household.
type CreateHouseholdRequest struct {
	Name string `json:"name"`
}

// InviteRequest is the body of POST /household/invitations.
type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

// AcceptRequest is the body of POST /household/accept.
type AcceptRequest struct {
	HouseholdID string `json:"householdId" binding:"required"`
}

// UserResponse wraps a profile with whether it was just created.
type UserResponse struct {
	User    *models.User `json:"user"`
	Created bool         `json:"created"`
}

// HouseholdResponse wraps a household and the scope the session now uses.
type HouseholdResponse struct {
	Household *models.Household `json:"household"`
	Scope     string            `json:"scope"`
}
