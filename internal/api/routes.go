package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes registers every endpoint on router. auth authenticates the
// caller and must set the user with the middleware package.
func SetupRoutes(router *gin.Engine, h *Handler, auth gin.HandlerFunc) {
	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	v1.GET("/health", h.Health)

	authed := v1.Group("", auth)
	{
		userGroup := authed.Group("/users")
		userGroup.POST("/initialize", h.InitializeUser)
		userGroup.GET("/me", h.GetCurrentUser)
		userGroup.POST("/me/tutorial", h.MarkTutorialSeen)

		authed.GET("/inventory", h.ListInventory)
		authed.POST("/inventory", h.AddInventoryItem)
		authed.DELETE("/inventory/:name", h.RemoveInventoryItem)

		authed.GET("/shopping-list", h.ListShopping)
		authed.POST("/shopping-list", h.AddShoppingItem)
		authed.POST("/shopping-list/clear-checked", h.ClearCheckedShopping)
		authed.PATCH("/shopping-list/:id", h.UpdateShoppingItem)
		authed.DELETE("/shopping-list/:id", h.RemoveShoppingItem)

		authed.GET("/saved-recipes", h.ListSavedRecipes)
		authed.POST("/saved-recipes", h.SaveRecipe)
		authed.DELETE("/saved-recipes/:id", h.RemoveSavedRecipe)

		authed.GET("/meal-plan", h.GetMealPlan)
		authed.POST("/meal-plan/:date/meals", h.AddMeal)
		authed.DELETE("/meal-plan/:date/meals/:mealId", h.RemoveMeal)

		authed.GET("/household", h.GetHousehold)
		authed.POST("/household", h.CreateHousehold)
		authed.POST("/household/invitations", h.InviteMember)
		authed.POST("/household/accept", h.AcceptInvitation)
		authed.DELETE("/household/members/:member", h.RemoveMember)
		authed.POST("/household/leave", h.LeaveHousehold)

		authed.GET("/ratings", h.ListRatings)
		authed.POST("/ratings", h.AddRating)

		authed.GET("/notifications", h.Notifications)
		authed.GET("/sync/status", h.SyncStatus)
	}
}
