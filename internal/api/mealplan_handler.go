package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/pantrysync/internal/mealplan"
	"github.com/example/pantrysync/internal/models"
)

// GetMealPlan handles GET /meal-plan. The reply always holds the seven days
// starting today.
func (h *Handler) GetMealPlan(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, items(s.MealPlan()))
}

// AddMeal handles POST /meal-plan/:date/meals.
func (h *Handler) AddMeal(c *gin.Context) {
	var req AddMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	date := c.Param("date")
	var added models.MealPlanItem
	err := s.MealPlan().Mutate(func(plan []models.DayPlan) ([]models.DayPlan, error) {
		out, meal, err := mealplan.AddMeal(plan, date, req.Recipe)
		added = meal
		return out, err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// RemoveMeal handles DELETE /meal-plan/:date/meals/:mealId.
func (h *Handler) RemoveMeal(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	date, mealID := c.Param("date"), c.Param("mealId")
	err := s.MealPlan().Mutate(func(plan []models.DayPlan) ([]models.DayPlan, error) {
		return mealplan.RemoveMeal(plan, date, mealID)
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
