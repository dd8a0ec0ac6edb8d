package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/pantrysync/internal/ratings"
)

// ListRatings handles GET /ratings.
func (h *Handler) ListRatings(c *gin.Context) {
	list, err := h.ratings.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// AddRating handles POST /ratings.
func (h *Handler) AddRating(c *gin.Context) {
	var req ratings.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	if profile, err := h.users.Get(c.Request.Context(), u.ID); err == nil {
		u = *profile
	}
	r, err := h.ratings.Add(c.Request.Context(), u, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}
