package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InitializeUser handles POST /users/initialize. It is called after every
// client side sign in and creates the profile on the first one.
func (h *Handler) InitializeUser(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	profile, created, err := h.users.GetOrCreate(c.Request.Context(), u)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if s, err := h.sessions.GetOrStart(c.Request.Context(), *profile); err != nil {
		h.logger.Warn("Failed to start session", zap.String("uid", u.ID), zap.Error(err))
	} else {
		s.SetUser(*profile)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, UserResponse{User: profile, Created: created})
}

// GetCurrentUser handles GET /users/me.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	profile, err := h.users.Get(c.Request.Context(), u.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// MarkTutorialSeen handles POST /users/me/tutorial.
func (h *Handler) MarkTutorialSeen(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	profile, err := h.users.MarkTutorialSeen(c.Request.Context(), u.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
