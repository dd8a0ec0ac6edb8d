package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/household"
	"github.com/example/pantrysync/internal/middleware"
	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/internal/ratings"
	"github.com/example/pantrysync/internal/session"
	"github.com/example/pantrysync/internal/syncer"
	"github.com/example/pantrysync/internal/users"
)

// Handler serves the /api/v1 endpoints.
type Handler struct {
	sessions   *session.Manager
	households *household.Service
	users      *users.Service
	ratings    *ratings.Service
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(sessions *session.Manager, households *household.Service, us *users.Service, rs *ratings.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions:   sessions,
		households: households,
		users:      us,
		ratings:    rs,
		logger:     logger.Named("api"),
		now:        time.Now,
	}
}

func (h *Handler) currentUser(c *gin.Context) (models.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not authenticated"})
	}
	return u, ok
}

// session returns the running session of the caller, starting it if needed.
func (h *Handler) session(c *gin.Context) (*session.Session, models.User, bool) {
	u, ok := h.currentUser(c)
	if !ok {
		return nil, u, false
	}
	s, err := h.sessions.GetOrStart(c.Request.Context(), u)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, u, false
	}
	return s, u, true
}

func items[T any](s *syncer.Synchronizer[T]) []T {
	out := s.Items()
	if out == nil {
		out = []T{}
	}
	return out
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP", "sessions": h.sessions.Len()})
}

// SyncStatus handles GET /sync/status.
func (h *Handler) SyncStatus(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Status())
}

// Notifications handles GET /notifications.
func (h *Handler) Notifications(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Notifications())
}
