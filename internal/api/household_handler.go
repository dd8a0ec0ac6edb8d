package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/pantrysync/internal/household"
	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/internal/session"
)

func householdResponse(s *session.Session) HouseholdResponse {
	return HouseholdResponse{Household: s.Household(), Scope: s.Scope().String()}
}

// currentHousehold returns the household the caller's session follows.
func (h *Handler) currentHousehold(c *gin.Context) (*session.Session, models.User, *models.Household, bool) {
	s, u, ok := h.session(c)
	if !ok {
		return nil, u, nil, false
	}
	hh := s.Household()
	if hh == nil {
		respondError(c, h.logger, household.ErrNoHousehold)
		return nil, u, nil, false
	}
	return s, u, hh, true
}

// GetHousehold handles GET /household.
func (h *Handler) GetHousehold(c *gin.Context) {
	s, _, _, ok := h.currentHousehold(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, householdResponse(s))
}

// CreateHousehold handles POST /household.
func (h *Handler) CreateHousehold(c *gin.Context) {
	var req CreateHouseholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, u, ok := h.session(c)
	if !ok {
		return
	}
	hh, err := h.households.Create(c.Request.Context(), u, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	s.SetHousehold(hh)
	c.JSON(http.StatusCreated, householdResponse(s))
}

// InviteMember handles POST /household/invitations.
func (h *Handler) InviteMember(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, u, hh, ok := h.currentHousehold(c)
	if !ok {
		return
	}
	updated, err := h.households.Invite(c.Request.Context(), u, hh.ID, req.Email, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	s.SetHousehold(updated)
	c.JSON(http.StatusCreated, householdResponse(s))
}

// AcceptInvitation handles POST /household/accept.
func (h *Handler) AcceptInvitation(c *gin.Context) {
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, u, ok := h.session(c)
	if !ok {
		return
	}
	hh, err := h.households.Accept(c.Request.Context(), u, req.HouseholdID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	s.SetHousehold(hh)
	c.JSON(http.StatusOK, householdResponse(s))
}

// RemoveMember handles DELETE /household/members/:member. The member is
// addressed by user ID or email.
func (h *Handler) RemoveMember(c *gin.Context) {
	s, u, hh, ok := h.currentHousehold(c)
	if !ok {
		return
	}
	updated, err := h.households.RemoveMember(c.Request.Context(), u, hh.ID, c.Param("member"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	s.SetHousehold(updated)
	c.JSON(http.StatusOK, householdResponse(s))
}

// LeaveHousehold handles POST /household/leave.
func (h *Handler) LeaveHousehold(c *gin.Context) {
	s, u, hh, ok := h.currentHousehold(c)
	if !ok {
		return
	}
	if _, err := h.households.Leave(c.Request.Context(), u, hh.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	s.SetHousehold(nil)
	c.JSON(http.StatusOK, householdResponse(s))
}
