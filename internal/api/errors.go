package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/household"
	"github.com/example/pantrysync/internal/mealplan"
	"github.com/example/pantrysync/internal/pantry"
	"github.com/example/pantrysync/internal/ratings"
	"github.com/example/pantrysync/internal/syncer"
	"github.com/example/pantrysync/internal/users"
	"github.com/example/pantrysync/pkg/database"
)

var statusByError = []struct {
	err    error
	status int
}{
	{household.ErrNoHousehold, http.StatusNotFound},
	{household.ErrMemberNotFound, http.StatusNotFound},
	{pantry.ErrItemNotFound, http.StatusNotFound},
	{mealplan.ErrMealNotFound, http.StatusNotFound},
	{users.ErrUserNotFound, http.StatusNotFound},
	{database.ErrNotFound, http.StatusNotFound},

	{household.ErrNotMember, http.StatusForbidden},
	{household.ErrNotAdmin, http.StatusForbidden},
	{database.ErrPermissionDenied, http.StatusForbidden},

	{household.ErrAlreadyMember, http.StatusConflict},
	{household.ErrAlreadyInHousehold, http.StatusConflict},
	{pantry.ErrDuplicateRecipe, http.StatusConflict},

	{pantry.ErrEmptyName, http.StatusBadRequest},
	{mealplan.ErrDayOutsideWindow, http.StatusBadRequest},
	{ratings.ErrInvalidRating, http.StatusBadRequest},
	{ratings.ErrEmptyTitle, http.StatusBadRequest},

	{syncer.ErrNoScope, http.StatusServiceUnavailable},
	{database.ErrUnavailable, http.StatusServiceUnavailable},
}

// classify maps a service error to an HTTP status and the sentinel it wraps.
func classify(err error) (int, error) {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status, e.err
		}
	}
	return http.StatusInternalServerError, nil
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, sentinel := classify(err)
	if sentinel == nil {
		logger.Error("Internal Server Error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "An unexpected internal server error occurred."})
		return
	}
	resp := ErrorResponse{Error: sentinel.Error()}
	if msg := err.Error(); msg != resp.Error {
		resp.Details = msg
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
}
