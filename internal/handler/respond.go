package handler

import (
	"errors"

	"gpx/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// respondError maps a module error onto its HTTP status. Internal errors are
// masked with a generic message; everything in the apperr taxonomy carries
// enough detail for the caller to correct its input.
func respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	msg := err.Error()
	if status == 500 {
		msg = "Internal server error"
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		msg = "Not found"
	}
	c.JSON(status, gin.H{"error": msg})
}

// currentUserID reads the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get("userID")
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
