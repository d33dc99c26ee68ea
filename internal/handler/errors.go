package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cp-path-builder/backend/internal/domain"
)

// errorStatus maps domain errors to HTTP status codes
var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrProblemNotFound, http.StatusNotFound},
	{domain.ErrPathNotFound, http.StatusNotFound},
	{domain.ErrProblemNotInPath, http.StatusNotFound},
	{domain.ErrUnknownTool, http.StatusNotFound},
	{domain.ErrNoMatchingProblems, http.StatusUnprocessableEntity},
	{domain.ErrInvalidPathConfig, http.StatusBadRequest},
	{domain.ErrInvalidToolArguments, http.StatusBadRequest},
	{domain.ErrInvalidPathStatus, http.StatusBadRequest},
	{domain.ErrBadRequest, http.StatusBadRequest},
	{domain.ErrPathNotActive, http.StatusConflict},
	{domain.ErrProblemLocked, http.StatusConflict},
	{domain.ErrInvalidTransition, http.StatusConflict},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
}

// respondError writes the status and message for err. Errors outside the
// domain are reported as fallback with a 500.
func respondError(c *gin.Context, err error, fallback string) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{
				"error": err.Error(),
			})
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": fallback,
	})
}

// bindError reports a malformed request body or query
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}
