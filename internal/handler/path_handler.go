package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cp-path-builder/backend/internal/curriculum"
	"github.com/cp-path-builder/backend/internal/domain"
	"github.com/cp-path-builder/backend/internal/middleware"
)

// PathManager is the path workflow used by PathHandler
type PathManager interface {
	Preview(ctx context.Context, userID uuid.UUID, req *domain.CreatePathRequest) (*curriculum.Result, error)
	Create(ctx context.Context, userID uuid.UUID, req *domain.CreatePathRequest) (*domain.PracticePath, error)
	Get(ctx context.Context, userID, pathID uuid.UUID) (*domain.PracticePath, error)
	List(ctx context.Context, userID uuid.UUID, status *domain.PathStatus) ([]domain.PracticePath, error)
	Update(ctx context.Context, userID, pathID uuid.UUID, req *domain.UpdatePathRequest) (*domain.PracticePath, error)
	Delete(ctx context.Context, userID, pathID uuid.UUID) error
	MarkSolved(ctx context.Context, userID, pathID uuid.UUID, req *domain.MarkSolvedRequest) (*domain.SolveResult, error)
	Skip(ctx context.Context, userID, pathID uuid.UUID, position int) (*domain.PracticePath, error)
	Attempt(ctx context.Context, userID, pathID uuid.UUID, position int) (*domain.PracticePath, error)
}

// PathHandler handles practice path HTTP requests
type PathHandler struct {
	paths PathManager
}

// NewPathHandler creates a new path handler
func NewPathHandler(paths PathManager) *PathHandler {
	return &PathHandler{
		paths: paths,
	}
}

// PreviewPath generates a path without saving it
// POST /api/paths/preview
func (h *PathHandler) PreviewPath(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.CreatePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.paths.Preview(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err, "Failed to generate path")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"problems":   domain.Summaries(result.Problems),
		"quotas":     result.Quotas,
		"candidates": result.Candidates,
	})
}

// CreatePath generates and saves a new path for the authenticated user
// POST /api/paths
func (h *PathHandler) CreatePath(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.CreatePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	path, err := h.paths.Create(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err, "Failed to create path")
		return
	}

	c.JSON(http.StatusCreated, path.ToResponse())
}

// GetPaths returns the authenticated user's paths
// GET /api/paths?status=active
func (h *PathHandler) GetPaths(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var status *domain.PathStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.PathStatus(raw)
		switch s {
		case domain.PathStatusActive, domain.PathStatusPaused, domain.PathStatusCompleted, domain.PathStatusAbandoned:
			status = &s
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid status filter",
			})
			return
		}
	}

	paths, err := h.paths.List(c.Request.Context(), userID, status)
	if err != nil {
		respondError(c, err, "Failed to retrieve paths")
		return
	}

	responses := make([]domain.PathResponse, len(paths))
	for i := range paths {
		responses[i] = paths[i].ToResponse()
		responses[i].Problems = nil
	}

	c.JSON(http.StatusOK, gin.H{
		"paths": responses,
		"count": len(responses),
	})
}

// GetPath returns a single path with its problems
// GET /api/paths/:id
func (h *PathHandler) GetPath(c *gin.Context) {
	userID, pathID, ok := h.pathParams(c)
	if !ok {
		return
	}

	path, err := h.paths.Get(c.Request.Context(), userID, pathID)
	if err != nil {
		respondError(c, err, "Failed to retrieve path")
		return
	}

	c.JSON(http.StatusOK, path.ToResponse())
}

// UpdatePath renames a path or changes its status
// PATCH /api/paths/:id
func (h *PathHandler) UpdatePath(c *gin.Context) {
	userID, pathID, ok := h.pathParams(c)
	if !ok {
		return
	}

	var req domain.UpdatePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	path, err := h.paths.Update(c.Request.Context(), userID, pathID, &req)
	if err != nil {
		respondError(c, err, "Failed to update path")
		return
	}

	c.JSON(http.StatusOK, path.ToResponse())
}

// DeletePath removes a path
// DELETE /api/paths/:id
func (h *PathHandler) DeletePath(c *gin.Context) {
	userID, pathID, ok := h.pathParams(c)
	if !ok {
		return
	}

	if err := h.paths.Delete(c.Request.Context(), userID, pathID); err != nil {
		respondError(c, err, "Failed to delete path")
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkSolved marks a problem in the path as solved
// POST /api/paths/:id/solve
func (h *PathHandler) MarkSolved(c *gin.Context) {
	userID, pathID, ok := h.pathParams(c)
	if !ok {
		return
	}

	var req domain.MarkSolvedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.paths.MarkSolved(c.Request.Context(), userID, pathID, &req)
	if err != nil {
		respondError(c, err, "Failed to mark problem solved")
		return
	}

	c.JSON(http.StatusOK, result)
}

// SkipProblem skips the problem at a position
// POST /api/paths/:id/skip/:position
func (h *PathHandler) SkipProblem(c *gin.Context) {
	h.advance(c, h.paths.Skip, "Failed to skip problem")
}

// AttemptProblem records an attempt on the problem at a position
// POST /api/paths/:id/attempt/:position
func (h *PathHandler) AttemptProblem(c *gin.Context) {
	h.advance(c, h.paths.Attempt, "Failed to record attempt")
}

type advanceFunc func(ctx context.Context, userID, pathID uuid.UUID, position int) (*domain.PracticePath, error)

func (h *PathHandler) advance(c *gin.Context, fn advanceFunc, fallback string) {
	userID, pathID, ok := h.pathParams(c)
	if !ok {
		return
	}

	position, err := strconv.Atoi(c.Param("position"))
	if err != nil || position < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid position",
		})
		return
	}

	path, err := fn(c.Request.Context(), userID, pathID, position)
	if err != nil {
		respondError(c, err, fallback)
		return
	}

	c.JSON(http.StatusOK, path.ToResponse())
}

// pathParams extracts the authenticated user and the :id path parameter
func (h *PathHandler) pathParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid path ID",
		})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, pathID, true
}
