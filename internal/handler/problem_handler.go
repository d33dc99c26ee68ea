package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cp-path-builder/backend/internal/domain"
	"github.com/cp-path-builder/backend/internal/middleware"
)

// ProblemQueries is the read side used by ProblemHandler and UserHandler
type ProblemQueries interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.ProblemSummary, error)
	GetProblem(ctx context.Context, id int64) (*domain.Problem, error)
	FindSimilar(ctx context.Context, problemID int64, excludeSolvedBy *uuid.UUID, limit int) ([]domain.SimilarProblem, error)
	AvailableTags(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*domain.ProblemStats, error)
}

// ProblemHandler handles problem-related HTTP requests
type ProblemHandler struct {
	problems ProblemQueries
}

// NewProblemHandler creates a new problem handler
func NewProblemHandler(problems ProblemQueries) *ProblemHandler {
	return &ProblemHandler{
		problems: problems,
	}
}

type searchParams struct {
	Tags           []string `form:"tags"`
	MinRating      *int     `form:"min_rating" binding:"omitempty,min=800,max=3500"`
	MaxRating      *int     `form:"max_rating" binding:"omitempty,min=800,max=3500"`
	MinSolvedCount *int     `form:"min_solved_count" binding:"omitempty,min=0"`
	Query          string   `form:"q"`
	SortBy         string   `form:"sort_by" binding:"omitempty,oneof=rating solved_count educational_score"`
	ExcludeSolved  bool     `form:"exclude_solved"`
	Limit          int      `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset         int      `form:"offset" binding:"omitempty,min=0"`
}

// splitTags accepts both repeated and comma separated tag parameters
func splitTags(raw []string) []string {
	var tags []string
	for _, r := range raw {
		for _, t := range strings.Split(r, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// SearchProblems searches the corpus
// GET /api/problems?tags=dp,greedy&min_rating=1200&sort_by=rating
func (h *ProblemHandler) SearchProblems(c *gin.Context) {
	var params searchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	query := domain.SearchQuery{
		Tags:           splitTags(params.Tags),
		MinRating:      params.MinRating,
		MaxRating:      params.MaxRating,
		MinSolvedCount: params.MinSolvedCount,
		SearchText:     params.Query,
		SortBy:         domain.SortBy(params.SortBy),
		Limit:          params.Limit,
		Offset:         params.Offset,
	}
	if params.ExcludeSolved {
		if userID, ok := middleware.GetUserID(c); ok {
			query.ExcludeSolvedBy = &userID
		}
	}

	problems, err := h.problems.Search(c.Request.Context(), query)
	if err != nil {
		respondError(c, err, "Failed to search problems")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"problems": problems,
		"count":    len(problems),
	})
}

// GetProblem returns a specific problem by ID
// GET /api/problems/:id
func (h *ProblemHandler) GetProblem(c *gin.Context) {
	id, ok := problemIDParam(c)
	if !ok {
		return
	}

	problem, err := h.problems.GetProblem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve problem")
		return
	}

	c.JSON(http.StatusOK, problem.ToSummary())
}

// GetSimilarProblems ranks problems similar to the given one
// GET /api/problems/:id/similar?limit=10&exclude_solved=true
func (h *ProblemHandler) GetSimilarProblems(c *gin.Context) {
	id, ok := problemIDParam(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 50 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "limit must be between 1 and 50",
		})
		return
	}

	var exclude *uuid.UUID
	if c.Query("exclude_solved") == "true" {
		if userID, ok := middleware.GetUserID(c); ok {
			exclude = &userID
		}
	}

	similar, err := h.problems.FindSimilar(c.Request.Context(), id, exclude, limit)
	if err != nil {
		respondError(c, err, "Failed to find similar problems")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"problems": similar,
		"count":    len(similar),
	})
}

// GetTags lists every tag in the corpus
// GET /api/problems/tags
func (h *ProblemHandler) GetTags(c *gin.Context) {
	tags, err := h.problems.AvailableTags(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve tags")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags": tags,
	})
}

// GetProblemStats returns statistics about the problem set
// GET /api/problems/stats
func (h *ProblemHandler) GetProblemStats(c *gin.Context) {
	stats, err := h.problems.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve problem statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func problemIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid problem ID",
		})
		return 0, false
	}
	return id, true
}
