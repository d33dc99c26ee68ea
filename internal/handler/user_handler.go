package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cp-path-builder/backend/internal/domain"
	"github.com/cp-path-builder/backend/internal/middleware"
)

// UserInsights is the per-user read side used by UserHandler
type UserInsights interface {
	UserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)
	TopicStrengths(ctx context.Context, userID uuid.UUID) ([]domain.TopicSkillEstimate, error)
	WeakTopics(ctx context.Context, userID uuid.UUID, n int) ([]domain.TopicSkillEstimate, error)
	SolvedHistory(ctx context.Context, userID uuid.UUID, limit int, tag string) ([]domain.SolvedEntry, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	insights UserInsights
}

// NewUserHandler creates a new user handler
func NewUserHandler(insights UserInsights) *UserHandler {
	return &UserHandler{
		insights: insights,
	}
}

// GetCurrentUser returns the id the request is authenticated as
// GET /api/users/me
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id": userID,
	})
}

// GetUserStats returns the user's practice statistics
// GET /api/users/me/stats
func (h *UserHandler) GetUserStats(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	stats, err := h.insights.UserStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetTopicStrengths returns per-topic skill estimates, weakest first
// GET /api/users/me/topics
func (h *UserHandler) GetTopicStrengths(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	topics, err := h.insights.TopicStrengths(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve topic strengths")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"topics": topics,
	})
}

// GetWeakTopics returns the weakest topics
// GET /api/users/me/weak-topics?n=5
func (h *UserHandler) GetWeakTopics(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	n, err := strconv.Atoi(c.DefaultQuery("n", "5"))
	if err != nil || n < 1 || n > 20 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "n must be between 1 and 20",
		})
		return
	}

	topics, err := h.insights.WeakTopics(c.Request.Context(), userID, n)
	if err != nil {
		respondError(c, err, "Failed to retrieve weak topics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"topics": topics,
	})
}

// GetSolvedHistory returns recent solves
// GET /api/users/me/history?limit=20&tag=dp
func (h *UserHandler) GetSolvedHistory(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "limit must be between 1 and 100",
		})
		return
	}

	history, err := h.insights.SolvedHistory(c.Request.Context(), userID, limit, c.Query("tag"))
	if err != nil {
		respondError(c, err, "Failed to retrieve history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"solved": history,
		"count":  len(history),
	})
}
