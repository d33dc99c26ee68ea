package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/cp-path-builder/backend/internal/curriculum"
	"github.com/cp-path-builder/backend/internal/domain"
	"github.com/cp-path-builder/backend/internal/handler"
	"github.com/cp-path-builder/backend/internal/infrastructure"
	"github.com/cp-path-builder/backend/internal/middleware"
)

type nopHTTPMetrics struct{}

func (nopHTTPMetrics) HTTPRequest(context.Context, string, string, int, time.Duration) {}

type staticVerifier struct{ userID uuid.UUID }

func (v staticVerifier) ValidateAccessToken(token string) (uuid.UUID, error) {
	if token != "valid" {
		return uuid.Nil, errors.New("invalid")
	}
	return v.userID, nil
}

type userInsights struct{}

func (userInsights) UserStats(context.Context, uuid.UUID) (*domain.UserStats, error) {
	return &domain.UserStats{TotalSolved: 3}, nil
}

func (userInsights) TopicStrengths(context.Context, uuid.UUID) ([]domain.TopicSkillEstimate, error) {
	return nil, nil
}

func (userInsights) WeakTopics(context.Context, uuid.UUID, int) ([]domain.TopicSkillEstimate, error) {
	return nil, nil
}

func (userInsights) SolvedHistory(context.Context, uuid.UUID, int, string) ([]domain.SolvedEntry, error) {
	return nil, nil
}

func testRouter(t *testing.T, healthErr error, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config := &infrastructure.Config{
		Server:    infrastructure.ServerConfig{Environment: "test", AllowedOrigins: []string{"*"}},
		Telemetry: infrastructure.TelemetryConfig{ServiceVersion: "1.2.3", MetricsEndpoint: "/metrics"},
	}

	return newRouter(routerDeps{
		config:    config,
		logger:    zap.NewNop(),
		telemetry: &infrastructure.Telemetry{Tracer: noop.NewTracerProvider().Tracer("test")},
		metrics:   nopHTTPMetrics{},
		tokens:    staticVerifier{userID: uuid.New()},
		limiter:   limiter,
		health:    func(context.Context) error { return healthErr },
		paths:     handler.NewPathHandler(nil),
		problems:  handler.NewProblemHandler(nil),
		users:     handler.NewUserHandler(userInsights{}),
		tools:     handler.NewToolHandler(nil),
	})
}

func get(r *gin.Engine, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	w := get(testRouter(t, nil, nil), "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"1.2.3"}`, w.Body.String())

	w = get(testRouter(t, errors.New("db down"), nil), "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	r := testRouter(t, nil, nil)

	for _, target := range []string{"/api/paths", "/api/users/me/stats", "/api/users/me"} {
		assert.Equal(t, http.StatusUnauthorized, get(r, target, "").Code, target)
		assert.Equal(t, http.StatusUnauthorized, get(r, target, "forged").Code, target)
	}

	w := get(r, "/api/users/me/stats", "valid")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_solved":3`)
}

func TestRouter_RateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(0.001, 1)
	r := testRouter(t, nil, limiter)

	assert.Equal(t, http.StatusOK, get(r, "/api/users/me", "valid").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/api/users/me", "valid").Code)

	// health checks are not limited
	assert.Equal(t, http.StatusOK, get(r, "/health", "").Code)
}

func TestPrintPath(t *testing.T) {
	rating := 800
	result := &curriculum.Result{
		Problems: []domain.Problem{
			{ContestID: 4, Index: "A", Name: "Watermelon", Rating: &rating, SolvedCount: 400000, Tags: []string{"math"}},
		},
		Quotas:     curriculum.Quotas{800: 1},
		Candidates: 5,
	}

	var buf bytes.Buffer
	require.NoError(t, printPath(&buf, result))

	out := buf.String()
	assert.Contains(t, out, "4A")
	assert.Contains(t, out, "Watermelon")
	assert.Contains(t, out, "1 problems from 5 candidates, quotas 800:1")
}

func parsedGenerateCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := newGenerateCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestGenerateConfig_UnsetFlagsUsePathSettings(t *testing.T) {
	settings := &infrastructure.PathConfig{DefaultSize: 25, MaxSize: 60, RatingStep: 200, MinRating: 1000, MaxRating: 1400, RandomSeed: 42}

	cfg, seed, err := generateConfig(parsedGenerateCmd(t, "--topics", "DP,greedy"), settings)
	require.NoError(t, err)

	assert.Equal(t, []string{"dp", "greedy"}, cfg.Topics)
	assert.Equal(t, 25, cfg.ProblemCount)
	assert.Equal(t, 1000, cfg.MinRating)
	assert.Equal(t, 1400, cfg.MaxRating)
	assert.Equal(t, 200, cfg.RatingStep)
	assert.Equal(t, domain.PathModeLearning, cfg.Mode)
	assert.Equal(t, int64(42), seed)
}

func TestGenerateConfig_FlagsOverridePathSettings(t *testing.T) {
	settings := &infrastructure.PathConfig{DefaultSize: 25, MaxSize: 60, RatingStep: 100, MinRating: 800, MaxRating: 3500, RandomSeed: 42}

	cmd := parsedGenerateCmd(t, "--topics", "dp", "--min", "1200", "--max", "1500", "--count", "12", "--seed", "0", "--mode", "challenge")
	cfg, seed, err := generateConfig(cmd, settings)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.ProblemCount)
	assert.Equal(t, 1200, cfg.MinRating)
	assert.Equal(t, 1500, cfg.MaxRating)
	assert.Equal(t, domain.PathModeChallenge, cfg.Mode)
	assert.Zero(t, seed, "an explicit zero seeds from the clock")
}

func TestGenerateConfig_Rejects(t *testing.T) {
	settings := &infrastructure.PathConfig{DefaultSize: 25, MaxSize: 60, RatingStep: 100, MinRating: 1000, MaxRating: 1400}

	tests := []struct {
		name string
		args []string
	}{
		{"count above max size", []string{"--topics", "dp", "--count", "61"}},
		{"range outside window", []string{"--topics", "dp", "--min", "800"}},
		{"inverted range", []string{"--topics", "dp", "--min", "1300", "--max", "1100"}},
		{"unknown mode", []string{"--topics", "dp", "--mode", "speedrun"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := generateConfig(parsedGenerateCmd(t, tt.args...), settings)
			assert.ErrorIs(t, err, domain.ErrInvalidPathConfig)
		})
	}
}
