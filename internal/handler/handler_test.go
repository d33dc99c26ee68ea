package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cp-path-builder/backend/internal/curriculum"
	"github.com/cp-path-builder/backend/internal/domain"
	"github.com/cp-path-builder/backend/internal/middleware"
	"github.com/cp-path-builder/backend/internal/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asUser stands in for the auth middleware
func asUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(middleware.UserIDKey, userID)
		}
		c.Next()
	}
}

func do(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

type fakePaths struct {
	create  func(req *domain.CreatePathRequest) (*domain.PracticePath, error)
	get     func(pathID uuid.UUID) (*domain.PracticePath, error)
	list    []domain.PracticePath
	listed  *domain.PathStatus
	skipped int
}

func (f *fakePaths) Preview(_ context.Context, _ uuid.UUID, _ *domain.CreatePathRequest) (*curriculum.Result, error) {
	return &curriculum.Result{
		Problems:   []domain.Problem{{ID: 1, ContestID: 1, Index: "A", Name: "Watermelon"}},
		Candidates: 12,
	}, nil
}

func (f *fakePaths) Create(_ context.Context, _ uuid.UUID, req *domain.CreatePathRequest) (*domain.PracticePath, error) {
	return f.create(req)
}

func (f *fakePaths) Get(_ context.Context, _, pathID uuid.UUID) (*domain.PracticePath, error) {
	return f.get(pathID)
}

func (f *fakePaths) List(_ context.Context, _ uuid.UUID, status *domain.PathStatus) ([]domain.PracticePath, error) {
	f.listed = status
	return f.list, nil
}

func (f *fakePaths) Update(_ context.Context, _, pathID uuid.UUID, _ *domain.UpdatePathRequest) (*domain.PracticePath, error) {
	return f.get(pathID)
}

func (f *fakePaths) Delete(_ context.Context, _, pathID uuid.UUID) error {
	_, err := f.get(pathID)
	return err
}

func (f *fakePaths) MarkSolved(_ context.Context, _, _ uuid.UUID, _ *domain.MarkSolvedRequest) (*domain.SolveResult, error) {
	next := 1
	return &domain.SolveResult{PathProgress: 50, PathStatus: domain.PathStatusActive, NextUnlocked: &next}, nil
}

func (f *fakePaths) Skip(_ context.Context, _, pathID uuid.UUID, position int) (*domain.PracticePath, error) {
	f.skipped = position
	return f.get(pathID)
}

func (f *fakePaths) Attempt(_ context.Context, _, _ uuid.UUID, _ int) (*domain.PracticePath, error) {
	return nil, domain.ErrPathNotActive
}

func pathRouter(userID uuid.UUID, paths PathManager) *gin.Engine {
	h := NewPathHandler(paths)
	r := gin.New()
	g := r.Group("/api/paths", asUser(userID))
	g.POST("", h.CreatePath)
	g.POST("/preview", h.PreviewPath)
	g.GET("", h.GetPaths)
	g.GET("/:id", h.GetPath)
	g.PATCH("/:id", h.UpdatePath)
	g.DELETE("/:id", h.DeletePath)
	g.POST("/:id/solve", h.MarkSolved)
	g.POST("/:id/skip/:position", h.SkipProblem)
	g.POST("/:id/attempt/:position", h.AttemptProblem)
	return r
}

func samplePath(id uuid.UUID) *domain.PracticePath {
	return &domain.PracticePath{
		ID:            id,
		Name:          "DP basics",
		Topics:        []string{"dp"},
		MinRating:     800,
		MaxRating:     1200,
		Mode:          domain.PathModeLearning,
		Status:        domain.PathStatusActive,
		TotalProblems: 2,
		PathProblems: []domain.PathProblem{
			{Position: 0, ProblemID: 1, Status: domain.ProblemStatusUnlocked},
			{Position: 1, ProblemID: 2, Status: domain.ProblemStatusLocked},
		},
	}
}

func TestPathHandler_CreatePath(t *testing.T) {
	userID := uuid.New()
	pathID := uuid.New()
	paths := &fakePaths{
		create: func(req *domain.CreatePathRequest) (*domain.PracticePath, error) {
			if req.Topics[0] == "nothing" {
				return nil, domain.ErrNoMatchingProblems
			}
			if req.Topics[0] == "boom" {
				return nil, errors.New("db down")
			}
			return samplePath(pathID), nil
		},
	}
	r := pathRouter(userID, paths)

	w := do(r, http.MethodPost, "/api/paths", `{"name":"DP basics","topics":["dp"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, pathID.String(), body["id"])
	assert.Len(t, body["problems"], 2)

	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"missing topics", `{"name":"x"}`, http.StatusBadRequest, "Invalid request"},
		{"rating out of range", `{"name":"x","topics":["dp"],"min_rating":100}`, http.StatusBadRequest, "Invalid request"},
		{"unknown mode", `{"name":"x","topics":["dp"],"mode":"speedrun"}`, http.StatusBadRequest, "Invalid request"},
		{"no candidates", `{"name":"x","topics":["nothing"]}`, http.StatusUnprocessableEntity, domain.ErrNoMatchingProblems.Error()},
		{"internal", `{"name":"x","topics":["boom"]}`, http.StatusInternalServerError, "Failed to create path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/paths", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, decodeBody(t, w)["error"])
		})
	}
}

func TestPathHandler_RequiresUser(t *testing.T) {
	r := pathRouter(uuid.Nil, &fakePaths{})

	w := do(r, http.MethodGet, "/api/paths", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPathHandler_PreviewPath(t *testing.T) {
	r := pathRouter(uuid.New(), &fakePaths{})

	w := do(r, http.MethodPost, "/api/paths/preview", `{"name":"x","topics":["dp"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 12, body["candidates"])
	problems := body["problems"].([]any)
	require.Len(t, problems, 1)
	assert.Equal(t, "Watermelon", problems[0].(map[string]any)["name"])
}

func TestPathHandler_GetPaths(t *testing.T) {
	paths := &fakePaths{list: []domain.PracticePath{*samplePath(uuid.New())}}
	r := pathRouter(uuid.New(), paths)

	w := do(r, http.MethodGet, "/api/paths?status=paused", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, paths.listed)
	assert.Equal(t, domain.PathStatusPaused, *paths.listed)

	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["count"])
	listed := body["paths"].([]any)[0].(map[string]any)
	assert.NotContains(t, listed, "problems")

	w = do(r, http.MethodGet, "/api/paths?status=finished", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPathHandler_GetPath(t *testing.T) {
	known := uuid.New()
	foreign := uuid.New()
	paths := &fakePaths{
		get: func(id uuid.UUID) (*domain.PracticePath, error) {
			switch id {
			case known:
				return samplePath(id), nil
			case foreign:
				return nil, domain.ErrForbidden
			}
			return nil, domain.ErrPathNotFound
		},
	}
	r := pathRouter(uuid.New(), paths)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"found", "/api/paths/" + known.String(), http.StatusOK},
		{"other owner", "/api/paths/" + foreign.String(), http.StatusForbidden},
		{"missing", "/api/paths/" + uuid.NewString(), http.StatusNotFound},
		{"bad id", "/api/paths/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, do(r, http.MethodGet, tt.target, "").Code)
		})
	}

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/paths/"+known.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/paths/"+uuid.NewString(), "").Code)
}

func TestPathHandler_Progress(t *testing.T) {
	pathID := uuid.New()
	paths := &fakePaths{
		get: func(id uuid.UUID) (*domain.PracticePath, error) { return samplePath(id), nil },
	}
	r := pathRouter(uuid.New(), paths)
	base := "/api/paths/" + pathID.String()

	w := do(r, http.MethodPost, base+"/solve", `{"problem_id":1,"time_spent_seconds":600}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 50, body["path_progress"])
	assert.EqualValues(t, 1, body["next_unlocked"])

	w = do(r, http.MethodPost, base+"/solve", `{"time_spent_seconds":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, base+"/skip/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, paths.skipped)

	w = do(r, http.MethodPost, base+"/skip/-3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, base+"/attempt/0", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

type fakeProblems struct {
	lastQuery   domain.SearchQuery
	lastExclude *uuid.UUID
	lastLimit   int
}

func (f *fakeProblems) Search(_ context.Context, q domain.SearchQuery) ([]domain.ProblemSummary, error) {
	f.lastQuery = q
	return []domain.ProblemSummary{{ID: 1, Name: "Watermelon"}}, nil
}

func (f *fakeProblems) GetProblem(_ context.Context, id int64) (*domain.Problem, error) {
	if id != 1 {
		return nil, domain.ErrProblemNotFound
	}
	return &domain.Problem{ID: 1, ContestID: 4, Index: "A", Name: "Watermelon"}, nil
}

func (f *fakeProblems) FindSimilar(_ context.Context, _ int64, exclude *uuid.UUID, limit int) ([]domain.SimilarProblem, error) {
	f.lastExclude = exclude
	f.lastLimit = limit
	return []domain.SimilarProblem{{ProblemSummary: domain.ProblemSummary{ID: 2}, Similarity: 0.8}}, nil
}

func (f *fakeProblems) AvailableTags(context.Context) ([]string, error) {
	return []string{"dp", "greedy"}, nil
}

func (f *fakeProblems) Stats(context.Context) (*domain.ProblemStats, error) {
	return &domain.ProblemStats{Total: 3, Rated: 2}, nil
}

func problemRouter(userID uuid.UUID, problems ProblemQueries) *gin.Engine {
	h := NewProblemHandler(problems)
	r := gin.New()
	g := r.Group("/api/problems", asUser(userID))
	g.GET("", h.SearchProblems)
	g.GET("/tags", h.GetTags)
	g.GET("/stats", h.GetProblemStats)
	g.GET("/:id", h.GetProblem)
	g.GET("/:id/similar", h.GetSimilarProblems)
	return r
}

func TestProblemHandler_SearchProblems(t *testing.T) {
	userID := uuid.New()
	problems := &fakeProblems{}
	r := problemRouter(userID, problems)

	w := do(r, http.MethodGet, "/api/problems?tags=dp,greedy&tags=math&min_rating=1200&sort_by=rating&exclude_solved=true&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	q := problems.lastQuery
	assert.Equal(t, []string{"dp", "greedy", "math"}, q.Tags)
	require.NotNil(t, q.MinRating)
	assert.Equal(t, 1200, *q.MinRating)
	assert.Nil(t, q.MaxRating)
	assert.Equal(t, domain.SortBy("rating"), q.SortBy)
	assert.Equal(t, 5, q.Limit)
	require.NotNil(t, q.ExcludeSolvedBy)
	assert.Equal(t, userID, *q.ExcludeSolvedBy)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	for _, target := range []string{
		"/api/problems?sort_by=random",
		"/api/problems?min_rating=100",
		"/api/problems?limit=500",
	} {
		assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, target, "").Code, target)
	}
}

func TestProblemHandler_SearchAnonymousIgnoresExclude(t *testing.T) {
	problems := &fakeProblems{}
	r := problemRouter(uuid.Nil, problems)

	w := do(r, http.MethodGet, "/api/problems?exclude_solved=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, problems.lastQuery.ExcludeSolvedBy)
}

func TestProblemHandler_GetProblem(t *testing.T) {
	r := problemRouter(uuid.Nil, &fakeProblems{})

	w := do(r, http.MethodGet, "/api/problems/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A", decodeBody(t, w)["problem_index"])

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/problems/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/problems/abc", "").Code)
}

func TestProblemHandler_GetSimilarProblems(t *testing.T) {
	userID := uuid.New()
	problems := &fakeProblems{}
	r := problemRouter(userID, problems)

	w := do(r, http.MethodGet, "/api/problems/1/similar?exclude_solved=true&limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, problems.lastLimit)
	require.NotNil(t, problems.lastExclude)
	assert.Equal(t, userID, *problems.lastExclude)

	w = do(r, http.MethodGet, "/api/problems/1/similar", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, problems.lastLimit)
	assert.Nil(t, problems.lastExclude)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/problems/1/similar?limit=0", "").Code)
}

func TestProblemHandler_TagsAndStats(t *testing.T) {
	r := problemRouter(uuid.Nil, &fakeProblems{})

	w := do(r, http.MethodGet, "/api/problems/tags", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"dp", "greedy"}, decodeBody(t, w)["tags"])

	w = do(r, http.MethodGet, "/api/problems/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decodeBody(t, w)["total"])
}

type fakeInsights struct {
	weakN      int
	historyTag string
}

func (f *fakeInsights) UserStats(context.Context, uuid.UUID) (*domain.UserStats, error) {
	return &domain.UserStats{TotalSolved: 7}, nil
}

func (f *fakeInsights) TopicStrengths(context.Context, uuid.UUID) ([]domain.TopicSkillEstimate, error) {
	return []domain.TopicSkillEstimate{{Topic: "dp", EstimatedSkill: 1300}}, nil
}

func (f *fakeInsights) WeakTopics(_ context.Context, _ uuid.UUID, n int) ([]domain.TopicSkillEstimate, error) {
	f.weakN = n
	return nil, nil
}

func (f *fakeInsights) SolvedHistory(_ context.Context, _ uuid.UUID, _ int, tag string) ([]domain.SolvedEntry, error) {
	f.historyTag = tag
	return []domain.SolvedEntry{{Attempts: 2}}, nil
}

func TestUserHandler(t *testing.T) {
	userID := uuid.New()
	insights := &fakeInsights{}
	h := NewUserHandler(insights)
	r := gin.New()
	g := r.Group("/api/users/me", asUser(userID))
	g.GET("", h.GetCurrentUser)
	g.GET("/stats", h.GetUserStats)
	g.GET("/topics", h.GetTopicStrengths)
	g.GET("/weak-topics", h.GetWeakTopics)
	g.GET("/history", h.GetSolvedHistory)

	w := do(r, http.MethodGet, "/api/users/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), decodeBody(t, w)["id"])

	w = do(r, http.MethodGet, "/api/users/me/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, decodeBody(t, w)["total_solved"])

	w = do(r, http.MethodGet, "/api/users/me/topics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["topics"], 1)

	w = do(r, http.MethodGet, "/api/users/me/weak-topics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, insights.weakN)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/users/me/weak-topics?n=0", "").Code)

	w = do(r, http.MethodGet, "/api/users/me/history?tag=dp", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dp", insights.historyTag)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/users/me/history?limit=x", "").Code)
}

type fakeTools struct {
	lastUser uuid.UUID
	lastArgs string
}

func (f *fakeTools) Declarations() []tools.Declaration {
	return []tools.Declaration{{Name: "get_available_tags", Parameters: json.RawMessage(`{"type":"object"}`)}}
}

func (f *fakeTools) Execute(_ context.Context, userID uuid.UUID, name string, args json.RawMessage) (any, error) {
	if name != "get_available_tags" {
		return nil, domain.NewDomainError(domain.ErrUnknownTool, "unknown tool: "+name)
	}
	f.lastUser = userID
	f.lastArgs = string(args)
	return map[string]any{"tags": []string{"dp"}}, nil
}

func TestToolHandler(t *testing.T) {
	userID := uuid.New()
	executor := &fakeTools{}
	h := NewToolHandler(executor)
	r := gin.New()
	r.GET("/api/tools", h.ListTools)
	r.POST("/api/tools/:name", asUser(userID), h.InvokeTool)
	r.POST("/anon/tools/:name", h.InvokeTool)

	w := do(r, http.MethodGet, "/api/tools", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = do(r, http.MethodPost, "/api/tools/get_available_tags", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, executor.lastUser)
	assert.Equal(t, `{}`, executor.lastArgs)
	body := decodeBody(t, w)
	assert.Equal(t, "get_available_tags", body["tool"])
	assert.Equal(t, map[string]any{"tags": []any{"dp"}}, body["result"])

	w = do(r, http.MethodPost, "/api/tools/drop_tables", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown tool: drop_tables", decodeBody(t, w)["error"])

	w = do(r, http.MethodPost, "/anon/tools/get_available_tags", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/tools/get_available_tags", strings.Repeat("x", maxToolArgsBytes+10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
