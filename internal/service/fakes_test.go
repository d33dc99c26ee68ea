package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cp-path-builder/backend/internal/domain"
)

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

func rated(id int64, rating, solved int, tags ...string) domain.Problem {
	r := rating
	return domain.Problem{
		ID:          id,
		ContestID:   1000 + int(id),
		Index:       "A",
		Name:        "Problem",
		Rating:      &r,
		SolvedCount: solved,
		Tags:        tags,
	}
}

// fakeProblemRepo serves an in-memory corpus
type fakeProblemRepo struct {
	problems []domain.Problem
	solved   map[uuid.UUID][]int

	lastFilter domain.ProblemFilter
	searches   int
}

func (r *fakeProblemRepo) FetchCandidates(_ context.Context, topics []string, minRating, maxRating int, excludeIDs []int64) ([]domain.Problem, error) {
	var out []domain.Problem
	for _, p := range r.problems {
		if p.HasRating() && *p.Rating >= minRating && *p.Rating <= maxRating &&
			p.HasAnyTag(topics) && !slices.Contains(excludeIDs, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProblemRepo) FetchProblemsByTagOverlap(_ context.Context, tags []string, window domain.RatingWindow, excludeIDs []int64, limit int) ([]domain.Problem, error) {
	var out []domain.Problem
	for _, p := range r.problems {
		if !p.HasRating() || !window.Contains(*p.Rating) || slices.Contains(excludeIDs, p.ID) {
			continue
		}
		if len(tags) > 0 && !p.HasAnyTag(tags) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeProblemRepo) FetchSolvedRatings(_ context.Context, userID uuid.UUID, _ string) ([]int, error) {
	return r.solved[userID], nil
}

func (r *fakeProblemRepo) FindByID(_ context.Context, id int64) (*domain.Problem, error) {
	for i := range r.problems {
		if r.problems[i].ID == id {
			p := r.problems[i]
			return &p, nil
		}
	}
	return nil, domain.ErrProblemNotFound
}

func (r *fakeProblemRepo) FindByCode(_ context.Context, contestID int, index string) (*domain.Problem, error) {
	for i := range r.problems {
		if r.problems[i].ContestID == contestID && r.problems[i].Index == index {
			p := r.problems[i]
			return &p, nil
		}
	}
	return nil, domain.ErrProblemNotFound
}

func (r *fakeProblemRepo) Search(_ context.Context, filter domain.ProblemFilter) ([]domain.Problem, error) {
	r.searches++
	r.lastFilter = filter
	var out []domain.Problem
	for _, p := range r.problems {
		if p.HasRating() && p.HasAllTags(filter.Tags) && !slices.Contains(filter.ExcludeIDs, p.ID) {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Problem) int {
		if *a.Rating != *b.Rating {
			return *a.Rating - *b.Rating
		}
		return b.SolvedCount - a.SolvedCount
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeProblemRepo) ListTags(context.Context) ([]string, error) {
	set := map[string]struct{}{}
	for _, p := range r.problems {
		for _, t := range p.Tags {
			set[t] = struct{}{}
		}
	}
	var tags []string
	for t := range set {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags, nil
}

func (r *fakeProblemRepo) FindAllRated(context.Context) ([]domain.Problem, error) {
	var out []domain.Problem
	for _, p := range r.problems {
		if p.HasRating() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProblemRepo) UpsertBatch(_ context.Context, problems []domain.Problem) error {
	r.problems = append(r.problems, problems...)
	return nil
}

func (r *fakeProblemRepo) Count(context.Context) (int64, error) {
	return int64(len(r.problems)), nil
}

// fakePathRepo stores paths by id
type fakePathRepo struct {
	mu      sync.Mutex
	paths   map[uuid.UUID]*domain.PracticePath
	updates int
}

func newFakePathRepo() *fakePathRepo {
	return &fakePathRepo{paths: make(map[uuid.UUID]*domain.PracticePath)}
}

func (r *fakePathRepo) Create(_ context.Context, path *domain.PracticePath) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[path.ID] = clonePath(path)
	return nil
}

func (r *fakePathRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.PracticePath, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.paths[id]
	if !ok {
		return nil, domain.ErrPathNotFound
	}
	return clonePath(p), nil
}

func (r *fakePathRepo) FindByUserID(_ context.Context, userID uuid.UUID, status *domain.PathStatus) ([]domain.PracticePath, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PracticePath
	for _, p := range r.paths {
		if p.UserID == userID && (status == nil || p.Status == *status) {
			out = append(out, *clonePath(p))
		}
	}
	return out, nil
}

// Modify holds the repo lock for the whole read-modify-write, like the row
// lock in the database implementation
func (r *fakePathRepo) Modify(_ context.Context, id uuid.UUID, fn func(path *domain.PracticePath) error) (*domain.PracticePath, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.paths[id]
	if !ok {
		return nil, domain.ErrPathNotFound
	}
	path := clonePath(stored)
	if err := fn(path); err != nil {
		return nil, err
	}
	r.paths[id] = clonePath(path)
	r.updates++
	return path, nil
}

func (r *fakePathRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.paths[id]; !ok {
		return domain.ErrPathNotFound
	}
	delete(r.paths, id)
	return nil
}

func clonePath(p *domain.PracticePath) *domain.PracticePath {
	c := *p
	c.PathProblems = slices.Clone(p.PathProblems)
	return &c
}

// fakeProgressRepo keeps progress records in insertion order
type fakeProgressRepo struct {
	mu       sync.Mutex
	records  []domain.UserProgress
	solves   []domain.SolveRecord
	attempts int
	solveErr error
}

func (r *fakeProgressRepo) RecordAttempt(_ context.Context, _ uuid.UUID, _ int64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	return nil
}

func (r *fakeProgressRepo) RecordSolve(_ context.Context, rec domain.SolveRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.solveErr != nil {
		return r.solveErr
	}
	r.solves = append(r.solves, rec)
	return nil
}

func (r *fakeProgressRepo) SolvedProblemIDs(_ context.Context, userID uuid.UUID) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, rec := range r.records {
		if rec.UserID == userID && rec.Status == domain.AttemptStatusSolved {
			ids = append(ids, rec.ProblemID)
		}
	}
	return ids, nil
}

func (r *fakeProgressRepo) FindByUser(_ context.Context, userID uuid.UUID, filter domain.ProgressFilter) ([]domain.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UserProgress
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if filter.Tag != "" && !rec.Problem.HasAnyTag([]string{filter.Tag}) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) CountByStatus(_ context.Context, userID uuid.UUID) (map[domain.AttemptStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.AttemptStatus]int64)
	for _, rec := range r.records {
		if rec.UserID == userID {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

func (r *fakeProgressRepo) TotalTimeSpent(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, rec := range r.records {
		if rec.UserID == userID {
			total += int64(rec.TimeSpentSeconds)
		}
	}
	return total, nil
}

// memCache is an in-process Cache
type memCache struct {
	values map[string]any
	gets   int
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string]any)}
}

func (c *memCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	c.gets++
	v, ok := c.values[key]
	if !ok {
		return false, nil
	}
	if d, ok := dest.(*[]domain.ProblemSummary); ok {
		*d = v.([]domain.ProblemSummary)
	}
	if d, ok := dest.(*[]string); ok {
		*d = v.([]string)
	}
	return true, nil
}

func (c *memCache) SetJSON(_ context.Context, key string, value any) error {
	c.values[key] = value
	return nil
}

// recordingMetrics counts metric calls
type recordingMetrics struct {
	mu        sync.Mutex
	generated int
	solved    int
	lastSize  int
}

func (m *recordingMetrics) PathGenerated(_ context.Context, _ string, size int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated++
	m.lastSize = size
}

func (m *recordingMetrics) ProblemSolved(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solved++
}

func (m *recordingMetrics) ToolCalled(context.Context, string, error) {}
