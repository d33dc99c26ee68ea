package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"slices"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cp-path-builder/backend/internal/curriculum"
	"github.com/cp-path-builder/backend/internal/domain"
)

const (
	DefaultSearchLimit  = 10
	MaxSearchLimit      = 100
	DefaultSimilarLimit = 10
	DefaultHistoryLimit = 20
	DefaultWeakTopics   = 5
	recentSolvesLimit   = 10

	searchCachePrefix = "search:"
	tagsCacheKey      = "tags"
)

// CorpusCachePrefixes lists the cache keys derived from the problem corpus.
// They go stale whenever the corpus is reseeded.
func CorpusCachePrefixes() []string {
	return []string{searchCachePrefix, tagsCacheKey}
}

// RecommendService answers the read-side queries behind the coaching tools:
// search, similarity, topic strengths and user statistics
type RecommendService struct {
	problemRepo  domain.ProblemRepository
	progressRepo domain.ProgressRepository
	pathRepo     domain.PathRepository
	cache        Cache
	tracer       trace.Tracer
	logger       *zap.Logger
}

// NewRecommendService creates a new recommend service
func NewRecommendService(
	problemRepo domain.ProblemRepository,
	progressRepo domain.ProgressRepository,
	pathRepo domain.PathRepository,
	cache Cache,
	tracer trace.Tracer,
	logger *zap.Logger,
) *RecommendService {
	if cache == nil {
		cache = NopCache()
	}
	return &RecommendService{
		problemRepo:  problemRepo,
		progressRepo: progressRepo,
		pathRepo:     pathRepo,
		cache:        cache,
		tracer:       tracer,
		logger:       logger,
	}
}

// Search returns rated problems matching the query. Queries that do not depend
// on a user's history are served from the cache when possible.
func (s *RecommendService) Search(ctx context.Context, q domain.SearchQuery) ([]domain.ProblemSummary, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.Search")
	defer span.End()

	q.Tags = domain.NormalizeTags(q.Tags)
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	q.Limit = min(q.Limit, MaxSearchLimit)
	q.Offset = max(q.Offset, 0)
	if q.SortBy == "" {
		q.SortBy = domain.SortByEducationalScore
	}
	if !q.SortBy.Valid() {
		return nil, domain.NewDomainError(domain.ErrBadRequest, "sort_by must be one of rating, solved_count, educational_score")
	}

	span.SetAttributes(
		attribute.StringSlice("search.tags", q.Tags),
		attribute.String("search.sort_by", string(q.SortBy)),
		attribute.Int("search.limit", q.Limit),
	)

	cacheKey := ""
	if q.ExcludeSolvedBy == nil {
		cacheKey = searchCacheKey(q)
		var cached []domain.ProblemSummary
		if hit, err := s.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
			s.logger.Warn("Search cache read failed", zap.Error(err))
		} else if hit {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
	}

	filter := domain.ProblemFilter{
		Tags:           q.Tags,
		MinRating:      q.MinRating,
		MaxRating:      q.MaxRating,
		MinSolvedCount: q.MinSolvedCount,
		SearchText:     q.SearchText,
		SortBy:         q.SortBy,
		Limit:          q.Limit,
		Offset:         q.Offset,
	}
	if q.ExcludeSolvedBy != nil {
		solved, err := s.progressRepo.SolvedProblemIDs(ctx, *q.ExcludeSolvedBy)
		if err != nil {
			return nil, err
		}
		filter.ExcludeIDs = solved
	}

	problems, err := s.problemRepo.Search(ctx, filter)
	if err != nil {
		s.logger.Error("Problem search failed", zap.Error(err))
		return nil, err
	}

	if q.SortBy == domain.SortByEducationalScore {
		rankByEducationalScore(problems)
	}

	summaries := domain.Summaries(problems)
	if cacheKey != "" {
		if err := s.cache.SetJSON(ctx, cacheKey, summaries); err != nil {
			s.logger.Warn("Search cache write failed", zap.Error(err))
		}
	}
	return summaries, nil
}

// rankByEducationalScore keeps rating ascending and orders equal ratings by
// educational score, best first
func rankByEducationalScore(problems []domain.Problem) {
	scores := make(map[int64]float64, len(problems))
	for i := range problems {
		scores[problems[i].ID] = curriculum.EducationalScore(&problems[i])
	}
	slices.SortStableFunc(problems, func(a, b domain.Problem) int {
		if ra, rb := a.RatingOr(0), b.RatingOr(0); ra != rb {
			return ra - rb
		}
		sa, sb := scores[a.ID], scores[b.ID]
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		default:
			return 0
		}
	})
}

func searchCacheKey(q domain.SearchQuery) string {
	raw, _ := json.Marshal(q)
	sum := sha256.Sum256(raw)
	return searchCachePrefix + hex.EncodeToString(sum[:12])
}

// GetProblem returns a single problem
func (s *RecommendService) GetProblem(ctx context.Context, id int64) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.GetProblem")
	defer span.End()

	span.SetAttributes(attribute.Int64("problem.id", id))
	return s.problemRepo.FindByID(ctx, id)
}

// GetProblemByCode returns a problem by its contest id and index
func (s *RecommendService) GetProblemByCode(ctx context.Context, contestID int, index string) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.GetProblemByCode")
	defer span.End()

	span.SetAttributes(
		attribute.Int("problem.contest_id", contestID),
		attribute.String("problem.index", index),
	)
	return s.problemRepo.FindByCode(ctx, contestID, index)
}

// FindSimilar ranks problems by tag overlap and rating proximity to the
// reference problem. The reference itself is never returned.
func (s *RecommendService) FindSimilar(ctx context.Context, problemID int64, excludeSolvedBy *uuid.UUID, limit int) ([]domain.SimilarProblem, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.FindSimilar")
	defer span.End()

	span.SetAttributes(attribute.Int64("problem.id", problemID))

	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	ref, err := s.problemRepo.FindByID(ctx, problemID)
	if err != nil {
		return nil, err
	}

	exclude := []int64{ref.ID}
	if excludeSolvedBy != nil {
		solved, err := s.progressRepo.SolvedProblemIDs(ctx, *excludeSolvedBy)
		if err != nil {
			return nil, err
		}
		exclude = append(exclude, solved...)
	}

	window := curriculum.CandidateWindow(ref)
	candidates, err := s.problemRepo.FetchProblemsByTagOverlap(ctx, ref.Tags, window, exclude, curriculum.MaxSimilarCandidates)
	if err != nil {
		return nil, err
	}

	ranked := curriculum.Rank(ref, candidates, exclude, limit)
	out := make([]domain.SimilarProblem, len(ranked))
	for i, r := range ranked {
		out[i] = domain.SimilarProblem{
			ProblemSummary: r.Problem.ToSummary(),
			Similarity:     math.Round(r.Score*1000) / 1000,
		}
	}
	return out, nil
}

// TopicStrengths estimates the user's skill in every topic they have solved a
// problem under, weakest first
func (s *RecommendService) TopicStrengths(ctx context.Context, userID uuid.UUID) ([]domain.TopicSkillEstimate, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.TopicStrengths")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	records, err := s.progressRepo.FindByUser(ctx, userID, domain.ProgressFilter{})
	if err != nil {
		return nil, err
	}
	return topicStrengths(records), nil
}

type topicTally struct {
	solved    int
	attempted int
	ratings   []int
	maxRating int
}

// topicStrengths aggregates progress records per tag
func topicStrengths(records []domain.UserProgress) []domain.TopicSkillEstimate {
	tallies := make(map[string]*topicTally)
	tally := func(tag string) *topicTally {
		t, ok := tallies[tag]
		if !ok {
			t = &topicTally{}
			tallies[tag] = t
		}
		return t
	}

	for _, rec := range records {
		for _, tag := range rec.Problem.Tags {
			t := tally(tag)
			if rec.Status != domain.AttemptStatusSolved {
				t.attempted++
				continue
			}
			t.solved++
			if rec.Problem.HasRating() {
				rating := *rec.Problem.Rating
				t.ratings = append(t.ratings, rating)
				t.maxRating = max(t.maxRating, rating)
			}
		}
	}

	out := make([]domain.TopicSkillEstimate, 0, len(tallies))
	for topic, t := range tallies {
		if t.solved == 0 {
			continue
		}
		avg := 0
		if len(t.ratings) > 0 {
			sum := 0
			for _, r := range t.ratings {
				sum += r
			}
			avg = int(math.Round(float64(sum) / float64(len(t.ratings))))
		}
		out = append(out, domain.TopicSkillEstimate{
			Topic:             topic,
			EstimatedSkill:    curriculum.EstimateSkill(t.ratings),
			ProblemsSolved:    t.solved,
			ProblemsAttempted: t.attempted,
			AvgRatingSolved:   avg,
			MaxRatingSolved:   t.maxRating,
		})
	}

	slices.SortFunc(out, func(a, b domain.TopicSkillEstimate) int {
		if a.EstimatedSkill != b.EstimatedSkill {
			return a.EstimatedSkill - b.EstimatedSkill
		}
		if a.Topic < b.Topic {
			return -1
		}
		if a.Topic > b.Topic {
			return 1
		}
		return 0
	})
	return out
}

// WeakTopics returns the n weakest topics
func (s *RecommendService) WeakTopics(ctx context.Context, userID uuid.UUID, n int) ([]domain.TopicSkillEstimate, error) {
	if n <= 0 {
		n = DefaultWeakTopics
	}
	strengths, err := s.TopicStrengths(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(strengths) > n {
		strengths = strengths[:n]
	}
	return strengths, nil
}

// TopicSkill estimates the user's skill in a single topic
func (s *RecommendService) TopicSkill(ctx context.Context, userID uuid.UUID, topic string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.TopicSkill")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("topic", topic),
	)

	ratings, err := s.problemRepo.FetchSolvedRatings(ctx, userID, topic)
	if err != nil {
		return 0, err
	}
	return curriculum.EstimateSkill(ratings), nil
}

// UserStats gathers the user's practice statistics
func (s *RecommendService) UserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.UserStats")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	type part struct {
		name    string
		counts  map[domain.AttemptStatus]int64
		seconds int64
		records []domain.UserProgress
		paths   []domain.PracticePath
		err     error
	}

	resultChan := make(chan part, 4)

	// Fan-out
	go func() {
		counts, err := s.progressRepo.CountByStatus(ctx, userID)
		resultChan <- part{name: "counts", counts: counts, err: err}
	}()
	go func() {
		seconds, err := s.progressRepo.TotalTimeSpent(ctx, userID)
		resultChan <- part{name: "time", seconds: seconds, err: err}
	}()
	go func() {
		records, err := s.progressRepo.FindByUser(ctx, userID, domain.ProgressFilter{})
		resultChan <- part{name: "records", records: records, err: err}
	}()
	go func() {
		paths, err := s.pathRepo.FindByUserID(ctx, userID, nil)
		resultChan <- part{name: "paths", paths: paths, err: err}
	}()

	// Fan-in
	stats := &domain.UserStats{
		RatingDistribution: make(map[string]int),
		TopicStats:         []domain.TopicSkillEstimate{},
		RecentSolves:       []domain.SolvedEntry{},
	}
	for range 4 {
		result := <-resultChan
		if result.err != nil {
			s.logger.Error("Failed to load user statistics",
				zap.String("part", result.name),
				zap.String("user_id", userID.String()),
				zap.Error(result.err),
			)
			continue
		}

		switch result.name {
		case "counts":
			for status, n := range result.counts {
				stats.TotalAttempted += n
				if status == domain.AttemptStatusSolved {
					stats.TotalSolved = n
				}
			}
		case "time":
			stats.TotalTimeSpentHours = math.Round(float64(result.seconds)/360) / 10
		case "records":
			stats.TopicStats = topicStrengths(result.records)
			for i := range result.records {
				rec := &result.records[i]
				if rec.Status != domain.AttemptStatusSolved {
					continue
				}
				if rec.Problem.HasRating() {
					stats.RatingDistribution[ratingBucket(*rec.Problem.Rating)]++
				}
				if len(stats.RecentSolves) < recentSolvesLimit {
					stats.RecentSolves = append(stats.RecentSolves, rec.ToSolvedEntry())
				}
			}
		case "paths":
			for _, p := range result.paths {
				switch p.Status {
				case domain.PathStatusActive:
					stats.ActivePaths++
				case domain.PathStatusCompleted:
					stats.CompletedPaths++
				}
			}
		}
	}

	return stats, nil
}

// ratingBucket returns the 100-wide bucket label for rating, e.g. "1400"
func ratingBucket(rating int) string {
	return strconv.Itoa(rating / 100 * 100)
}

// SolvedHistory returns the user's most recent solves, optionally under one tag
func (s *RecommendService) SolvedHistory(ctx context.Context, userID uuid.UUID, limit int, tag string) ([]domain.SolvedEntry, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.SolvedHistory")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	solved := domain.AttemptStatusSolved
	records, err := s.progressRepo.FindByUser(ctx, userID, domain.ProgressFilter{
		Status: &solved,
		Tag:    domain.NormalizeTag(tag),
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.SolvedEntry, len(records))
	for i := range records {
		out[i] = records[i].ToSolvedEntry()
	}
	return out, nil
}

// AvailableTags lists every tag in the corpus
func (s *RecommendService) AvailableTags(ctx context.Context) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.AvailableTags")
	defer span.End()

	var tags []string
	if hit, err := s.cache.GetJSON(ctx, tagsCacheKey, &tags); err == nil && hit {
		return tags, nil
	}

	tags, err := s.problemRepo.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, tagsCacheKey, tags); err != nil {
		s.logger.Warn("Tag cache write failed", zap.Error(err))
	}
	return tags, nil
}

// Stats summarizes the rated corpus per band and per tag
func (s *RecommendService) Stats(ctx context.Context) (*domain.ProblemStats, error) {
	ctx, span := s.tracer.Start(ctx, "RecommendService.Stats")
	defer span.End()

	total, err := s.problemRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	problems, err := s.problemRepo.FindAllRated(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.ProblemStats{
		Total:  int(total),
		Rated:  len(problems),
		ByBand: make(map[int]int),
		ByTag:  make(map[string]int),
	}
	for _, b := range curriculum.Partition(problems, curriculum.DefaultRatingStep) {
		stats.ByBand[b.Key] = b.Size()
	}
	for _, p := range problems {
		for _, tag := range p.Tags {
			stats.ByTag[tag]++
		}
	}
	return stats, nil
}
