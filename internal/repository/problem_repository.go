package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cp-path-builder/backend/internal/domain"
)

const (
	defaultOverlapLimit = 200
	upsertBatchSize     = 500
)

// problemRepository implements domain.ProblemRepository using GORM
type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository creates a new problem repository
func NewProblemRepository(db *gorm.DB) domain.ProblemRepository {
	return &problemRepository{db: db}
}

// rated restricts a query to problems carrying a rating
func rated(db *gorm.DB) *gorm.DB {
	return db.Where("rating IS NOT NULL")
}

func excluding(ids []int64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(ids) == 0 {
			return db
		}
		return db.Where("id NOT IN ?", ids)
	}
}

// FetchCandidates returns rated problems in [minRating, maxRating] sharing at
// least one tag with topics, in id order
func (r *problemRepository) FetchCandidates(ctx context.Context, topics []string, minRating, maxRating int, excludeIDs []int64) ([]domain.Problem, error) {
	slugs := domain.NormalizeTags(topics)
	if len(slugs) == 0 {
		return nil, nil
	}

	var problems []domain.Problem
	result := r.db.WithContext(ctx).
		Scopes(rated, excluding(excludeIDs)).
		Where("rating BETWEEN ? AND ?", minRating, maxRating).
		Where("tags && ?", pq.Array(slugs)).
		Order("id ASC").
		Find(&problems)

	return problems, result.Error
}

// FetchProblemsByTagOverlap returns rated problems inside window. When tags is
// non-empty only problems sharing one of them qualify.
func (r *problemRepository) FetchProblemsByTagOverlap(ctx context.Context, tags []string, window domain.RatingWindow, excludeIDs []int64, limit int) ([]domain.Problem, error) {
	if limit <= 0 {
		limit = defaultOverlapLimit
	}

	query := r.db.WithContext(ctx).
		Scopes(rated, excluding(excludeIDs)).
		Where("rating BETWEEN ? AND ?", window.Min, window.Max)

	if slugs := domain.NormalizeTags(tags); len(slugs) > 0 {
		query = query.Where("tags && ?", pq.Array(slugs))
	}

	var problems []domain.Problem
	result := query.Order("id ASC").Limit(limit).Find(&problems)
	return problems, result.Error
}

// FetchSolvedRatings returns the ratings of rated problems the user solved under topic
func (r *problemRepository) FetchSolvedRatings(ctx context.Context, userID uuid.UUID, topic string) ([]int, error) {
	var ratings []int
	result := r.db.WithContext(ctx).
		Model(&domain.Problem{}).
		Joins("JOIN user_progress ON user_progress.problem_id = problems.id").
		Where("user_progress.user_id = ? AND user_progress.status = ?", userID, domain.AttemptStatusSolved).
		Where("problems.rating IS NOT NULL").
		Where("? = ANY(problems.tags)", domain.NormalizeTag(topic)).
		Pluck("problems.rating", &ratings)

	return ratings, result.Error
}

// FindByID finds a problem by its ID
func (r *problemRepository) FindByID(ctx context.Context, id int64) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&problem)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProblemNotFound
		}
		return nil, result.Error
	}
	return &problem, nil
}

// FindByCode finds a problem by contest id and problem index, e.g. 1920 and "C1"
func (r *problemRepository) FindByCode(ctx context.Context, contestID int, index string) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.db.WithContext(ctx).
		Where("contest_id = ? AND problem_index = ?", contestID, strings.ToUpper(index)).
		First(&problem)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProblemNotFound
		}
		return nil, result.Error
	}
	return &problem, nil
}

// Search returns rated problems matching every filter criterion
func (r *problemRepository) Search(ctx context.Context, filter domain.ProblemFilter) ([]domain.Problem, error) {
	query := r.db.WithContext(ctx).Scopes(rated, excluding(filter.ExcludeIDs))

	if slugs := domain.NormalizeTags(filter.Tags); len(slugs) > 0 {
		query = query.Where("tags @> ?", pq.Array(slugs))
	}
	if filter.MinRating != nil {
		query = query.Where("rating >= ?", *filter.MinRating)
	}
	if filter.MaxRating != nil {
		query = query.Where("rating <= ?", *filter.MaxRating)
	}
	if filter.MinSolvedCount != nil {
		query = query.Where("solved_count >= ?", *filter.MinSolvedCount)
	}
	if filter.SearchText != "" {
		query = query.Where("name ILIKE ?", "%"+filter.SearchText+"%")
	}

	switch filter.SortBy {
	case domain.SortBySolvedCount:
		query = query.Order("solved_count DESC").Order("id ASC")
	case domain.SortByRating:
		query = query.Order("rating ASC").Order("id ASC")
	default:
		query = query.Order("rating ASC").Order("solved_count DESC").Order("id ASC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var problems []domain.Problem
	result := query.Find(&problems)
	return problems, result.Error
}

// ListTags returns every distinct tag in the corpus, sorted
func (r *problemRepository) ListTags(ctx context.Context) ([]string, error) {
	var tags []string
	result := r.db.WithContext(ctx).
		Raw("SELECT DISTINCT unnest(tags) AS tag FROM problems ORDER BY tag").
		Scan(&tags)
	return tags, result.Error
}

// FindAllRated returns every rated problem
func (r *problemRepository) FindAllRated(ctx context.Context) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.db.WithContext(ctx).Scopes(rated).Order("id ASC").Find(&problems)
	return problems, result.Error
}

// UpsertBatch inserts problems, refreshing existing rows keyed by contest and index
func (r *problemRepository) UpsertBatch(ctx context.Context, problems []domain.Problem) error {
	if len(problems) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "contest_id"}, {Name: "problem_index"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "rating", "solved_count", "tags", "contest_name", "url", "updated_at",
			}),
		}).
		CreateInBatches(problems, upsertBatchSize).Error
}

// Count returns the total number of problems
func (r *problemRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.Problem{}).Count(&count)
	return count, result.Error
}
