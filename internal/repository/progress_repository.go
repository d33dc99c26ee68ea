package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cp-path-builder/backend/internal/domain"
)

var progressConflict = []clause.Column{{Name: "user_id"}, {Name: "problem_id"}}

// progressRepository implements domain.ProgressRepository using GORM
type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *gorm.DB) domain.ProgressRepository {
	return &progressRepository{db: db}
}

// RecordAttempt creates an attempted record or bumps the attempt counter
func (r *progressRepository) RecordAttempt(ctx context.Context, userID uuid.UUID, problemID int64, at time.Time) error {
	progress := domain.UserProgress{
		UserID:           userID,
		ProblemID:        problemID,
		Status:           domain.AttemptStatusAttempted,
		Attempts:         1,
		FirstAttemptedAt: at,
	}
	return r.db.WithContext(ctx).
		Omit("Problem").
		Clauses(clause.OnConflict{
			Columns: progressConflict,
			DoUpdates: clause.Assignments(map[string]any{
				"attempts": gorm.Expr("user_progress.attempts + 1"),
			}),
		}).
		Create(&progress).Error
}

// RecordSolve marks a problem solved, accumulating time and hints. The first
// solve time is kept on repeated solves.
func (r *progressRepository) RecordSolve(ctx context.Context, rec domain.SolveRecord) error {
	solvedAt := rec.SolvedAt
	progress := domain.UserProgress{
		UserID:           rec.UserID,
		ProblemID:        rec.ProblemID,
		Status:           domain.AttemptStatusSolved,
		Attempts:         1,
		TimeSpentSeconds: rec.TimeSpentSeconds,
		HintsUsed:        rec.HintsUsed,
		FirstAttemptedAt: solvedAt,
		SolvedAt:         &solvedAt,
	}
	return r.db.WithContext(ctx).
		Omit("Problem").
		Clauses(clause.OnConflict{
			Columns: progressConflict,
			DoUpdates: clause.Assignments(map[string]any{
				"status":             domain.AttemptStatusSolved,
				"solved_at":          gorm.Expr("COALESCE(user_progress.solved_at, EXCLUDED.solved_at)"),
				"time_spent_seconds": gorm.Expr("user_progress.time_spent_seconds + EXCLUDED.time_spent_seconds"),
				"hints_used":         gorm.Expr("GREATEST(user_progress.hints_used, EXCLUDED.hints_used)"),
			}),
		}).
		Create(&progress).Error
}

// SolvedProblemIDs returns the ids of every problem the user solved
func (r *progressRepository) SolvedProblemIDs(ctx context.Context, userID uuid.UUID) ([]int64, error) {
	var ids []int64
	result := r.db.WithContext(ctx).
		Model(&domain.UserProgress{}).
		Where("user_id = ? AND status = ?", userID, domain.AttemptStatusSolved).
		Pluck("problem_id", &ids)
	return ids, result.Error
}

// FindByUser returns a user's progress records with problems loaded, most recent solves first
func (r *progressRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter domain.ProgressFilter) ([]domain.UserProgress, error) {
	query := r.db.WithContext(ctx).
		Preload("Problem").
		Where("user_progress.user_id = ?", userID)

	if filter.Status != nil {
		query = query.Where("user_progress.status = ?", *filter.Status)
	}
	if filter.Tag != "" {
		query = query.
			Joins("JOIN problems ON problems.id = user_progress.problem_id").
			Where("? = ANY(problems.tags)", domain.NormalizeTag(filter.Tag))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []domain.UserProgress
	result := query.
		Order("user_progress.solved_at DESC NULLS LAST").
		Order("user_progress.first_attempted_at DESC").
		Find(&records)
	return records, result.Error
}

// CountByStatus counts a user's progress records per status
func (r *progressRepository) CountByStatus(ctx context.Context, userID uuid.UUID) (map[domain.AttemptStatus]int64, error) {
	var rows []struct {
		Status domain.AttemptStatus
		Count  int64
	}
	result := r.db.WithContext(ctx).
		Model(&domain.UserProgress{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	counts := make(map[domain.AttemptStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// TotalTimeSpent sums the seconds a user spent across all problems
func (r *progressRepository) TotalTimeSpent(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	result := r.db.WithContext(ctx).
		Model(&domain.UserProgress{}).
		Select("COALESCE(SUM(time_spent_seconds), 0)").
		Where("user_id = ?", userID).
		Scan(&total)
	return total, result.Error
}
