package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cp-path-builder/backend/internal/domain"
)

// pathRepository implements domain.PathRepository using GORM
type pathRepository struct {
	db *gorm.DB
}

// NewPathRepository creates a new practice path repository
func NewPathRepository(db *gorm.DB) domain.PathRepository {
	return &pathRepository{db: db}
}

func withOrderedProblems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("PathProblems", func(db *gorm.DB) *gorm.DB {
			return db.Order("path_problems.position ASC")
		}).
		Preload("PathProblems.Problem")
}

// Create persists a path and its problems in one transaction
func (r *pathRepository) Create(ctx context.Context, path *domain.PracticePath) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(path).Error; err != nil {
			return err
		}
		if len(path.PathProblems) == 0 {
			return nil
		}
		for i := range path.PathProblems {
			path.PathProblems[i].PathID = path.ID
		}
		return tx.Omit("Problem").Create(&path.PathProblems).Error
	})
}

// FindByID finds a path with its problems loaded in position order
func (r *pathRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.PracticePath, error) {
	var path domain.PracticePath
	result := r.db.WithContext(ctx).
		Scopes(withOrderedProblems).
		Where("id = ?", id).
		First(&path)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPathNotFound
		}
		return nil, result.Error
	}
	return &path, nil
}

// FindByUserID returns a user's paths, newest first, optionally filtered by status
func (r *pathRepository) FindByUserID(ctx context.Context, userID uuid.UUID, status *domain.PathStatus) ([]domain.PracticePath, error) {
	query := r.db.WithContext(ctx).
		Scopes(withOrderedProblems).
		Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var paths []domain.PracticePath
	result := query.Order("created_at DESC").Find(&paths)
	return paths, result.Error
}

// Modify locks the path row with SELECT ... FOR UPDATE, reloads the path with
// its problems, applies fn and saves the path row and every path problem
// before the lock is released
func (r *pathRepository) Modify(ctx context.Context, id uuid.UUID, fn func(path *domain.PracticePath) error) (*domain.PracticePath, error) {
	var path domain.PracticePath
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", id).
			Take(&domain.PracticePath{}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPathNotFound
			}
			return err
		}

		if err := tx.Scopes(withOrderedProblems).Where("id = ?", id).First(&path).Error; err != nil {
			return err
		}
		if err := fn(&path); err != nil {
			return err
		}
		return savePath(tx, &path)
	})
	if err != nil {
		return nil, err
	}
	return &path, nil
}

// savePath writes the path row and the state of every loaded path problem
func savePath(tx *gorm.DB, path *domain.PracticePath) error {
	if err := tx.Omit(clause.Associations).Save(path).Error; err != nil {
		return err
	}
	for i := range path.PathProblems {
		pp := &path.PathProblems[i]
		err := tx.Model(&domain.PathProblem{}).
			Where("id = ?", pp.ID).
			Updates(map[string]any{
				"status":      pp.Status,
				"unlocked_at": pp.UnlockedAt,
				"solved_at":   pp.SolvedAt,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Delete deletes a path and its problems
func (r *pathRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.PathProblem{}, "path_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.PracticePath{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrPathNotFound
		}
		return nil
	})
}
