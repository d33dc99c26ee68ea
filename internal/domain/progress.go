package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is a user's standing on a single problem
type AttemptStatus string

const (
	AttemptStatusAttempted AttemptStatus = "attempted"
	AttemptStatusSolved    AttemptStatus = "solved"
)

// UserProgress tracks a user's interaction with an individual problem
type UserProgress struct {
	ID               int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID           uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:uq_progress_user_problem"`
	ProblemID        int64         `json:"problem_id" gorm:"not null;uniqueIndex:uq_progress_user_problem;index"`
	Status           AttemptStatus `json:"status" gorm:"type:varchar(20);not null;default:'attempted'"`
	Attempts         int           `json:"attempts" gorm:"default:1"`
	TimeSpentSeconds int           `json:"time_spent_seconds" gorm:"default:0"`
	HintsUsed        int           `json:"hints_used" gorm:"default:0"`
	FirstAttemptedAt time.Time     `json:"first_attempted_at"`
	SolvedAt         *time.Time    `json:"solved_at"`

	Problem Problem `json:"problem" gorm:"foreignKey:ProblemID"`
}

// TableName specifies the table name for GORM
func (UserProgress) TableName() string {
	return "user_progress"
}

// ProgressFilter narrows a user's progress history
type ProgressFilter struct {
	Status *AttemptStatus
	Tag    string
	Limit  int
}

// SolveRecord carries the details of a solve to persist
type SolveRecord struct {
	UserID           uuid.UUID
	ProblemID        int64
	TimeSpentSeconds int
	HintsUsed        int
	SolvedAt         time.Time
}

// ProgressRepository defines the interface for per-user solve history
type ProgressRepository interface {
	RecordAttempt(ctx context.Context, userID uuid.UUID, problemID int64, at time.Time) error
	RecordSolve(ctx context.Context, rec SolveRecord) error
	SolvedProblemIDs(ctx context.Context, userID uuid.UUID) ([]int64, error)
	FindByUser(ctx context.Context, userID uuid.UUID, filter ProgressFilter) ([]UserProgress, error)
	CountByStatus(ctx context.Context, userID uuid.UUID) (map[AttemptStatus]int64, error)
	TotalTimeSpent(ctx context.Context, userID uuid.UUID) (int64, error)
}

// TopicSkillEstimate is a user's derived standing in one topic
type TopicSkillEstimate struct {
	Topic             string `json:"topic"`
	EstimatedSkill    int    `json:"estimated_skill"`
	ProblemsSolved    int    `json:"problems_solved"`
	ProblemsAttempted int    `json:"problems_attempted"`
	AvgRatingSolved   int    `json:"avg_rating_solved"`
	MaxRatingSolved   int    `json:"max_rating_solved"`
}

// SolvedEntry is one row of a user's solve history
type SolvedEntry struct {
	Problem          ProblemSummary `json:"problem"`
	Attempts         int            `json:"attempts"`
	TimeSpentSeconds int            `json:"time_spent_seconds"`
	HintsUsed        int            `json:"hints_used"`
	SolvedAt         *time.Time     `json:"solved_at"`
}

// ToSolvedEntry converts a progress record to a history entry
func (p *UserProgress) ToSolvedEntry() SolvedEntry {
	return SolvedEntry{
		Problem:          p.Problem.ToSummary(),
		Attempts:         p.Attempts,
		TimeSpentSeconds: p.TimeSpentSeconds,
		HintsUsed:        p.HintsUsed,
		SolvedAt:         p.SolvedAt,
	}
}

// UserStats aggregates a user's practice activity
type UserStats struct {
	TotalSolved         int64                `json:"total_solved"`
	TotalAttempted      int64                `json:"total_attempted"`
	TotalTimeSpentHours float64              `json:"total_time_spent_hours"`
	ActivePaths         int                  `json:"active_paths"`
	CompletedPaths      int                  `json:"completed_paths"`
	RatingDistribution  map[string]int       `json:"rating_distribution"`
	TopicStats          []TopicSkillEstimate `json:"topic_stats"`
	RecentSolves        []SolvedEntry        `json:"recent_solves"`
}
