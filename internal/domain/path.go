package domain

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PathMode is the pedagogical shaping of a practice path
type PathMode string

const (
	PathModeLearning  PathMode = "learning"
	PathModeRevision  PathMode = "revision"
	PathModeChallenge PathMode = "challenge"
)

// Valid reports whether m is a known mode
func (m PathMode) Valid() bool {
	switch m {
	case PathModeLearning, PathModeRevision, PathModeChallenge:
		return true
	default:
		return false
	}
}

// PathStatus represents the lifecycle state of a practice path
type PathStatus string

const (
	PathStatusActive    PathStatus = "active"
	PathStatusPaused    PathStatus = "paused"
	PathStatusCompleted PathStatus = "completed"
	PathStatusAbandoned PathStatus = "abandoned"
)

// ProblemStatus is the state of a single problem within a path.
//
//	locked -> unlocked -> attempted -> solved | skipped
//
// An unlocked problem may also be solved or skipped directly, and a skipped
// problem may still be solved later.
type ProblemStatus string

const (
	ProblemStatusLocked    ProblemStatus = "locked"
	ProblemStatusUnlocked  ProblemStatus = "unlocked"
	ProblemStatusAttempted ProblemStatus = "attempted"
	ProblemStatusSolved    ProblemStatus = "solved"
	ProblemStatusSkipped   ProblemStatus = "skipped"
)

var problemTransitions = map[ProblemStatus][]ProblemStatus{
	ProblemStatusLocked:    {ProblemStatusUnlocked},
	ProblemStatusUnlocked:  {ProblemStatusAttempted, ProblemStatusSolved, ProblemStatusSkipped},
	ProblemStatusAttempted: {ProblemStatusSolved, ProblemStatusSkipped},
	ProblemStatusSkipped:   {ProblemStatusSolved},
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s ProblemStatus) CanTransitionTo(next ProblemStatus) bool {
	for _, allowed := range problemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the problem is finished (solved or skipped)
func (s ProblemStatus) IsTerminal() bool {
	return s == ProblemStatusSolved || s == ProblemStatusSkipped
}

// PracticePath is a generated, ordered sequence of problems owned by a user
type PracticePath struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID          uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Name            string         `json:"name" gorm:"type:varchar(255);not null"`
	Description     *string        `json:"description"`
	Topics          pq.StringArray `json:"topics" gorm:"type:text[];not null"`
	MinRating       int            `json:"min_rating" gorm:"not null"`
	MaxRating       int            `json:"max_rating" gorm:"not null"`
	Mode            PathMode       `json:"mode" gorm:"type:varchar(20);not null;default:'learning'"`
	ForcedMode      bool           `json:"forced_mode" gorm:"default:false"`
	CurrentPosition int            `json:"current_position" gorm:"default:0"`
	TotalProblems   int            `json:"total_problems" gorm:"default:0"`
	Status          PathStatus     `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at"`

	// Relationships
	PathProblems []PathProblem `json:"problems,omitempty" gorm:"foreignKey:PathID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (PracticePath) TableName() string {
	return "practice_paths"
}

// ProgressPct returns the share of solved problems as a percentage with one decimal
func (p *PracticePath) ProgressPct() float64 {
	if p.TotalProblems == 0 {
		return 0
	}
	return math.Round(float64(p.CurrentPosition)/float64(p.TotalProblems)*1000) / 10
}

// ProblemAt returns the path entry at the given position
func (p *PracticePath) ProblemAt(position int) *PathProblem {
	for i := range p.PathProblems {
		if p.PathProblems[i].Position == position {
			return &p.PathProblems[i]
		}
	}
	return nil
}

// ProblemByID returns the path entry for the given problem
func (p *PracticePath) ProblemByID(problemID int64) *PathProblem {
	for i := range p.PathProblems {
		if p.PathProblems[i].ProblemID == problemID {
			return &p.PathProblems[i]
		}
	}
	return nil
}

// SolvedCount counts entries in the solved state
func (p *PracticePath) SolvedCount() int {
	n := 0
	for _, pp := range p.PathProblems {
		if pp.Status == ProblemStatusSolved {
			n++
		}
	}
	return n
}

// PathProblem is a single problem within a practice path
type PathProblem struct {
	ID         int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	PathID     uuid.UUID     `json:"path_id" gorm:"type:uuid;not null;index"`
	ProblemID  int64         `json:"problem_id" gorm:"not null"`
	Position   int           `json:"position" gorm:"not null"`
	Status     ProblemStatus `json:"status" gorm:"type:varchar(20);not null;default:'locked'"`
	UnlockedAt *time.Time    `json:"unlocked_at"`
	SolvedAt   *time.Time    `json:"solved_at"`

	// Relationships (for loading)
	Problem Problem `json:"problem" gorm:"foreignKey:ProblemID"`
}

// TableName specifies the table name for GORM
func (PathProblem) TableName() string {
	return "path_problems"
}

// Transition moves the entry to next, stamping timestamps
func (pp *PathProblem) Transition(next ProblemStatus, at time.Time) error {
	if !pp.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	pp.Status = next
	switch next {
	case ProblemStatusUnlocked:
		pp.UnlockedAt = &at
	case ProblemStatusSolved:
		pp.SolvedAt = &at
	}
	return nil
}

// PathRepository defines the interface for practice path persistence
type PathRepository interface {
	Create(ctx context.Context, path *PracticePath) error
	FindByID(ctx context.Context, id uuid.UUID) (*PracticePath, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, status *PathStatus) ([]PracticePath, error)
	// Modify loads the path under a row lock, applies fn and saves the
	// result in the same transaction. An error from fn aborts without writing.
	Modify(ctx context.Context, id uuid.UUID, fn func(path *PracticePath) error) (*PracticePath, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreatePathRequest represents the data needed to generate a new path
type CreatePathRequest struct {
	Name         string   `json:"name" binding:"required,min=1,max=255"`
	Description  *string  `json:"description"`
	Topics       []string `json:"topics" binding:"required,min=1"`
	MinRating    int      `json:"min_rating" binding:"omitempty,min=800,max=3500"`
	MaxRating    int      `json:"max_rating" binding:"omitempty,min=800,max=3500"`
	Mode         PathMode `json:"mode" binding:"omitempty,oneof=learning revision challenge"`
	ForcedMode   bool     `json:"forced_mode"`
	ProblemCount int      `json:"problem_count" binding:"omitempty,min=5,max=100"`
}

// ApplyDefaults fills unset optional fields. Omitted rating bounds are
// taken from the lo..hi window the deployment allows.
func (r *CreatePathRequest) ApplyDefaults(defaultCount, lo, hi int) {
	if r.MinRating == 0 {
		r.MinRating = lo
	}
	if r.MaxRating == 0 {
		r.MaxRating = max(min(DefaultPathMaxRating, hi), r.MinRating)
	}
	if r.Mode == "" {
		r.Mode = PathModeLearning
	}
	if r.ProblemCount == 0 {
		r.ProblemCount = defaultCount
	}
}

// CheckRatingWindow rejects a requested range reaching outside lo..hi.
// Inverted ranges are left to PathConfig validation.
func (r *CreatePathRequest) CheckRatingWindow(lo, hi int) error {
	if r.MinRating <= r.MaxRating && (r.MinRating < lo || r.MaxRating > hi) {
		return NewDomainError(ErrInvalidPathConfig,
			fmt.Sprintf("rating range must lie within %d-%d", lo, hi))
	}
	return nil
}

// RatingBounds returns the configured lo..hi window, with zero meaning the
// end of the Codeforces scale
func RatingBounds(lo, hi int) (int, int) {
	if lo == 0 {
		lo = MinRating
	}
	if hi == 0 {
		hi = MaxRating
	}
	return lo, hi
}

// UpdatePathRequest represents a rename or status change
type UpdatePathRequest struct {
	Name   *string     `json:"name" binding:"omitempty,min=1,max=255"`
	Status *PathStatus `json:"status" binding:"omitempty,oneof=active paused abandoned"`
}

// MarkSolvedRequest marks a problem in a path as solved
type MarkSolvedRequest struct {
	ProblemID        int64 `json:"problem_id" binding:"required"`
	TimeSpentSeconds int   `json:"time_spent_seconds" binding:"min=0"`
	HintsUsed        int   `json:"hints_used" binding:"min=0"`
}

// PathResponse represents a path in API responses
type PathResponse struct {
	ID              uuid.UUID             `json:"id"`
	Name            string                `json:"name"`
	Description     *string               `json:"description"`
	Topics          []string              `json:"topics"`
	MinRating       int                   `json:"min_rating"`
	MaxRating       int                   `json:"max_rating"`
	Mode            PathMode              `json:"mode"`
	ForcedMode      bool                  `json:"forced_mode"`
	CurrentPosition int                   `json:"current_position"`
	TotalProblems   int                   `json:"total_problems"`
	Status          PathStatus            `json:"status"`
	ProgressPct     float64               `json:"progress_pct"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	CompletedAt     *time.Time            `json:"completed_at"`
	Problems        []PathProblemResponse `json:"problems,omitempty"`
}

// PathProblemResponse represents a problem within a path response
type PathProblemResponse struct {
	Position   int            `json:"position"`
	Status     ProblemStatus  `json:"status"`
	UnlockedAt *time.Time     `json:"unlocked_at"`
	SolvedAt   *time.Time     `json:"solved_at"`
	Problem    ProblemSummary `json:"problem"`
}

// ToResponse converts a PracticePath to a PathResponse
func (p *PracticePath) ToResponse() PathResponse {
	problems := make([]PathProblemResponse, len(p.PathProblems))
	for i, pp := range p.PathProblems {
		problems[i] = PathProblemResponse{
			Position:   pp.Position,
			Status:     pp.Status,
			UnlockedAt: pp.UnlockedAt,
			SolvedAt:   pp.SolvedAt,
			Problem:    pp.Problem.ToSummary(),
		}
	}

	return PathResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Topics:          p.Topics,
		MinRating:       p.MinRating,
		MaxRating:       p.MaxRating,
		Mode:            p.Mode,
		ForcedMode:      p.ForcedMode,
		CurrentPosition: p.CurrentPosition,
		TotalProblems:   p.TotalProblems,
		Status:          p.Status,
		ProgressPct:     p.ProgressPct(),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		CompletedAt:     p.CompletedAt,
		Problems:        problems,
	}
}

// SolveResult is returned after marking a path problem solved
type SolveResult struct {
	PathProgress float64    `json:"path_progress"`
	PathStatus   PathStatus `json:"path_status"`
	NextUnlocked *int       `json:"next_unlocked"`
}
