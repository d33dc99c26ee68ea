package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cp-path-builder/backend/internal/curriculum"
	"github.com/cp-path-builder/backend/internal/domain"
)

// PathSettings bounds path generation
type PathSettings struct {
	DefaultSize int
	MaxSize     int
	RatingStep  int
	// MinRating and MaxRating bound every requested range; zero means the
	// full Codeforces scale
	MinRating int
	MaxRating int
	// RandomSeed makes every generation reproducible when non-zero
	RandomSeed int64
}

// PathService handles practice path generation and the solve workflow
type PathService struct {
	problemRepo  domain.ProblemRepository
	pathRepo     domain.PathRepository
	progressRepo domain.ProgressRepository
	settings     PathSettings
	metrics      Metrics
	tracer       trace.Tracer
	logger       *zap.Logger

	newSource func() curriculum.Source
	now       func() time.Time
}

// NewPathService creates a new path service
func NewPathService(
	problemRepo domain.ProblemRepository,
	pathRepo domain.PathRepository,
	progressRepo domain.ProgressRepository,
	settings PathSettings,
	metrics Metrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *PathService {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &PathService{
		problemRepo:  problemRepo,
		pathRepo:     pathRepo,
		progressRepo: progressRepo,
		settings:     settings,
		metrics:      metrics,
		tracer:       tracer,
		logger:       logger,
		newSource: func() curriculum.Source {
			return curriculum.NewSource(settings.RandomSeed)
		},
		now: time.Now,
	}
}

// Preview generates a path for the user without persisting it
func (s *PathService) Preview(ctx context.Context, userID uuid.UUID, req *domain.CreatePathRequest) (*curriculum.Result, error) {
	ctx, span := s.tracer.Start(ctx, "PathService.Preview")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))
	return s.generate(ctx, userID, req)
}

// generate runs the curriculum engine over the user's unsolved candidates
func (s *PathService) generate(ctx context.Context, userID uuid.UUID, req *domain.CreatePathRequest) (*curriculum.Result, error) {
	lo, hi := domain.RatingBounds(s.settings.MinRating, s.settings.MaxRating)
	req.ApplyDefaults(s.settings.DefaultSize, lo, hi)
	if s.settings.MaxSize > 0 && req.ProblemCount > s.settings.MaxSize {
		return nil, domain.NewDomainError(domain.ErrInvalidPathConfig,
			fmt.Sprintf("problem_count must not exceed %d", s.settings.MaxSize))
	}
	if err := req.CheckRatingWindow(lo, hi); err != nil {
		return nil, err
	}

	cfg := curriculum.PathConfig{
		Topics:       domain.NormalizeTags(req.Topics),
		MinRating:    req.MinRating,
		MaxRating:    req.MaxRating,
		Mode:         req.Mode,
		ProblemCount: req.ProblemCount,
		RatingStep:   s.settings.RatingStep,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.StringSlice("path.topics", cfg.Topics),
		attribute.String("path.mode", string(cfg.Mode)),
		attribute.Int("path.problem_count", cfg.ProblemCount),
	)

	solved, err := s.progressRepo.SolvedProblemIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	cfg.ExcludeIDs = solved

	candidates, err := s.problemRepo.FetchCandidates(ctx, cfg.Topics, cfg.MinRating, cfg.MaxRating, cfg.ExcludeIDs)
	if err != nil {
		return nil, err
	}

	start := s.now()
	result, err := curriculum.Generate(cfg, candidates, s.newSource())
	if err != nil {
		return nil, err
	}
	s.metrics.PathGenerated(ctx, string(cfg.Mode), len(result.Problems), s.now().Sub(start))

	s.logger.Debug("Path generated",
		zap.String("user_id", userID.String()),
		zap.Int("candidates", result.Candidates),
		zap.Int("bands", len(result.Quotas)),
		zap.Int("size", len(result.Problems)),
	)

	return result, nil
}

// Create generates a path and persists it with the first problem unlocked
func (s *PathService) Create(ctx context.Context, userID uuid.UUID, req *domain.CreatePathRequest) (*domain.PracticePath, error) {
	ctx, span := s.tracer.Start(ctx, "PathService.Create")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	result, err := s.generate(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	path := &domain.PracticePath{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          req.Name,
		Description:   req.Description,
		Topics:        domain.NormalizeTags(req.Topics),
		MinRating:     req.MinRating,
		MaxRating:     req.MaxRating,
		Mode:          req.Mode,
		ForcedMode:    req.ForcedMode,
		TotalProblems: len(result.Problems),
		Status:        domain.PathStatusActive,
	}

	path.PathProblems = make([]domain.PathProblem, len(result.Problems))
	for i, p := range result.Problems {
		pp := domain.PathProblem{
			ProblemID: p.ID,
			Position:  i,
			Status:    domain.ProblemStatusLocked,
			Problem:   p,
		}
		if i == 0 {
			pp.Status = domain.ProblemStatusUnlocked
			pp.UnlockedAt = &now
		}
		path.PathProblems[i] = pp
	}

	if err := s.pathRepo.Create(ctx, path); err != nil {
		return nil, err
	}

	s.logger.Info("Practice path created",
		zap.String("path_id", path.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("mode", string(path.Mode)),
		zap.Int("problem_count", path.TotalProblems),
	)

	return path, nil
}

// loadOwned fetches a path and verifies it belongs to userID
func (s *PathService) loadOwned(ctx context.Context, userID, pathID uuid.UUID) (*domain.PracticePath, error) {
	path, err := s.pathRepo.FindByID(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if path.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return path, nil
}

// Get retrieves a path owned by the user
func (s *PathService) Get(ctx context.Context, userID, pathID uuid.UUID) (*domain.PracticePath, error) {
	ctx, span := s.tracer.Start(ctx, "PathService.Get")
	defer span.End()

	span.SetAttributes(attribute.String("path.id", pathID.String()))
	return s.loadOwned(ctx, userID, pathID)
}

// List returns the user's paths, optionally filtered by status
func (s *PathService) List(ctx context.Context, userID uuid.UUID, status *domain.PathStatus) ([]domain.PracticePath, error) {
	ctx, span := s.tracer.Start(ctx, "PathService.List")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))
	return s.pathRepo.FindByUserID(ctx, userID, status)
}

// Update renames a path or changes its status. Completed paths keep their status.
func (s *PathService) Update(ctx context.Context, userID, pathID uuid.UUID, req *domain.UpdatePathRequest) (*domain.PracticePath, error) {
	ctx, span := s.tracer.Start(ctx, "PathService.Update")
	defer span.End()

	span.SetAttributes(attribute.String("path.id", pathID.String()))

	if req.Status != nil {
		switch *req.Status {
		case domain.PathStatusActive, domain.PathStatusPaused, domain.PathStatusAbandoned:
		default:
			return nil, domain.ErrInvalidPathStatus
		}
	}

	return s.pathRepo.Modify(ctx, pathID, func(path *domain.PracticePath) error {
		if path.UserID != userID {
			return domain.ErrForbidden
		}
		if req.Name != nil {
			path.Name = *req.Name
		}
		if req.Status != nil {
			if path.Status == domain.PathStatusCompleted {
				return domain.NewDomainError(domain.ErrInvalidPathStatus, "a completed path cannot change status")
			}
			path.Status = *req.Status
		}
		return nil
	})
}

// Delete removes a path owned by the user
func (s *PathService) Delete(ctx context.Context, userID, pathID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "PathService.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("path.id", pathID.String()))

	if _, err := s.loadOwned(ctx, userID, pathID); err != nil {
		return err
	}
	return s.pathRepo.Delete(ctx, pathID)
}

// MarkSolved marks a path problem solved, advances the path and records the
// solve in the user's history
func (s *PathService) MarkSolved(ctx context.Context, userID, pathID uuid.UUID, req *domain.MarkSolvedRequest) (*domain.SolveResult, error) {
	ctx, span := s.tracer.Start(ctx, "PathService.MarkSolved")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("path.id", pathID.String()),
		attribute.Int64("problem.id", req.ProblemID),
	)

	var (
		position int
		next     *int
	)
	now := s.now()
	path, err := s.pathRepo.Modify(ctx, pathID, func(path *domain.PracticePath) error {
		if err := checkActive(path, userID); err != nil {
			return err
		}
		pp := path.ProblemByID(req.ProblemID)
		if pp == nil {
			return domain.ErrProblemNotInPath
		}
		if err := openProblem(path, pp, now); err != nil {
			return err
		}
		if err := pp.Transition(domain.ProblemStatusSolved, now); err != nil {
			return err
		}

		position = pp.Position
		path.CurrentPosition = path.SolvedCount()
		next = s.unlockNext(path, pp.Position, now)
		if path.CurrentPosition >= path.TotalProblems {
			path.Status = domain.PathStatusCompleted
			path.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.progressRepo.RecordSolve(ctx, domain.SolveRecord{
		UserID:           userID,
		ProblemID:        req.ProblemID,
		TimeSpentSeconds: req.TimeSpentSeconds,
		HintsUsed:        req.HintsUsed,
		SolvedAt:         now,
	})
	if err != nil {
		s.logger.Error("Failed to record solve", zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.Int64("problem_id", req.ProblemID),
		)
	}
	s.metrics.ProblemSolved(ctx)

	s.logger.Info("Path problem solved",
		zap.String("path_id", pathID.String()),
		zap.Int64("problem_id", req.ProblemID),
		zap.Int("position", position),
		zap.String("path_status", string(path.Status)),
	)

	return &domain.SolveResult{
		PathProgress: path.ProgressPct(),
		PathStatus:   path.Status,
		NextUnlocked: next,
	}, nil
}

// Skip gives up on the problem at position. Locked problems cannot be skipped
// in forced mode.
func (s *PathService) Skip(ctx context.Context, userID, pathID uuid.UUID, position int) (*domain.PracticePath, error) {
	ctx, span := s.tracer.Start(ctx, "PathService.Skip")
	defer span.End()

	span.SetAttributes(
		attribute.String("path.id", pathID.String()),
		attribute.Int("path.position", position),
	)

	return s.advance(ctx, userID, pathID, position, domain.ProblemStatusSkipped)
}

// Attempt records that the user started working on the problem at position
func (s *PathService) Attempt(ctx context.Context, userID, pathID uuid.UUID, position int) (*domain.PracticePath, error) {
	ctx, span := s.tracer.Start(ctx, "PathService.Attempt")
	defer span.End()

	span.SetAttributes(
		attribute.String("path.id", pathID.String()),
		attribute.Int("path.position", position),
	)

	path, err := s.advance(ctx, userID, pathID, position, domain.ProblemStatusAttempted)
	if err != nil {
		return nil, err
	}

	if pp := path.ProblemAt(position); pp != nil {
		if err := s.progressRepo.RecordAttempt(ctx, userID, pp.ProblemID, s.now()); err != nil {
			s.logger.Error("Failed to record attempt", zap.Error(err),
				zap.String("user_id", userID.String()),
				zap.Int64("problem_id", pp.ProblemID),
			)
		}
	}
	return path, nil
}

// advance moves the problem at position to next, honouring forced mode
func (s *PathService) advance(ctx context.Context, userID, pathID uuid.UUID, position int, next domain.ProblemStatus) (*domain.PracticePath, error) {
	now := s.now()
	return s.pathRepo.Modify(ctx, pathID, func(path *domain.PracticePath) error {
		if err := checkActive(path, userID); err != nil {
			return err
		}
		pp := path.ProblemAt(position)
		if pp == nil {
			return domain.ErrProblemNotInPath
		}
		if err := openProblem(path, pp, now); err != nil {
			return err
		}
		if err := pp.Transition(next, now); err != nil {
			return err
		}
		if next == domain.ProblemStatusSkipped {
			s.unlockNext(path, position, now)
		}
		return nil
	})
}

// checkActive verifies the path belongs to userID and still accepts progress
func checkActive(path *domain.PracticePath, userID uuid.UUID) error {
	if path.UserID != userID {
		return domain.ErrForbidden
	}
	if path.Status != domain.PathStatusActive {
		return domain.ErrPathNotActive
	}
	return nil
}

// openProblem unlocks a locked problem outside forced mode
func openProblem(path *domain.PracticePath, pp *domain.PathProblem, now time.Time) error {
	if pp.Status != domain.ProblemStatusLocked {
		return nil
	}
	if path.ForcedMode {
		return domain.ErrProblemLocked
	}
	return pp.Transition(domain.ProblemStatusUnlocked, now)
}

// unlockNext unlocks the problem after position in forced mode and returns its position
func (s *PathService) unlockNext(path *domain.PracticePath, position int, now time.Time) *int {
	if !path.ForcedMode {
		return nil
	}
	next := path.ProblemAt(position + 1)
	if next == nil || next.Status != domain.ProblemStatusLocked {
		return nil
	}
	if err := next.Transition(domain.ProblemStatusUnlocked, now); err != nil {
		return nil
	}
	return &next.Position
}
