package curriculum

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/cp-path-builder/backend/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// PathConfig describes one path generation request
type PathConfig struct {
	Topics       []string        `validate:"required,min=1,dive,required"`
	MinRating    int             `validate:"gte=800,lte=3500"`
	MaxRating    int             `validate:"gte=800,lte=3500,gtefield=MinRating"`
	Mode         domain.PathMode `validate:"oneof=learning revision challenge"`
	ProblemCount int             `validate:"gte=1"`
	ExcludeIDs   []int64
	RatingStep   int `validate:"gte=0"`
}

// Validate checks the configuration, returning a DomainError wrapping
// domain.ErrInvalidPathConfig that lists every offending field.
func (c PathConfig) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.WrapError(domain.ErrInvalidPathConfig, err.Error())
	}

	messages := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		messages[i] = describeFieldError(fe)
	}
	return domain.NewDomainError(domain.ErrInvalidPathConfig, strings.Join(messages, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", fe.Field(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be below %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func (c PathConfig) step() int {
	if c.RatingStep <= 0 {
		return DefaultRatingStep
	}
	return c.RatingStep
}

// Result is a generated path together with the allocation that produced it
type Result struct {
	Problems   []domain.Problem
	Quotas     Quotas
	Candidates int
}

// IDs returns the problem ids in path order
func (r *Result) IDs() []int64 {
	ids := make([]int64, len(r.Problems))
	for i := range r.Problems {
		ids[i] = r.Problems[i].ID
	}
	return ids
}

// Generate builds an ordered path from candidates.
//
// Candidates are filtered again against cfg (rated, inside the rating range,
// sharing a topic, not excluded, no duplicate ids), partitioned into bands,
// allocated per mode, sampled per band and finally ordered. An empty
// candidate set yields domain.ErrNoMatchingProblems. Fewer candidates than
// ProblemCount produce a shorter path.
func Generate(cfg PathConfig, candidates []domain.Problem, src Source) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eligible := filterCandidates(cfg, candidates)
	if len(eligible) == 0 {
		return nil, domain.ErrNoMatchingProblems
	}

	bands := Partition(eligible, cfg.step())
	quotas := Allocate(bands, cfg.Mode, cfg.ProblemCount)

	selected := make([]domain.Problem, 0, quotas.Total())
	for _, b := range bands {
		selected = append(selected, Sample(b, quotas[b.Key], src)...)
	}

	ordered := Order(selected, cfg.ProblemCount, src)
	if len(ordered) == 0 {
		return nil, domain.ErrNoMatchingProblems
	}

	return &Result{
		Problems:   ordered,
		Quotas:     quotas,
		Candidates: len(eligible),
	}, nil
}

func filterCandidates(cfg PathConfig, candidates []domain.Problem) []domain.Problem {
	topics := domain.NormalizeTags(cfg.Topics)
	window := domain.RatingWindow{Min: cfg.MinRating, Max: cfg.MaxRating}

	excluded := make(map[int64]struct{}, len(cfg.ExcludeIDs))
	for _, id := range cfg.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(candidates))
	out := make([]domain.Problem, 0, len(candidates))
	for _, p := range candidates {
		if !p.HasRating() || !window.Contains(*p.Rating) {
			continue
		}
		if !p.HasAnyTag(topics) {
			continue
		}
		if _, ok := excluded[p.ID]; ok {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
