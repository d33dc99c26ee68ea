// Package curriculum turns a pool of rated, tagged problems into ordered
// practice paths and answers similarity and skill queries over them.
//
// Every function here is pure: inputs come in explicitly (problem
// snapshots, configuration, a randomness Source) and nothing is cached
// between calls, so concurrent generations never share state.
package curriculum

import (
	"math"

	"github.com/cp-path-builder/backend/internal/domain"
)

const (
	maxPopularityScore = 50.0
	ratedBonus         = 20.0
)

// EducationalScore estimates how useful a problem is for structured
// learning. Popular, rated problems with two or three tags score highest.
func EducationalScore(p *domain.Problem) float64 {
	score := 0.0

	if p.SolvedCount > 0 {
		score += math.Min(math.Log10(float64(p.SolvedCount)+1)*10, maxPopularityScore)
	}

	if p.HasRating() {
		score += ratedBonus
	}

	score += tagRichness(len(p.Tags))
	return score
}

func tagRichness(n int) float64 {
	switch {
	case n == 0:
		return 0
	case n <= 2:
		return 15
	case n == 3:
		return 10
	default:
		return 5
	}
}

// scoredProblem caches the educational score next to its problem
type scoredProblem struct {
	problem domain.Problem
	score   float64
}

func scoreAll(problems []domain.Problem) []scoredProblem {
	out := make([]scoredProblem, len(problems))
	for i := range problems {
		out[i] = scoredProblem{problem: problems[i], score: EducationalScore(&problems[i])}
	}
	return out
}

func unwrap(scored []scoredProblem) []domain.Problem {
	out := make([]domain.Problem, len(scored))
	for i := range scored {
		out[i] = scored[i].problem
	}
	return out
}
