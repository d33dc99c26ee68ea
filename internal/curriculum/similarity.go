package curriculum

import (
	"cmp"
	"math"
	"slices"

	"github.com/cp-path-builder/backend/internal/domain"
)

const (
	tagWeight    = 0.7
	ratingWeight = 0.3

	// ratingFalloff is the rating gap at which rating similarity reaches zero
	ratingFalloff = 500.0

	taggedWindow   = 300
	untaggedWindow = 200

	// MaxSimilarCandidates caps how many neighbours are fetched for ranking
	MaxSimilarCandidates = 200
)

// Jaccard returns |a ∩ b| / |a ∪ b| over the tag sets, or 0 when both are empty
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}

	intersection := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// RatingSimilarity decays linearly from 1 at equal ratings to 0 at a gap of 500
func RatingSimilarity(a, b int) float64 {
	return math.Max(0, 1-math.Abs(float64(a-b))/ratingFalloff)
}

// Similarity is the composite score 0.7*jaccard + 0.3*ratingSimilarity.
// Unrated problems are treated as rated 1200.
func Similarity(ref, cand *domain.Problem) float64 {
	jaccard := Jaccard(ref.Tags, cand.Tags)
	ratingSim := RatingSimilarity(
		ref.RatingOr(domain.DefaultReferenceRating),
		cand.RatingOr(domain.DefaultReferenceRating),
	)
	return tagWeight*jaccard + ratingWeight*ratingSim
}

// CandidateWindow is the rating range worth searching around ref:
// ±300 when ref has tags, ±200 otherwise.
func CandidateWindow(ref *domain.Problem) domain.RatingWindow {
	center := ref.RatingOr(domain.DefaultReferenceRating)
	delta := untaggedWindow
	if len(ref.Tags) > 0 {
		delta = taggedWindow
	}
	return domain.RatingWindow{Min: center - delta, Max: center + delta}
}

// ScoredProblem pairs a problem with its similarity to a reference
type ScoredProblem struct {
	Problem domain.Problem
	Score   float64
}

// Rank orders candidates by descending similarity to ref. The reference
// itself and every id in excludeIDs are dropped before scoring; ties keep
// candidate order. A non-positive limit returns every ranked candidate.
func Rank(ref *domain.Problem, candidates []domain.Problem, excludeIDs []int64, limit int) []ScoredProblem {
	excluded := make(map[int64]struct{}, len(excludeIDs)+1)
	excluded[ref.ID] = struct{}{}
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	ranked := make([]ScoredProblem, 0, len(candidates))
	for i := range candidates {
		if _, ok := excluded[candidates[i].ID]; ok {
			continue
		}
		excluded[candidates[i].ID] = struct{}{}
		ranked = append(ranked, ScoredProblem{
			Problem: candidates[i],
			Score:   Similarity(ref, &candidates[i]),
		})
	}

	slices.SortStableFunc(ranked, func(a, b ScoredProblem) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
