package curriculum

import (
	"cmp"
	"slices"

	"github.com/cp-path-builder/backend/internal/domain"
)

// Order arranges selected problems by ascending rating, best score first on
// ties. Each run of more than two equal ratings is split at its midpoint and
// both halves are shuffled, so the overall trend stays ascending while the
// order within a tier varies. At most limit problems are returned; a limit
// of zero keeps everything.
func Order(problems []domain.Problem, limit int, src Source) []domain.Problem {
	scored := scoreAll(problems)
	slices.SortStableFunc(scored, func(a, b scoredProblem) int {
		if c := cmp.Compare(a.problem.RatingOr(0), b.problem.RatingOr(0)); c != 0 {
			return c
		}
		return cmp.Compare(b.score, a.score)
	})

	for start := 0; start < len(scored); {
		end := start + 1
		for end < len(scored) && scored[end].problem.RatingOr(0) == scored[start].problem.RatingOr(0) {
			end++
		}
		if end-start > 2 {
			mid := start + (end-start)/2
			shuffle(scored[start:mid], src)
			shuffle(scored[mid:end], src)
		}
		start = end
	}

	ordered := unwrap(scored)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}

func shuffle(s []scoredProblem, src Source) {
	src.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}
