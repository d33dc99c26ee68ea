package curriculum

import (
	"cmp"
	"slices"

	"github.com/cp-path-builder/backend/internal/domain"
)

// DefaultRatingStep is the width of a difficulty band
const DefaultRatingStep = 100

// Band is a fixed-width rating bucket. Problems are sorted by educational
// score, best first.
type Band struct {
	Key      int
	Problems []domain.Problem

	scored []scoredProblem
}

// Size returns the number of problems in the band
func (b Band) Size() int {
	return len(b.Problems)
}

func (b Band) members() []scoredProblem {
	if len(b.scored) == len(b.Problems) {
		return b.scored
	}
	return scoreAll(b.Problems)
}

// BandKey returns the lower bound of the band holding rating
func BandKey(rating, step int) int {
	return rating / step * step
}

// Partition groups rated problems into bands of width step, ordered by
// ascending key. Unrated problems are dropped. Within a band the sort is
// stable, so equal scores keep their input order.
func Partition(problems []domain.Problem, step int) []Band {
	if step <= 0 {
		step = DefaultRatingStep
	}

	byKey := make(map[int][]scoredProblem)
	for _, sp := range scoreAll(problems) {
		if !sp.problem.HasRating() {
			continue
		}
		key := BandKey(*sp.problem.Rating, step)
		byKey[key] = append(byKey[key], sp)
	}

	keys := make([]int, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	bands := make([]Band, 0, len(keys))
	for _, k := range keys {
		members := byKey[k]
		slices.SortStableFunc(members, func(a, b scoredProblem) int {
			return cmp.Compare(b.score, a.score)
		})
		bands = append(bands, Band{Key: k, Problems: unwrap(members), scored: members})
	}
	return bands
}
