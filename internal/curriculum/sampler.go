package curriculum

import (
	"math/rand"
	"time"

	"github.com/cp-path-builder/backend/internal/domain"
)

// Source is the randomness consumed by sampling and ordering.
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// NewSource returns a Source seeded with seed, or with the current time when
// seed is zero. The result is not safe for concurrent use; create one per
// generation.
func NewSource(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// poolFactor bounds how far below the best problems sampling may reach
const poolFactor = 3

// Sample draws min(quota, band size) distinct problems from a band.
//
// Only the top quota*3 problems by educational score are eligible. Each
// draw is a roulette selection weighted by score+1 over the problems not yet
// taken.
func Sample(band Band, quota int, src Source) []domain.Problem {
	members := band.members()
	k := min(quota, len(members))
	if k <= 0 {
		return nil
	}

	pool := members[:min(k*poolFactor, len(members))]
	if k >= len(pool) {
		return unwrap(pool)
	}

	remaining := make([]scoredProblem, len(pool))
	copy(remaining, pool)

	selected := make([]domain.Problem, 0, k)
	for range k {
		total := 0.0
		for _, sp := range remaining {
			total += sp.score + 1
		}

		r := src.Float64() * total
		chosen := 0
		cumulative := 0.0
		for i, sp := range remaining {
			cumulative += sp.score + 1
			if cumulative >= r {
				chosen = i
				break
			}
		}

		selected = append(selected, remaining[chosen].problem)
		remaining = append(remaining[:chosen], remaining[chosen+1:]...)
	}
	return selected
}
